package processor

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/tracing"
	"recruit-agent-go/internal/types"
)

// MockCandidateStore 用内存map模拟候选人表的唯一文件名约束
type MockCandidateStore struct {
	byFilename map[string]*models.Candidate
	created    []*models.Candidate
	events     []*models.OutboxMessage
	findErr    error
}

func NewMockCandidateStore() *MockCandidateStore {
	return &MockCandidateStore{byFilename: make(map[string]*models.Candidate)}
}

func (m *MockCandidateStore) FindCandidateByFilename(ctx context.Context, normalizedFilename string) (*models.Candidate, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byFilename[normalizedFilename], nil
}

func (m *MockCandidateStore) CreateCandidateWithEvent(ctx context.Context, candidate *models.Candidate, event *models.OutboxMessage) error {
	m.byFilename[candidate.Filename] = candidate
	m.created = append(m.created, candidate)
	if event != nil {
		m.events = append(m.events, event)
	}
	return nil
}

// MockResumeFileStore 记录上传调用并返回固定对象键
type MockResumeFileStore struct {
	uploads []string
}

func (m *MockResumeFileStore) UploadResumeFile(ctx context.Context, candidateID, filename string, reader io.Reader, fileSize int64) (string, error) {
	m.uploads = append(m.uploads, filename)
	return "candidates/" + candidateID + "/" + filename, nil
}

// MockDedupCache 内存版去重与提取结果缓存
type MockDedupCache struct {
	seen   map[string]bool
	cached map[string]*types.ResumeExtraction
	marked []string
}

func NewMockDedupCache() *MockDedupCache {
	return &MockDedupCache{
		seen:   make(map[string]bool),
		cached: make(map[string]*types.ResumeExtraction),
	}
}

func (m *MockDedupCache) CheckFilenameProcessed(ctx context.Context, normalizedFilename string) (bool, error) {
	return m.seen[normalizedFilename], nil
}

func (m *MockDedupCache) MarkFilenameProcessed(ctx context.Context, normalizedFilename string) error {
	m.seen[normalizedFilename] = true
	m.marked = append(m.marked, normalizedFilename)
	return nil
}

func (m *MockDedupCache) CacheExtraction(ctx context.Context, normalizedFilename string, ext *types.ResumeExtraction) error {
	m.cached[normalizedFilename] = ext
	return nil
}

func (m *MockDedupCache) GetCachedExtraction(ctx context.Context, normalizedFilename string) (*types.ResumeExtraction, error) {
	return m.cached[normalizedFilename], nil
}

func newTestExtractor(t *testing.T) *ResumeExtractor {
	t.Helper()
	extractor, err := NewResumeExtractor(&MockPDFExtractor{text: sampleResumeText, pages: 1})
	require.NoError(t, err)
	return extractor
}

// storedCandidate 构造一条已入库的候选人记录
func storedCandidate(t *testing.T, filename, fullName string) *models.Candidate {
	t.Helper()
	candidate := &models.Candidate{
		CandidateID: "0190e0c2-0000-7000-8000-000000000001",
		Filename:    filename,
		UploadedBy:  "recruiter-a",
	}
	ext := &types.ResumeExtraction{
		FullName:       fullName,
		Skills:         []types.ExtractedSkill{},
		Experience:     []types.ExtractedExperience{},
		Education:      []types.ExtractedEducation{},
		Certifications: []string{},
		Languages:      []string{},
	}
	require.NoError(t, candidate.FromExtraction(ext))
	return candidate
}

// TestBatchProcessMixed 一批三个文件：一个新文件、一个存量重复、一个非PDF
func TestBatchProcessMixed(t *testing.T) {
	store := NewMockCandidateStore()
	store.byFilename["old.pdf"] = storedCandidate(t, "old.pdf", "Old Candidate")

	fileStore := &MockResumeFileStore{}
	dedup := NewMockDedupCache()
	dedup.seen["old.pdf"] = true

	batch := NewBatchProcessor(newTestExtractor(t), store,
		WithResumeFileStore(fileStore),
		WithDedupCache(dedup),
		WithCandidateEvents("candidate.events", "candidate.created"),
	)

	files := []UploadedFile{
		{Filename: "  New.PDF ", Data: []byte("%PDF-new")},
		{Filename: "old.pdf", Data: []byte("%PDF-old")},
		{Filename: "resume.docx", Data: []byte("not a pdf")},
	}

	result := batch.Process(context.Background(), files, "", "recruiter-b")

	assert.Equal(t, 3, result.TotalFiles)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"resume.docx"}, result.FailedFiles)
	require.Len(t, result.Results, 2)

	// 新文件：文件名规范化后入库，原始文件落对象存储，附带一条outbox事件
	require.Len(t, store.created, 1)
	newCandidate := store.created[0]
	assert.Equal(t, "new.pdf", newCandidate.Filename)
	assert.Equal(t, "recruiter-b", newCandidate.UploadedBy)
	assert.NotEmpty(t, newCandidate.ResumeObjectKey)
	assert.Equal(t, []string{"new.pdf"}, fileStore.uploads)
	assert.Contains(t, dedup.marked, "new.pdf")

	require.Len(t, store.events, 1)
	assert.Equal(t, constants.CandidateCreatedEventType, store.events[0].EventType)
	assert.Equal(t, newCandidate.CandidateID, store.events[0].AggregateID)
	assert.Equal(t, "candidate.events", store.events[0].TargetExchange)

	// 存量重复：复用老记录，不再写库
	assert.Equal(t, "Old Candidate", result.Results[1].FullName)
}

// TestBatchProcessIntraBatchDuplicate 批内重复文件名复用第一次的结果
func TestBatchProcessIntraBatchDuplicate(t *testing.T) {
	store := NewMockCandidateStore()
	batch := NewBatchProcessor(newTestExtractor(t), store)

	files := []UploadedFile{
		{Filename: "jane.pdf", Data: []byte("%PDF-1")},
		{Filename: "JANE.pdf", Data: []byte("%PDF-2")},
	}

	result := batch.Process(context.Background(), files, "", "recruiter-a")

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, store.created, 1, "顺序处理下第二个重复文件应复用第一次写入的记录")
	assert.Equal(t, "jane.pdf", store.created[0].Filename)
}

// TestBatchProcessJobID 指定岗位时写入候选人的job_id
func TestBatchProcessJobID(t *testing.T) {
	store := NewMockCandidateStore()
	batch := NewBatchProcessor(newTestExtractor(t), store)

	result := batch.Process(context.Background(),
		[]UploadedFile{{Filename: "jane.pdf", Data: []byte("%PDF")}},
		"job-123", "recruiter-a")

	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, store.created, 1)
	require.NotNil(t, store.created[0].JobID)
	assert.Equal(t, "job-123", *store.created[0].JobID)
}

// TestBatchProcessNoEventWhenUnconfigured 未配置事件目标时不写outbox
func TestBatchProcessNoEventWhenUnconfigured(t *testing.T) {
	store := NewMockCandidateStore()
	batch := NewBatchProcessor(newTestExtractor(t), store)

	batch.Process(context.Background(),
		[]UploadedFile{{Filename: "jane.pdf", Data: []byte("%PDF")}},
		"", "recruiter-a")

	require.Len(t, store.created, 1)
	assert.Empty(t, store.events)
}

// TestBatchProcessEmpty 空批次返回零值摘要
func TestBatchProcessEmpty(t *testing.T) {
	batch := NewBatchProcessor(newTestExtractor(t), NewMockCandidateStore())

	result := batch.Process(context.Background(), nil, "", "recruiter-a")

	assert.Equal(t, 0, result.TotalFiles)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.NotNil(t, result.FailedFiles)
	assert.NotNil(t, result.Results)
}

// TestBatchProcessCacheFastPath 缓存命中时复用缓存结果，不再查数据库
func TestBatchProcessCacheFastPath(t *testing.T) {
	store := NewMockCandidateStore()
	store.findErr = assert.AnError // 走到数据库就会失败

	dedup := NewMockDedupCache()
	dedup.seen["cached.pdf"] = true
	dedup.cached["cached.pdf"] = &types.ResumeExtraction{FullName: "Cached Candidate"}

	batch := NewBatchProcessor(newTestExtractor(t), store, WithDedupCache(dedup))

	result := batch.Process(context.Background(),
		[]UploadedFile{{Filename: "cached.pdf", Data: []byte("%PDF")}},
		"", "recruiter-a")

	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Cached Candidate", result.Results[0].FullName)
	assert.Empty(t, store.created)
}

// TestBatchProcessBackfillsCache 新文件落库后回填提取结果缓存
func TestBatchProcessBackfillsCache(t *testing.T) {
	store := NewMockCandidateStore()
	dedup := NewMockDedupCache()
	batch := NewBatchProcessor(newTestExtractor(t), store, WithDedupCache(dedup))

	result := batch.Process(context.Background(),
		[]UploadedFile{{Filename: "jane.pdf", Data: []byte("%PDF")}},
		"", "recruiter-a")

	assert.Equal(t, 1, result.Succeeded)
	require.Contains(t, dedup.cached, "jane.pdf")
	assert.Equal(t, "Jane Doe", dedup.cached["jane.pdf"].FullName)
}

// TestBatchProcessStoreFailure 数据库查询失败时文件计入失败而不中断批次
func TestBatchProcessStoreFailure(t *testing.T) {
	store := NewMockCandidateStore()
	store.findErr = assert.AnError
	batch := NewBatchProcessor(newTestExtractor(t), store)

	result := batch.Process(context.Background(),
		[]UploadedFile{{Filename: "jane.pdf", Data: []byte("%PDF")}},
		"", "recruiter-a")

	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"jane.pdf"}, result.FailedFiles)
}

// TestNormalizeFilename 去重键规范化
func TestNormalizeFilename(t *testing.T) {
	assert.Equal(t, "resume.pdf", NormalizeFilename("  Resume.PDF "))
	assert.Equal(t, "a b.pdf", NormalizeFilename("A B.pdf"), "内部空白保持不变")
}

// TestSpanErrorType 按错误链归类span上报的错误类型
func TestSpanErrorType(t *testing.T) {
	tests := []struct {
		err      error
		expected tracing.ErrorType
	}{
		{NewValidationError("sub-1", "缺少姓名"), tracing.ErrorTypeValidation},
		{NewStoreError("sub-1", "insert failed"), tracing.ErrorTypeDB},
		{ErrLLMUnavailable, tracing.ErrorTypeLLM},
		{ErrLLMDecode, tracing.ErrorTypeLLM},
		{NewExtractError("sub-1", "empty pdf"), tracing.ErrorTypeExtraction},
		{ErrFileRead, tracing.ErrorTypeExtraction},
		{assert.AnError, tracing.ErrorTypeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, spanErrorType(tt.err), "错误 %v 的类型归类不对", tt.err)
	}
}
