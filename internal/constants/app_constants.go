package constants

import "time"

const (
	// ProcessedFilenameSetKey Redis Set，记录已处理的规范化文件名（去重键）
	ProcessedFilenameSetKey = "candidates:filenames"

	// CandidateCachePrefix 候选人提取结果缓存键前缀
	CandidateCachePrefix = "candidate:filename:"

	// CandidateCacheDuration 候选人缓存默认过期时间
	CandidateCacheDuration = 24 * time.Hour

	// CandidateCreatedEventType 候选人创建事件类型（outbox EventType字段）
	CandidateCreatedEventType = "candidate.created"
)
