package processor

import (
	"errors"
	"fmt"

	"recruit-agent-go/internal/parser"
)

// 基础错误类型。提取侧的哨兵错误由parser包定义，这里统一导出，
// 调用方用errors.Is判断时两边指向同一个值。
var (
	ErrFileRead       = parser.ErrFileRead
	ErrTextExtraction = parser.ErrTextExtraction
	ErrLLMUnavailable = parser.ErrLLMUnavailable
	ErrLLMDecode      = parser.ErrLLMDecode

	// ErrInvalidRecord 组装出的候选人记录不满足约束
	ErrInvalidRecord = errors.New("候选人记录校验失败")

	// ErrDatabaseFailed 数据库操作失败
	ErrDatabaseFailed = errors.New("数据库操作失败")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	SubmissionID string // 本次处理的标识，通常是规范化文件名
	Op           string // 失败的操作：read, extract, store, publish
	BaseErr      error
	Detail       string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.SubmissionID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.SubmissionID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewReadError 文件读取失败
func NewReadError(submissionID, detail string) error {
	return &ResumeProcessError{
		SubmissionID: submissionID,
		Op:           "read",
		BaseErr:      ErrFileRead,
		Detail:       detail,
	}
}

// NewExtractError 文本提取失败
func NewExtractError(submissionID, detail string) error {
	return &ResumeProcessError{
		SubmissionID: submissionID,
		Op:           "extract",
		BaseErr:      ErrTextExtraction,
		Detail:       detail,
	}
}

// NewStoreError 持久化失败
func NewStoreError(submissionID, detail string) error {
	return &ResumeProcessError{
		SubmissionID: submissionID,
		Op:           "store",
		BaseErr:      ErrDatabaseFailed,
		Detail:       detail,
	}
}

// NewValidationError 记录校验失败
func NewValidationError(submissionID, detail string) error {
	return &ResumeProcessError{
		SubmissionID: submissionID,
		Op:           "validate",
		BaseErr:      ErrInvalidRecord,
		Detail:       detail,
	}
}
