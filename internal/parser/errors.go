package parser

import "errors"

// 提取流程的基础错误类型
var (
	// ErrFileRead 文件无法打开或读取
	ErrFileRead = errors.New("读取简历文件失败")

	// ErrTextExtraction PDF解析失败或无法提取文本
	ErrTextExtraction = errors.New("提取简历文本失败")

	// ErrLLMUnavailable 未配置LLM客户端或凭证
	ErrLLMUnavailable = errors.New("LLM服务不可用")

	// ErrLLMDecode LLM回复无法解析为合法的简历结构
	ErrLLMDecode = errors.New("解析LLM回复失败")
)
