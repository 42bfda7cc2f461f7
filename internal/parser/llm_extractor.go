package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/xeipuuv/gojsonschema"

	"recruit-agent-go/internal/agent"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/types"
)

// extractionPromptTemplate 两个阶段共用的提示词，嵌入目标JSON形状和简历原文
const extractionPromptTemplate = `You are a resume parsing assistant. Extract structured information from the resume text below.

Respond with a single JSON object exactly matching this shape (no markdown, no commentary):
{
  "full_name": "string",
  "email": "string",
  "phone": "string",
  "location": "string",
  "summary": "string",
  "skills": [{"name": "string", "proficiency": "string", "years_experience": 0}],
  "experience": [{"company": "string", "position": "string", "start_date": "string", "end_date": "string", "description": "string", "achievements": ["string"]}],
  "education": [{"institution": "string", "degree": "string", "field_of_study": "string", "start_date": "string", "end_date": "string", "gpa": 0}],
  "certifications": ["string"],
  "languages": ["string"]
}

Use empty strings or empty arrays for anything not present in the resume. Do not invent information.

Resume text (%d pages):
---
%s
---`

// resumeReplySchema 校验LLM回复的JSON Schema。
// full_name必填，列表字段必须是数组，字段类型错误一律判为解码失败。
const resumeReplySchema = `{
  "type": "object",
  "required": ["full_name"],
  "properties": {
    "full_name": {"type": "string"},
    "email": {"type": "string"},
    "phone": {"type": "string"},
    "location": {"type": "string"},
    "summary": {"type": "string"},
    "skills": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string"},
          "proficiency": {"type": "string"},
          "years_experience": {"type": "number"}
        }
      }
    },
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "company": {"type": "string"},
          "position": {"type": "string"},
          "start_date": {"type": "string"},
          "end_date": {"type": "string"},
          "description": {"type": "string"},
          "achievements": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "institution": {"type": "string"},
          "degree": {"type": "string"},
          "field_of_study": {"type": "string"},
          "start_date": {"type": "string"},
          "end_date": {"type": "string"},
          "gpa": {"type": "number"}
        }
      }
    },
    "certifications": {"type": "array", "items": {"type": "string"}},
    "languages": {"type": "array", "items": {"type": "string"}}
  }
}`

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// LLMResumeExtractor 通过LLM把简历文本转成结构化结果。
// 先走JSON模式，失败后退回普通补全再解析文本，两次都失败才报错。
type LLMResumeExtractor struct {
	model       agent.StructuredChatModel
	replySchema *gojsonschema.Schema
}

// NewLLMResumeExtractor 创建LLM简历提取器，model可以为nil表示未配置LLM
func NewLLMResumeExtractor(model agent.StructuredChatModel) (*LLMResumeExtractor, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resumeReplySchema))
	if err != nil {
		return nil, fmt.Errorf("编译简历回复schema失败: %w", err)
	}
	return &LLMResumeExtractor{
		model:       model,
		replySchema: compiled,
	}, nil
}

// Available 是否配置了可用的LLM客户端
func (e *LLMResumeExtractor) Available() bool {
	return e != nil && e.model != nil
}

// Extract 提取简历结构。未配置模型时返回包装ErrLLMUnavailable的错误，
// 回复无法解析或不符合schema时返回包装ErrLLMDecode的错误。
func (e *LLMResumeExtractor) Extract(ctx context.Context, resumeText string, pageCount int) (*types.ResumeExtraction, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%w: 未配置LLM客户端", ErrLLMUnavailable)
	}

	prompt := fmt.Sprintf(extractionPromptTemplate, pageCount, resumeText)
	messages := []*schema.Message{schema.UserMessage(prompt)}

	// 阶段一：JSON模式
	reply, err := e.model.GenerateStructured(ctx, messages)
	if err == nil {
		ext, decodeErr := e.decodeReply(reply.Content)
		if decodeErr == nil {
			return ext, nil
		}
		err = decodeErr
	}

	logger.Ctx(ctx).Debug().Err(err).Msg("结构化模式失败，退回普通补全")

	// 阶段二：普通补全后严格解析
	reply, genErr := e.model.Generate(ctx, messages)
	if genErr != nil {
		return nil, fmt.Errorf("%w: 普通补全调用失败: %v", ErrLLMDecode, genErr)
	}
	return e.decodeReply(reply.Content)
}

// decodeReply 从回复文本定位JSON，做schema校验后反序列化
func (e *LLMResumeExtractor) decodeReply(content string) (*types.ResumeExtraction, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: 回复中未找到JSON对象", ErrLLMDecode)
	}

	result, err := e.replySchema.Validate(gojsonschema.NewStringLoader(jsonStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMDecode, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: schema校验失败: %s", ErrLLMDecode, strings.Join(details, "; "))
	}

	var ext types.ResumeExtraction
	if err := json.Unmarshal([]byte(jsonStr), &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMDecode, err)
	}
	ext.Normalize()
	return &ext, nil
}

// extractJSON 从文本中提取JSON，先试```json代码块，再按大括号配对回退
func extractJSON(text string) string {
	matches := jsonFencePattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
