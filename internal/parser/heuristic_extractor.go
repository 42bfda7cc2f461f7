package parser

import (
	"regexp"
	"strings"

	"recruit-agent-go/internal/types"
)

// 启发式提取器在LLM不可用时兜底。
// 所有提取函数对同一份lines独立扫描，找不到就返回空值，永不报错。

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	// 国家码可选，3位区号必须存在，纯7位数字串不算电话
	phonePattern = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

var (
	locationKeywords  = []string{"location", "city", "address", "based in"}
	summaryKeywords   = []string{"summary", "objective", "profile", "about"}
	skillsKeywords    = []string{"skills", "technologies", "programming", "languages", "tools"}
	skillsSkipWords   = []string{"experience", "education", "work"}
	experienceHeaders = []string{"experience", "work history", "employment"}
	educationHeaders  = []string{"education", "academic", "degree", "university"}
)

// containsAny 判断行(小写后)是否含任一关键词
func containsAny(line string, keywords []string) bool {
	lower := strings.ToLower(line)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExtractName 在前5行中找第一个词数不超过4的非空行，找不到返回"Unknown"
func ExtractName(lines []string) string {
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if len(strings.Fields(trimmed)) <= 4 {
			return trimmed
		}
	}
	return types.UnknownName
}

// ExtractEmail 返回全文中第一个邮箱地址，没有返回空串
func ExtractEmail(lines []string) string {
	for _, line := range lines {
		if match := emailPattern.FindString(line); match != "" {
			return match
		}
	}
	return ""
}

// ExtractPhone 返回全文中第一个电话号码，没有返回空串
func ExtractPhone(lines []string) string {
	for _, line := range lines {
		if match := phonePattern.FindString(line); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

// ExtractLocation 返回第一个含地址关键词的整行，没有返回空串
func ExtractLocation(lines []string) string {
	for _, line := range lines {
		if containsAny(line, locationKeywords) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

// ExtractSummary 找到简介标题行后，收集紧随其后4行窗口内的非空行以空格拼接。
// 窗口外的内容不算简介，标题后全是空行则返回空串
func ExtractSummary(lines []string) string {
	for i, line := range lines {
		if !containsAny(line, summaryKeywords) {
			continue
		}
		end := i + 1 + 4
		if end > len(lines) {
			end = len(lines)
		}
		var collected []string
		for _, candidate := range lines[i+1 : end] {
			trimmed := strings.TrimSpace(candidate)
			if trimmed == "" {
				continue
			}
			collected = append(collected, trimmed)
		}
		return strings.Join(collected, " ")
	}
	return ""
}

// ExtractSkills 在每个技能标题行之后的10行内收集技能词。
// 跳过含经历类关键词的行，按逗号分号和空白切分，保留长度大于2的词。
// 跨所有技能段落累积，不去重。
func ExtractSkills(lines []string) []types.ExtractedSkill {
	skills := make([]types.ExtractedSkill, 0)
	for i, line := range lines {
		if !containsAny(line, skillsKeywords) {
			continue
		}
		end := i + 1 + 10
		if end > len(lines) {
			end = len(lines)
		}
		for _, candidate := range lines[i+1 : end] {
			if containsAny(candidate, skillsSkipWords) {
				continue
			}
			tokens := strings.FieldsFunc(candidate, func(r rune) bool {
				return r == ',' || r == ';' || r == ' ' || r == '\t'
			})
			for _, token := range tokens {
				token = strings.TrimSpace(token)
				if len(token) > 2 {
					skills = append(skills, types.ExtractedSkill{Name: token})
				}
			}
		}
	}
	return skills
}

// ExtractExperience 在每个经历标题行之后的20行内，把超过10字符的非空行
// 转成一条占位经历，行文本仅保留在description里。占位值是既定的回退契约，不要修正。
func ExtractExperience(lines []string) []types.ExtractedExperience {
	experiences := make([]types.ExtractedExperience, 0)
	for i, line := range lines {
		if !containsAny(line, experienceHeaders) {
			continue
		}
		end := i + 1 + 20
		if end > len(lines) {
			end = len(lines)
		}
		for _, candidate := range lines[i+1 : end] {
			trimmed := strings.TrimSpace(candidate)
			if len(trimmed) > 10 {
				experiences = append(experiences, types.ExtractedExperience{
					Company:     "Company Name",
					Position:    "Position",
					StartDate:   "2020",
					EndDate:     "Present",
					Description: trimmed,
				})
			}
		}
	}
	return experiences
}

// ExtractEducation 在每个教育标题行之后的10行内，把超过10字符的非空行
// 转成一条占位教育经历，行内容本身不保存
func ExtractEducation(lines []string) []types.ExtractedEducation {
	educations := make([]types.ExtractedEducation, 0)
	for i, line := range lines {
		if !containsAny(line, educationHeaders) {
			continue
		}
		end := i + 1 + 10
		if end > len(lines) {
			end = len(lines)
		}
		for _, candidate := range lines[i+1 : end] {
			if len(strings.TrimSpace(candidate)) > 10 {
				educations = append(educations, types.ExtractedEducation{
					Institution:  "Institution",
					Degree:       "Degree",
					FieldOfStudy: "Field of Study",
				})
			}
		}
	}
	return educations
}

// FallbackExtraction 汇总所有启发式提取器的结果。
// 输入相同则输出逐字节相同，切片字段保证非nil。
func FallbackExtraction(text string) *types.ResumeExtraction {
	lines := strings.Split(text, "\n")

	ext := &types.ResumeExtraction{
		FullName:       ExtractName(lines),
		Email:          ExtractEmail(lines),
		Phone:          ExtractPhone(lines),
		Location:       ExtractLocation(lines),
		Summary:        ExtractSummary(lines),
		Skills:         ExtractSkills(lines),
		Experience:     ExtractExperience(lines),
		Education:      ExtractEducation(lines),
		Certifications: []string{},
		Languages:      []string{},
	}
	ext.Normalize()
	return ext
}
