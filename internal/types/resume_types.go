package types

// ExtractedSkill 单项技能及其熟练度
type ExtractedSkill struct {
	Name            string   `json:"name"`                       // 技能名称，如 Python、React
	Proficiency     string   `json:"proficiency,omitempty"`      // 熟练程度，如 Beginner/Advanced
	YearsExperience *float64 `json:"years_experience,omitempty"` // 使用年限（可选，非负）
}

// ExtractedExperience 工作经历条目
type ExtractedExperience struct {
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	StartDate    string   `json:"start_date"` // 自由格式：YYYY 或 YYYY-MM
	EndDate      string   `json:"end_date,omitempty"`
	Description  string   `json:"description,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
}

// ExtractedEducation 教育经历条目
type ExtractedEducation struct {
	Institution  string   `json:"institution"`
	Degree       string   `json:"degree"`
	FieldOfStudy string   `json:"field_of_study"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
	GPA          *float64 `json:"gpa,omitempty"`
}

// UnknownName 当无法从简历中识别出姓名时使用的哨兵值
const UnknownName = "Unknown"

// ResumeExtraction 从简历PDF中提取的结构化数据。
// 提取完成后即为不可变的终值：要么落库为候选人记录，要么丢弃。
type ResumeExtraction struct {
	FullName       string                `json:"full_name"` // 必填；找不到时为 "Unknown"
	Email          string                `json:"email,omitempty"`
	Phone          string                `json:"phone,omitempty"`
	Location       string                `json:"location,omitempty"`
	Summary        string                `json:"summary,omitempty"`
	Skills         []ExtractedSkill      `json:"skills"`
	Experience     []ExtractedExperience `json:"experience"`
	Education      []ExtractedEducation  `json:"education"`
	Certifications []string              `json:"certifications"`
	Languages      []string              `json:"languages"`
}

// Normalize 填补缺省字段：姓名为空时写入哨兵值，列表字段一律非nil。
// LLM路径和启发式路径都经过这里，保证两条路径产物形状一致。
func (r *ResumeExtraction) Normalize() {
	if r.FullName == "" {
		r.FullName = UnknownName
	}
	if r.Skills == nil {
		r.Skills = []ExtractedSkill{}
	}
	if r.Experience == nil {
		r.Experience = []ExtractedExperience{}
	}
	if r.Education == nil {
		r.Education = []ExtractedEducation{}
	}
	if r.Certifications == nil {
		r.Certifications = []string{}
	}
	if r.Languages == nil {
		r.Languages = []string{}
	}
}

// BatchExtractionResult 批量上传简历的处理摘要。
// 每次批量上传请求产生一份，不落库。
type BatchExtractionResult struct {
	TotalFiles  int                `json:"total_files"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	FailedFiles []string           `json:"failed_files"`
	Results     []ResumeExtraction `json:"results"`
}
