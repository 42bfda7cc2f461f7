package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"recruit-agent-go/internal/types"
)

// Candidate 候选人主表。
// 一条记录对应一份已处理的简历文件，filename为规范化（trim+小写）后的
// 文件名，作为去重键全表唯一。
type Candidate struct {
	CandidateID        string         `gorm:"type:char(36);primaryKey"`
	Filename           string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_candidates_filename_unique"`
	FullName           string         `gorm:"type:varchar(255);not null;index:idx_candidates_full_name"`
	Email              string         `gorm:"type:varchar(255);index:idx_candidates_email"`
	Phone              string         `gorm:"type:varchar(50)"`
	Location           string         `gorm:"type:varchar(255)"`
	Summary            string         `gorm:"type:text"`
	SkillsJSON         datatypes.JSON `gorm:"type:json"`
	ExperienceJSON     datatypes.JSON `gorm:"type:json"`
	EducationJSON      datatypes.JSON `gorm:"type:json"`
	CertificationsJSON datatypes.JSON `gorm:"type:json"`
	LanguagesJSON      datatypes.JSON `gorm:"type:json"`
	ResumeObjectKey    string         `gorm:"type:varchar(1024)"` // MinIO中原始PDF的对象键
	PageCount          int            `gorm:"type:int;default:0"`
	JobID              *string        `gorm:"type:char(36);index:idx_candidates_job_id"` // 定向投递的岗位，可空
	UploadedBy         string         `gorm:"type:varchar(255);not null;index:idx_candidates_uploaded_by"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job *Job `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (Candidate) TableName() string {
	return "candidates"
}

// FromExtraction 将提取结果写入JSON列。列表字段序列化失败属于编程错误，
// 这里返回error交由调用方包装。
func (c *Candidate) FromExtraction(ext *types.ResumeExtraction) error {
	c.FullName = ext.FullName
	c.Email = ext.Email
	c.Phone = ext.Phone
	c.Location = ext.Location
	c.Summary = ext.Summary

	var err error
	if c.SkillsJSON, err = json.Marshal(ext.Skills); err != nil {
		return err
	}
	if c.ExperienceJSON, err = json.Marshal(ext.Experience); err != nil {
		return err
	}
	if c.EducationJSON, err = json.Marshal(ext.Education); err != nil {
		return err
	}
	if c.CertificationsJSON, err = json.Marshal(ext.Certifications); err != nil {
		return err
	}
	if c.LanguagesJSON, err = json.Marshal(ext.Languages); err != nil {
		return err
	}
	return nil
}

// ToExtraction 从JSON列还原提取结果，供重复文件直接复用存量字段。
func (c *Candidate) ToExtraction() (*types.ResumeExtraction, error) {
	ext := &types.ResumeExtraction{
		FullName: c.FullName,
		Email:    c.Email,
		Phone:    c.Phone,
		Location: c.Location,
		Summary:  c.Summary,
	}

	if len(c.SkillsJSON) > 0 {
		if err := json.Unmarshal(c.SkillsJSON, &ext.Skills); err != nil {
			return nil, err
		}
	}
	if len(c.ExperienceJSON) > 0 {
		if err := json.Unmarshal(c.ExperienceJSON, &ext.Experience); err != nil {
			return nil, err
		}
	}
	if len(c.EducationJSON) > 0 {
		if err := json.Unmarshal(c.EducationJSON, &ext.Education); err != nil {
			return nil, err
		}
	}
	if len(c.CertificationsJSON) > 0 {
		if err := json.Unmarshal(c.CertificationsJSON, &ext.Certifications); err != nil {
			return nil, err
		}
	}
	if len(c.LanguagesJSON) > 0 {
		if err := json.Unmarshal(c.LanguagesJSON, &ext.Languages); err != nil {
			return nil, err
		}
	}

	ext.Normalize()
	return ext, nil
}

// Job 岗位信息表
type Job struct {
	JobID               string     `gorm:"type:char(36);primaryKey"`
	Title               string     `gorm:"type:varchar(255);not null"`
	Company             string     `gorm:"type:varchar(255);not null"`
	Location            string     `gorm:"type:varchar(255)"`
	Type                string     `gorm:"type:varchar(50);default:'full-time'"` // full-time/part-time/contract/internship
	SalaryMin           int        `gorm:"type:int"`
	SalaryMax           int        `gorm:"type:int"`
	Description         string     `gorm:"type:text;not null"`
	Requirements        string     `gorm:"type:text"`
	Responsibilities    string     `gorm:"type:text"`
	Benefits            string     `gorm:"type:text"`
	ContactEmail        string     `gorm:"type:varchar(255)"`
	ApplicationDeadline *time.Time `gorm:"type:datetime(6)"`
	Status              string     `gorm:"type:varchar(50);default:'draft';index:idx_jobs_status"` // draft -> active -> closed
	IsActive            bool       `gorm:"default:false"`
	CreatedBy           string     `gorm:"type:varchar(255);not null"`
	CreatedAt           time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Job) TableName() string {
	return "jobs"
}

// Application 投递表，关联候选人与岗位
type Application struct {
	ApplicationID      string     `gorm:"type:char(36);primaryKey"`
	JobID              string     `gorm:"type:char(36);not null;index:idx_applications_job_id;uniqueIndex:idx_applications_job_candidate,priority:1"`
	CandidateID        string     `gorm:"type:char(36);not null;index:idx_applications_candidate_id;uniqueIndex:idx_applications_job_candidate,priority:2"`
	Status             string     `gorm:"type:varchar(50);default:'pending';index:idx_applications_status"` // pending/reviewed/shortlisted/rejected/hired
	AppliedAt          time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	Notes              string     `gorm:"type:text"`
	Rating             *int       `gorm:"type:int"` // 1-5，可空
	InterviewScheduled *time.Time `gorm:"type:datetime(6)"`
	InterviewNotes     string     `gorm:"type:text"`
	CreatedBy          string     `gorm:"type:varchar(255);not null"`
	CreatedAt          time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Job       *Job       `gorm:"foreignKey:JobID;references:JobID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Candidate *Candidate `gorm:"foreignKey:CandidateID;references:CandidateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Application) TableName() string {
	return "applications"
}
