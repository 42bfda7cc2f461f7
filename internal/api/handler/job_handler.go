package handler

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
)

// JobHandler 岗位CRUD接口
type JobHandler struct {
	storage *storage.Storage
}

// NewJobHandler 创建岗位处理器
func NewJobHandler(s *storage.Storage) *JobHandler {
	return &JobHandler{storage: s}
}

// CreateJobRequest 创建岗位请求
type CreateJobRequest struct {
	Title               string `json:"title" validate:"required,max=255"`
	Company             string `json:"company" validate:"required,max=255"`
	Location            string `json:"location" validate:"max=255"`
	Type                string `json:"type" validate:"omitempty,oneof=full-time part-time contract internship"`
	SalaryMin           int    `json:"salary_min" validate:"gte=0"`
	SalaryMax           int    `json:"salary_max" validate:"gte=0"`
	Description         string `json:"description" validate:"required"`
	Requirements        string `json:"requirements"`
	Responsibilities    string `json:"responsibilities"`
	Benefits            string `json:"benefits"`
	ContactEmail        string `json:"contact_email" validate:"omitempty,email"`
	ApplicationDeadline string `json:"application_deadline" validate:"omitempty"` // RFC3339
}

// UpdateJobRequest 更新岗位请求，指针字段区分"未提供"和"置空"
type UpdateJobRequest struct {
	Title               *string `json:"title" validate:"omitempty,max=255"`
	Company             *string `json:"company" validate:"omitempty,max=255"`
	Location            *string `json:"location" validate:"omitempty,max=255"`
	Type                *string `json:"type" validate:"omitempty,oneof=full-time part-time contract internship"`
	SalaryMin           *int    `json:"salary_min" validate:"omitempty,gte=0"`
	SalaryMax           *int    `json:"salary_max" validate:"omitempty,gte=0"`
	Description         *string `json:"description"`
	Requirements        *string `json:"requirements"`
	Responsibilities    *string `json:"responsibilities"`
	Benefits            *string `json:"benefits"`
	ContactEmail        *string `json:"contact_email" validate:"omitempty,email"`
	ApplicationDeadline *string `json:"application_deadline"`
	Status              *string `json:"status" validate:"omitempty,oneof=draft active closed"`
}

// JobResponse 岗位响应
type JobResponse struct {
	JobID               string     `json:"job_id"`
	Title               string     `json:"title"`
	Company             string     `json:"company"`
	Location            string     `json:"location"`
	Type                string     `json:"type"`
	SalaryMin           int        `json:"salary_min"`
	SalaryMax           int        `json:"salary_max"`
	Description         string     `json:"description"`
	Requirements        string     `json:"requirements"`
	Responsibilities    string     `json:"responsibilities"`
	Benefits            string     `json:"benefits"`
	ContactEmail        string     `json:"contact_email"`
	ApplicationDeadline *time.Time `json:"application_deadline,omitempty"`
	Status              string     `json:"status"`
	IsActive            bool       `json:"is_active"`
	CreatedBy           string     `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func jobToResponse(j *models.Job) JobResponse {
	return JobResponse{
		JobID:               j.JobID,
		Title:               j.Title,
		Company:             j.Company,
		Location:            j.Location,
		Type:                j.Type,
		SalaryMin:           j.SalaryMin,
		SalaryMax:           j.SalaryMax,
		Description:         j.Description,
		Requirements:        j.Requirements,
		Responsibilities:    j.Responsibilities,
		Benefits:            j.Benefits,
		ContactEmail:        j.ContactEmail,
		ApplicationDeadline: j.ApplicationDeadline,
		Status:              j.Status,
		IsActive:            j.IsActive,
		CreatedBy:           j.CreatedBy,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
	}
}

// HandleCreate 创建岗位，初始状态为draft
func (h *JobHandler) HandleCreate(c context.Context, ctx *app.RequestContext) {
	var req CreateJobRequest
	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "请求体解析失败")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, err.Error())
		return
	}

	job := &models.Job{
		JobID:            uuid.NewString(),
		Title:            req.Title,
		Company:          req.Company,
		Location:         req.Location,
		Type:             req.Type,
		SalaryMin:        req.SalaryMin,
		SalaryMax:        req.SalaryMax,
		Description:      req.Description,
		Requirements:     req.Requirements,
		Responsibilities: req.Responsibilities,
		Benefits:         req.Benefits,
		ContactEmail:     req.ContactEmail,
		Status:           "draft",
		CreatedBy:        uploaderFrom(ctx),
	}
	if job.Type == "" {
		job.Type = "full-time"
	}
	if req.ApplicationDeadline != "" {
		deadline, err := time.Parse(time.RFC3339, req.ApplicationDeadline)
		if err != nil {
			respondError(ctx, consts.StatusBadRequest, "application_deadline需为RFC3339格式")
			return
		}
		job.ApplicationDeadline = &deadline
	}

	if err := h.storage.MySQL.CreateJob(c, job); err != nil {
		logger.Error().Err(err).Msg("创建岗位失败")
		respondError(ctx, consts.StatusInternalServerError, "创建岗位失败")
		return
	}

	ctx.JSON(consts.StatusCreated, jobToResponse(job))
}

// HandleList 分页列出岗位，支持status过滤
func (h *JobHandler) HandleList(c context.Context, ctx *app.RequestContext) {
	page, size := pagination(ctx)
	status := ctx.Query("status")

	jobs, total, err := h.storage.MySQL.ListJobs(c, status, page, size)
	if err != nil {
		logger.Error().Err(err).Msg("查询岗位列表失败")
		respondError(ctx, consts.StatusInternalServerError, "查询岗位列表失败")
		return
	}

	items := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobToResponse(&jobs[i]))
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// HandleGet 按ID查询岗位
func (h *JobHandler) HandleGet(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")

	job, err := h.storage.MySQL.GetJob(c, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "岗位不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询岗位失败")
		return
	}
	ctx.JSON(consts.StatusOK, jobToResponse(job))
}

// HandleUpdate 更新岗位。状态流转为draft→active→closed，
// active时is_active同步置位，closed时复位。
func (h *JobHandler) HandleUpdate(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")

	var req UpdateJobRequest
	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "请求体解析失败")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.SalaryMin != nil {
		updates["salary_min"] = *req.SalaryMin
	}
	if req.SalaryMax != nil {
		updates["salary_max"] = *req.SalaryMax
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Requirements != nil {
		updates["requirements"] = *req.Requirements
	}
	if req.Responsibilities != nil {
		updates["responsibilities"] = *req.Responsibilities
	}
	if req.Benefits != nil {
		updates["benefits"] = *req.Benefits
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = *req.ContactEmail
	}
	if req.ApplicationDeadline != nil {
		if *req.ApplicationDeadline == "" {
			updates["application_deadline"] = nil
		} else {
			deadline, err := time.Parse(time.RFC3339, *req.ApplicationDeadline)
			if err != nil {
				respondError(ctx, consts.StatusBadRequest, "application_deadline需为RFC3339格式")
				return
			}
			updates["application_deadline"] = deadline
		}
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		updates["is_active"] = *req.Status == "active"
	}
	if len(updates) == 0 {
		respondError(ctx, consts.StatusBadRequest, "没有可更新的字段")
		return
	}

	job, err := h.storage.MySQL.UpdateJob(c, jobID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "岗位不存在")
			return
		}
		logger.Error().Err(err).Str("job_id", jobID).Msg("更新岗位失败")
		respondError(ctx, consts.StatusInternalServerError, "更新岗位失败")
		return
	}
	ctx.JSON(consts.StatusOK, jobToResponse(job))
}

// HandleDelete 删除岗位
func (h *JobHandler) HandleDelete(c context.Context, ctx *app.RequestContext) {
	jobID := ctx.Param("id")

	if err := h.storage.MySQL.DeleteJob(c, jobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "岗位不存在")
			return
		}
		logger.Error().Err(err).Str("job_id", jobID).Msg("删除岗位失败")
		respondError(ctx, consts.StatusInternalServerError, "删除岗位失败")
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"deleted": jobID})
}
