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

// ApplicationHandler 投递CRUD接口，维护候选人与岗位的关联
type ApplicationHandler struct {
	storage *storage.Storage
}

// NewApplicationHandler 创建投递处理器
func NewApplicationHandler(s *storage.Storage) *ApplicationHandler {
	return &ApplicationHandler{storage: s}
}

// CreateApplicationRequest 创建投递请求
type CreateApplicationRequest struct {
	JobID       string `json:"job_id" validate:"required,uuid"`
	CandidateID string `json:"candidate_id" validate:"required,uuid"`
	Notes       string `json:"notes"`
}

// UpdateApplicationRequest 更新投递请求
type UpdateApplicationRequest struct {
	Status             *string `json:"status" validate:"omitempty,oneof=pending reviewed shortlisted rejected hired"`
	Notes              *string `json:"notes"`
	Rating             *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	InterviewScheduled *string `json:"interview_scheduled"` // RFC3339
	InterviewNotes     *string `json:"interview_notes"`
}

// ApplicationResponse 投递响应
type ApplicationResponse struct {
	ApplicationID      string     `json:"application_id"`
	JobID              string     `json:"job_id"`
	CandidateID        string     `json:"candidate_id"`
	Status             string     `json:"status"`
	AppliedAt          time.Time  `json:"applied_at"`
	Notes              string     `json:"notes"`
	Rating             *int       `json:"rating,omitempty"`
	InterviewScheduled *time.Time `json:"interview_scheduled,omitempty"`
	InterviewNotes     string     `json:"interview_notes"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func applicationToResponse(a *models.Application) ApplicationResponse {
	return ApplicationResponse{
		ApplicationID:      a.ApplicationID,
		JobID:              a.JobID,
		CandidateID:        a.CandidateID,
		Status:             a.Status,
		AppliedAt:          a.AppliedAt,
		Notes:              a.Notes,
		Rating:             a.Rating,
		InterviewScheduled: a.InterviewScheduled,
		InterviewNotes:     a.InterviewNotes,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

// HandleCreate 创建投递，同一候选人对同一岗位只能投一次（唯一索引兜底）
func (h *ApplicationHandler) HandleCreate(c context.Context, ctx *app.RequestContext) {
	var req CreateApplicationRequest
	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "请求体解析失败")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, err.Error())
		return
	}

	// 外键存在性先显式检查，给出比数据库错误友好的提示
	if _, err := h.storage.MySQL.GetJob(c, req.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "岗位不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询岗位失败")
		return
	}
	if _, err := h.storage.MySQL.GetCandidate(c, req.CandidateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "候选人不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询候选人失败")
		return
	}

	application := &models.Application{
		ApplicationID: uuid.NewString(),
		JobID:         req.JobID,
		CandidateID:   req.CandidateID,
		Status:        "pending",
		AppliedAt:     time.Now(),
		Notes:         req.Notes,
		CreatedBy:     uploaderFrom(ctx),
	}

	if err := h.storage.MySQL.CreateApplication(c, application); err != nil {
		logger.Error().Err(err).Msg("创建投递失败")
		respondError(ctx, consts.StatusConflict, "创建投递失败，可能已存在相同的投递")
		return
	}
	ctx.JSON(consts.StatusCreated, applicationToResponse(application))
}

// HandleList 分页列出投递，支持job_id/candidate_id/status过滤
func (h *ApplicationHandler) HandleList(c context.Context, ctx *app.RequestContext) {
	page, size := pagination(ctx)
	jobID := ctx.Query("job_id")
	candidateID := ctx.Query("candidate_id")
	status := ctx.Query("status")

	applications, total, err := h.storage.MySQL.ListApplications(c, jobID, candidateID, status, page, size)
	if err != nil {
		logger.Error().Err(err).Msg("查询投递列表失败")
		respondError(ctx, consts.StatusInternalServerError, "查询投递列表失败")
		return
	}

	items := make([]ApplicationResponse, 0, len(applications))
	for i := range applications {
		items = append(items, applicationToResponse(&applications[i]))
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// HandleGet 按ID查询投递
func (h *ApplicationHandler) HandleGet(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("id")

	application, err := h.storage.MySQL.GetApplication(c, applicationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "投递不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询投递失败")
		return
	}
	ctx.JSON(consts.StatusOK, applicationToResponse(application))
}

// HandleUpdate 更新投递状态、评分和面试安排
func (h *ApplicationHandler) HandleUpdate(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("id")

	var req UpdateApplicationRequest
	if err := ctx.BindJSON(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, "请求体解析失败")
		return
	}
	if err := validate.Struct(&req); err != nil {
		respondError(ctx, consts.StatusBadRequest, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.Rating != nil {
		updates["rating"] = *req.Rating
	}
	if req.InterviewScheduled != nil {
		if *req.InterviewScheduled == "" {
			updates["interview_scheduled"] = nil
		} else {
			scheduled, err := time.Parse(time.RFC3339, *req.InterviewScheduled)
			if err != nil {
				respondError(ctx, consts.StatusBadRequest, "interview_scheduled需为RFC3339格式")
				return
			}
			updates["interview_scheduled"] = scheduled
		}
	}
	if req.InterviewNotes != nil {
		updates["interview_notes"] = *req.InterviewNotes
	}
	if len(updates) == 0 {
		respondError(ctx, consts.StatusBadRequest, "没有可更新的字段")
		return
	}

	application, err := h.storage.MySQL.UpdateApplication(c, applicationID, updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "投递不存在")
			return
		}
		logger.Error().Err(err).Str("application_id", applicationID).Msg("更新投递失败")
		respondError(ctx, consts.StatusInternalServerError, "更新投递失败")
		return
	}
	ctx.JSON(consts.StatusOK, applicationToResponse(application))
}

// HandleDelete 删除投递
func (h *ApplicationHandler) HandleDelete(c context.Context, ctx *app.RequestContext) {
	applicationID := ctx.Param("id")

	if err := h.storage.MySQL.DeleteApplication(c, applicationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "投递不存在")
			return
		}
		logger.Error().Err(err).Str("application_id", applicationID).Msg("删除投递失败")
		respondError(ctx, consts.StatusInternalServerError, "删除投递失败")
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"deleted": applicationID})
}
