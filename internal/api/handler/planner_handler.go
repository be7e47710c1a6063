package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/planner"
	"course-planner/backend/internal/service"
	apperrors "course-planner/backend/pkg/errors"
	"course-planner/backend/pkg/response"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PlannerHandler 选课规划 HTTP 处理器
type PlannerHandler struct {
	plannerSvc service.PlannerService
}

// NewPlannerHandler 创建 PlannerHandler
func NewPlannerHandler(plannerSvc service.PlannerService) *PlannerHandler {
	return &PlannerHandler{plannerSvc: plannerSvc}
}

// ── 会话 ──

// StartSession 开始规划会话
// POST /api/v1/planner/sessions
func (h *PlannerHandler) StartSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	// 请求体可为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}
	if req.FirstTerm != nil && !validTerm(*req.FirstTerm) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.plannerSvc.StartSession(c.Request.Context(), userID, &req)
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.Created(c, resp)
}

// GetSession 获取会话快照
// GET /api/v1/planner/sessions/:id
func (h *PlannerHandler) GetSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.plannerSvc.GetSession(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// CloseSession 关闭会话
// DELETE /api/v1/planner/sessions/:id
func (h *PlannerHandler) CloseSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.plannerSvc.CloseSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetSession 重置会话
// POST /api/v1/planner/sessions/:id/reset
func (h *PlannerHandler) ResetSession(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ResetSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	resp, err := h.plannerSvc.ResetSession(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── 学期操作 ──

// ListChoices 某学期可选课程
// GET /api/v1/planner/sessions/:id/terms/:ay/:sem/choices
func (h *PlannerHandler) ListChoices(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	term, ok := bindTerm(c)
	if !ok {
		return
	}

	resp, err := h.plannerSvc.ListChoices(c.Request.Context(), userID, c.Param("id"), term)
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// EditDefaults 修改某学期默认选课，之后的已提交学期会被作废
// PUT /api/v1/planner/sessions/:id/terms/:ay/:sem/defaults
func (h *PlannerHandler) EditDefaults(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	term, ok := bindTerm(c)
	if !ok {
		return
	}

	var req dto.EditDefaultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.plannerSvc.EditDefaults(c.Request.Context(), userID, c.Param("id"), term, &req)
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// SubmitTerm 提交某学期选课并返回校验结果
// POST /api/v1/planner/sessions/:id/terms/:ay/:sem/submit
func (h *PlannerHandler) SubmitTerm(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	term, ok := bindTerm(c)
	if !ok {
		return
	}

	var req dto.SubmitTermRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	resp, err := h.plannerSvc.SubmitTerm(c.Request.Context(), userID, c.Param("id"), term, &req)
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// Evaluate 按默认选课重新评估全部学期
// POST /api/v1/planner/sessions/:id/evaluate
func (h *PlannerHandler) Evaluate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.plannerSvc.Evaluate(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── 保存与导出 ──

// SavePlan 保存已完成的计划
// POST /api/v1/planner/sessions/:id/save
func (h *PlannerHandler) SavePlan(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.plannerSvc.SavePlan(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}
	response.OK(c, resp)
}

// ExportPlan 导出计划为 Excel
// GET /api/v1/planner/sessions/:id/export
func (h *PlannerHandler) ExportPlan(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.plannerSvc.ExportPlan(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handlePlannerError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

// ── 内部辅助方法 ──

// bindTerm 从路径参数 :ay 与 :sem 解析学期
func bindTerm(c *gin.Context) (dto.TermRef, bool) {
	sem, err := strconv.Atoi(c.Param("sem"))
	term := dto.TermRef{AcadYear: c.Param("ay"), SemNum: sem}
	if err != nil || !validTerm(term) {
		response.BadRequest(c, 10001, "学期参数无效")
		return dto.TermRef{}, false
	}
	return term, true
}

func validTerm(t dto.TermRef) bool {
	return IsAcadYear(t.AcadYear) && t.SemNum >= 1 && t.SemNum <= 4
}

func (h *PlannerHandler) handlePlannerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 30001, "规划会话不存在或已过期")
	case errors.Is(err, service.ErrSessionForbidden):
		response.Forbidden(c, 30002, "无权访问该规划会话")
	case errors.Is(err, service.ErrProfileRequired):
		response.BadRequest(c, 30003, "请先填写学生档案")
	case errors.Is(err, service.ErrMajorNotFound):
		response.NotFound(c, 30004, "专业不存在")
	case errors.Is(err, service.ErrUnknownMatricYear):
		response.BadRequest(c, 30005, "入学学年不在课程目录中")
	case errors.Is(err, planner.ErrTermNotInLayout):
		response.BadRequest(c, 30006, "学期不在规划范围内")
	case errors.Is(err, planner.ErrUnknownModule):
		response.BadRequest(c, 30007, err.Error())
	case errors.Is(err, planner.ErrNoOfferings):
		response.BadRequest(c, 30008, err.Error())
	case errors.Is(err, planner.ErrRepeatedModule):
		response.BadRequest(c, 30009, err.Error())
	case errors.Is(err, service.ErrPlanIncomplete):
		response.Conflict(c, 30010, "计划尚未完成或已无效，无法保存")
	case errors.Is(err, planner.ErrMalformedTree):
		response.BadGateway(c, 30011, "先修树数据异常")
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		response.BadGateway(c, 30012, "课程目录服务暂不可用")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/planner_handler.go
