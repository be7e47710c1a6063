package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/service"
	apperrors "course-planner/backend/pkg/errors"
	"course-planner/backend/pkg/response"
)

// StudentHandler 学生档案 HTTP 处理器
type StudentHandler struct {
	studentSvc service.StudentService
}

// NewStudentHandler 创建 StudentHandler
func NewStudentHandler(studentSvc service.StudentService) *StudentHandler {
	return &StudentHandler{studentSvc: studentSvc}
}

// GetMe 获取当前学生档案
// GET /api/v1/students/me
func (h *StudentHandler) GetMe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	resp, err := h.studentSvc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}
	response.OK(c, resp)
}

// UpsertMe 创建或更新当前学生档案
// PUT /api/v1/students/me
func (h *StudentHandler) UpsertMe(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpsertStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.studentSvc.UpsertProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleStudentError(c, err)
		return
	}
	response.OK(c, resp)
}

func (h *StudentHandler) handleStudentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 32001, "学生档案不存在")
	case errors.Is(err, service.ErrMajorNotFound):
		response.BadRequest(c, 32002, "专业不存在")
	case errors.Is(err, service.ErrUnknownMatricYear):
		response.BadRequest(c, 32003, "入学学年不在课程目录中")
	case errors.Is(err, apperrors.ErrOptimisticLock):
		response.Conflict(c, 32004, "档案已被修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
