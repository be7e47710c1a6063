package dto

import "encoding/json"

// ── 课程目录 DTO ──

// ModuleListQuery 按学期查询开设课程
type ModuleListQuery struct {
	AcadYear string `form:"acad_year" binding:"required,acadyear"`
	SemNum   int    `form:"sem_num"   binding:"required,min=1,max=4"`
	PaginationRequest
}

// ModuleQuery 查询单个课程（可选学年，用于返回开课学期与先修树）
type ModuleQuery struct {
	AcadYear string `form:"acad_year" binding:"omitempty,acadyear"`
}

// ModuleResponse 课程信息
type ModuleResponse struct {
	Code        string          `json:"code"`
	Title       string          `json:"title"`
	Department  string          `json:"department"`
	Description string          `json:"description,omitempty"`
	Credits     string          `json:"credits"`
	IsYearLong  bool            `json:"is_year_long"`
	AcadYear    string          `json:"acad_year,omitempty"`
	Semesters   []int           `json:"semesters,omitempty"`
	PrereqTree  json.RawMessage `json:"prereq_tree,omitempty"`
}

// SyncCatalogRequest 同步课程目录请求（管理员）
type SyncCatalogRequest struct {
	AcadYear string `json:"acad_year" binding:"required,acadyear"`
}

// SyncCatalogResponse 同步结果统计
type SyncCatalogResponse struct {
	AcadYear         string `json:"acad_year"`
	Modules          int    `json:"modules"`
	Offerings        int    `json:"offerings"`
	Departments      int    `json:"departments"`
	SkippedNoOffer   int    `json:"skipped_no_offer"`
	RemovedDepts     int64  `json:"removed_departments"`
	InvalidatedTrees int    `json:"invalidated_trees"`
}
