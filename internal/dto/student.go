package dto

// ── 学生档案 DTO ──

// UpsertStudentRequest 创建或更新当前学生档案
// Version 为 0 表示首次创建，否则须与当前版本一致（乐观锁）
type UpsertStudentRequest struct {
	Name            string `json:"name"             binding:"omitempty,max=128"`
	MatriculationAY string `json:"matriculation_ay" binding:"required,acadyear"`
	Major           string `json:"major"            binding:"required,min=2,max=128"`
	Version         int    `json:"version"          binding:"omitempty,min=0"`
}

// StudentResponse 学生档案
type StudentResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	MatriculationAY string `json:"matriculation_ay"`
	Major           string `json:"major"`
	NumYears        int    `json:"num_years"`
	Version         int    `json:"version"`
	UpdatedAt       string `json:"updated_at"`
}
