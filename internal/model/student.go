package model

import "time"

// Student 学生档案表，对应 students
// ID 与身份服务签发 Token 中的 user_id 一致
type Student struct {
	ID              string `gorm:"type:varchar(64);primaryKey"       json:"id"`
	Name            string `gorm:"type:varchar(128);not null;default:''" json:"name"`
	MatriculationAY string `gorm:"column:matriculation_ay;type:varchar(9);not null" json:"matriculation_ay"`
	Major           string `gorm:"type:varchar(128);not null"        json:"major"`
	VersionedModel
}

// TableName 指定表名
func (Student) TableName() string { return "students" }

// Enrollment 已保存的选课记录，对应 enrollments
type Enrollment struct {
	StudentID  string    `gorm:"type:varchar(64);primaryKey"  json:"student_id"`
	ModuleCode string    `gorm:"type:varchar(16);primaryKey"  json:"module_code"`
	AcadYear   string    `gorm:"type:varchar(9);primaryKey"   json:"acad_year"`
	SemNum     int       `gorm:"type:smallint;primaryKey;autoIncrement:false" json:"sem_num"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }
