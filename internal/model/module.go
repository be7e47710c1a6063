package model

import "gorm.io/datatypes"

// Module 课程表，对应 modules
type Module struct {
	Code        string         `gorm:"type:varchar(16);primaryKey"               json:"code"`
	Title       string         `gorm:"type:varchar(255);not null"                json:"title"`
	Department  string         `gorm:"type:varchar(128);not null;default:''"     json:"department"`
	Description string         `gorm:"type:text;not null;default:''"             json:"description"`
	NumMCs      string         `gorm:"column:num_mcs;type:numeric(6,2);not null" json:"num_mcs"`
	IsYearLong  bool           `gorm:"not null;default:false"                    json:"is_year_long"`
	Attributes  datatypes.JSON `gorm:"type:jsonb"                                json:"attributes,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Module) TableName() string { return "modules" }

// Offering 开课表，对应 offerings（课程 × 学年 × 学期）
type Offering struct {
	ModuleCode string `gorm:"type:varchar(16);primaryKey" json:"module_code"`
	AcadYear   string `gorm:"type:varchar(9);primaryKey"  json:"acad_year"`
	SemNum     int    `gorm:"type:smallint;primaryKey;autoIncrement:false" json:"sem_num"`
}

// TableName 指定表名
func (Offering) TableName() string { return "offerings" }

// CreditInternship 计学分实习，对应 credit_internships
type CreditInternship struct {
	ModuleCode string `gorm:"type:varchar(16);primaryKey" json:"module_code"`
}

// TableName 指定表名
func (CreditInternship) TableName() string { return "credit_internships" }
