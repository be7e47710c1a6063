package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"course-planner/backend/internal/model"
)

// ModuleRepository 课程数据访问接口
type ModuleRepository interface {
	GetByCode(ctx context.Context, code string) (*model.Module, error)
	GetByCodes(ctx context.Context, codes []string) ([]model.Module, error)
	Upsert(ctx context.Context, modules []model.Module) error
	ListOffered(ctx context.Context, acadYear string, semNum, offset, limit int) ([]model.Module, int64, error)
	CountOfferedYears(ctx context.Context, code string) (int64, error)
}

type moduleRepo struct {
	db *gorm.DB
}

// NewModuleRepo 创建 ModuleRepository 实例
func NewModuleRepo(db *gorm.DB) ModuleRepository {
	return &moduleRepo{db: db}
}

func (r *moduleRepo) GetByCode(ctx context.Context, code string) (*model.Module, error) {
	var m model.Module
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *moduleRepo) GetByCodes(ctx context.Context, codes []string) ([]model.Module, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var modules []model.Module
	err := r.db.WithContext(ctx).
		Where("code IN ?", codes).
		Order("code ASC").
		Find(&modules).Error
	return modules, err
}

// Upsert 按课程代码批量插入或更新
func (r *moduleRepo) Upsert(ctx context.Context, modules []model.Module) error {
	if len(modules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "department", "description", "num_mcs", "is_year_long", "attributes", "updated_at",
			}),
		}).
		CreateInBatches(&modules, 200).Error
}

// ListOffered 分页查询某学年某学期开设的课程
func (r *moduleRepo) ListOffered(ctx context.Context, acadYear string, semNum, offset, limit int) ([]model.Module, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Module{}).
		Joins("JOIN offerings ON offerings.module_code = modules.code").
		Where("offerings.acad_year = ? AND offerings.sem_num = ?", acadYear, semNum)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var modules []model.Module
	err := query.
		Order("modules.code ASC").
		Offset(offset).
		Limit(limit).
		Find(&modules).Error
	if err != nil {
		return nil, 0, err
	}
	return modules, total, nil
}

// CountOfferedYears 课程有开课记录的学年数
func (r *moduleRepo) CountOfferedYears(ctx context.Context, code string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Offering{}).
		Where("module_code = ?", code).
		Distinct("acad_year").
		Count(&n).Error
	return n, err
}

// ── 开课 ──

// OfferingRepository 开课数据访问接口
type OfferingRepository interface {
	ListSemesters(ctx context.Context, code, acadYear string) ([]int, error)
	ReplaceForYear(ctx context.Context, acadYear string, offerings []model.Offering) error
}

type offeringRepo struct {
	db *gorm.DB
}

// NewOfferingRepo 创建 OfferingRepository 实例
func NewOfferingRepo(db *gorm.DB) OfferingRepository {
	return &offeringRepo{db: db}
}

// ListSemesters 课程在某学年开设的学期编号（升序）
func (r *offeringRepo) ListSemesters(ctx context.Context, code, acadYear string) ([]int, error) {
	var sems []int
	err := r.db.WithContext(ctx).
		Model(&model.Offering{}).
		Where("module_code = ? AND acad_year = ?", code, acadYear).
		Order("sem_num ASC").
		Pluck("sem_num", &sems).Error
	return sems, err
}

// ReplaceForYear 以新数据整体替换某学年的开课记录
func (r *offeringRepo) ReplaceForYear(ctx context.Context, acadYear string, offerings []model.Offering) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("acad_year = ?", acadYear).Delete(&model.Offering{}).Error; err != nil {
			return err
		}
		if len(offerings) == 0 {
			return nil
		}
		return tx.CreateInBatches(&offerings, 500).Error
	})
}

// ── 计学分实习 ──

// InternshipRepository 计学分实习数据访问接口
type InternshipRepository interface {
	ListCodes(ctx context.Context) ([]string, error)
}

type internshipRepo struct {
	db *gorm.DB
}

// NewInternshipRepo 创建 InternshipRepository 实例
func NewInternshipRepo(db *gorm.DB) InternshipRepository {
	return &internshipRepo{db: db}
}

func (r *internshipRepo) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&model.CreditInternship{}).
		Order("module_code ASC").
		Pluck("module_code", &codes).Error
	return codes, err
}
