package planner

import (
	"context"
	"fmt"
)

// Propagator 默认选课传播器
type Propagator struct {
	catalog Catalog
}

// NewPropagator 创建 Propagator
func NewPropagator(catalog Catalog) *Propagator {
	return &Propagator{catalog: catalog}
}

// yearLongChoice 被编辑学期中的全年课程及其开课学期
type yearLongChoice struct {
	name    string
	offered map[int]bool
}

// OnTermEdited 某学期默认选课被编辑后更新整个网格：
//  1. 覆盖被编辑学期
//  2. 从之后所有学期中移除编辑后选中的课程
//  3. 同学年其他学期按全年课程重新同步
//
// 第 3 步中各兄弟学期均基于同一份编辑结果独立计算，互不影响。
func (p *Propagator) OnTermEdited(ctx context.Context, edited Term, selection []string, grid *Grid) error {
	if !grid.Has(edited) {
		return fmt.Errorf("%w: %s", ErrTermNotInLayout, edited)
	}

	// 先把编辑结果里的全年课程查清楚，未知课程在改动网格前报错
	yearLong, err := p.yearLongChoices(ctx, edited.AcadYear, selection)
	if err != nil {
		return err
	}

	if err := grid.Set(edited, selection); err != nil {
		return err
	}

	chosen := make(map[string]bool, len(selection))
	for _, name := range selection {
		chosen[name] = true
	}
	for _, t := range grid.After(edited) {
		kept := make([]string, 0, len(grid.cells[t]))
		for _, name := range grid.cells[t] {
			if !chosen[name] {
				kept = append(kept, name)
			}
		}
		grid.cells[t] = kept
	}

	// 兄弟学期的结果先全部算出再统一写回
	updates := make(map[Term][]string)
	for _, sibling := range grid.Siblings(edited) {
		next, err := p.syncSibling(ctx, edited, yearLong, sibling, grid.cells[sibling])
		if err != nil {
			return err
		}
		updates[sibling] = next
	}
	for t, names := range updates {
		grid.cells[t] = names
	}

	return nil
}

func (p *Propagator) yearLongChoices(ctx context.Context, acadYear string, selection []string) ([]yearLongChoice, error) {
	var out []yearLongChoice
	for _, name := range selection {
		code := ModuleCode(name)
		info, err := p.catalog.ModuleInfo(ctx, code)
		if err != nil {
			return nil, err
		}
		if !info.YearLong {
			continue
		}
		offered, err := p.offeredSet(ctx, code, acadYear)
		if err != nil {
			return nil, err
		}
		out = append(out, yearLongChoice{name: name, offered: offered})
	}
	return out, nil
}

// syncSibling 计算兄弟学期的新默认选课
//   - 兄弟学期中的全年课程若也在被编辑学期开设、却不在编辑结果中 → 移除
//   - 编辑结果中的全年课程若在兄弟学期开设、且尚未选中 → 加入
//   - 非全年课程保持不变
func (p *Propagator) syncSibling(ctx context.Context, edited Term, yearLong []yearLongChoice, sibling Term, current []string) ([]string, error) {
	inEdited := make(map[string]bool, len(yearLong))
	for _, yl := range yearLong {
		inEdited[yl.name] = true
	}

	next := make([]string, 0, len(current)+len(yearLong))
	present := make(map[string]bool, len(current))
	for _, name := range current {
		code := ModuleCode(name)
		info, err := p.catalog.ModuleInfo(ctx, code)
		if err != nil {
			return nil, err
		}
		if info.YearLong {
			offered, err := p.offeredSet(ctx, code, edited.AcadYear)
			if err != nil {
				return nil, err
			}
			if offered[edited.SemNum] && !inEdited[name] {
				continue
			}
		}
		next = append(next, name)
		present[name] = true
	}

	for _, yl := range yearLong {
		if !present[yl.name] && yl.offered[sibling.SemNum] {
			next = append(next, yl.name)
			present[yl.name] = true
		}
	}
	return next, nil
}

func (p *Propagator) offeredSet(ctx context.Context, code, acadYear string) (map[int]bool, error) {
	terms, err := p.catalog.TermsOffered(ctx, code, acadYear)
	if err != nil {
		return nil, err
	}
	set := make(map[int]bool, len(terms))
	for _, s := range terms {
		set[s] = true
	}
	return set, nil
}
