package planner

import (
	"errors"
	"fmt"
)

// ErrTermNotInLayout 学期不在该学生的规划范围内
var ErrTermNotInLayout = errors.New("学期不在规划范围内")

// Grid 各学期的默认选课（界面展示用，未必已通过校验）
// 元素为课程展示名 "CODE Title"
type Grid struct {
	layout []Term
	cells  map[Term][]string
}

// NewGrid 按学期布局创建空网格
func NewGrid(layout []Term) *Grid {
	terms := append([]Term(nil), layout...)
	SortTerms(terms)
	cells := make(map[Term][]string, len(terms))
	for _, t := range terms {
		cells[t] = []string{}
	}
	return &Grid{layout: terms, cells: cells}
}

// Layout 网格覆盖的全部学期（时间序）
func (g *Grid) Layout() []Term {
	return append([]Term(nil), g.layout...)
}

// Has 学期是否在网格内
func (g *Grid) Has(term Term) bool {
	_, ok := g.cells[term]
	return ok
}

// Get 学期的默认选课副本
func (g *Grid) Get(term Term) []string {
	return append([]string{}, g.cells[term]...)
}

// Set 覆盖学期的默认选课
func (g *Grid) Set(term Term, names []string) error {
	if !g.Has(term) {
		return fmt.Errorf("%w: %s", ErrTermNotInLayout, term)
	}
	g.cells[term] = append([]string{}, names...)
	return nil
}

// Clear 清空所有学期的默认选课，保留布局
func (g *Grid) Clear() {
	for t := range g.cells {
		g.cells[t] = []string{}
	}
}

// After 严格晚于 term 的学期（同学年后续学期 + 之后所有学年）
func (g *Grid) After(term Term) []Term {
	var out []Term
	for _, t := range g.layout {
		if term.Before(t) {
			out = append(out, t)
		}
	}
	return out
}

// Siblings 与 term 同学年的其他学期
func (g *Grid) Siblings(term Term) []Term {
	var out []Term
	for _, t := range g.layout {
		if t.AcadYear == term.AcadYear && t != term {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot 按学年 → 学期编号 → 展示名列表导出
func (g *Grid) Snapshot() map[string]map[int][]string {
	out := make(map[string]map[int][]string)
	for _, t := range g.layout {
		if out[t.AcadYear] == nil {
			out[t.AcadYear] = make(map[int][]string)
		}
		out[t.AcadYear][t.SemNum] = g.Get(t)
	}
	return out
}
