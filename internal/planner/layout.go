package planner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// ErrUnknownAcadYear 入学学年不在已知学年列表中
var ErrUnknownAcadYear = errors.New("未知学年")

// SemesterInfo 学期类型信息（编号、名称、最低学分）
type SemesterInfo struct {
	SemNum     int
	Name       string
	MinCredits *big.Rat
}

// LayoutOptions 构建学生规划学期布局所需参数
type LayoutOptions struct {
	AcadYears       []string // 已知学年，时间序
	MatriculationAY string
	NumYears        int
	Semesters       []SemesterInfo
	IBLOCSemNum     int // >0 时在入学前一学年加入单个 IBLOC 学期
}

// BuildLayout 生成学生需要规划的全部学期
// 入学学年起共 NumYears 个学年（以已知学年为上限），每学年包含全部学期类型
func BuildLayout(opts LayoutOptions) ([]Term, error) {
	idx := -1
	for i, ay := range opts.AcadYears {
		if ay == opts.MatriculationAY {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAcadYear, opts.MatriculationAY)
	}

	var terms []Term
	if opts.IBLOCSemNum > 0 && idx > 0 {
		terms = append(terms, Term{AcadYear: opts.AcadYears[idx-1], SemNum: opts.IBLOCSemNum})
	}

	end := idx + opts.NumYears
	if end > len(opts.AcadYears) {
		end = len(opts.AcadYears)
	}
	for _, ay := range opts.AcadYears[idx:end] {
		for _, sem := range opts.Semesters {
			terms = append(terms, Term{AcadYear: ay, SemNum: sem.SemNum})
		}
	}

	SortTerms(terms)
	return terms, nil
}

// FirstRegularTerm 入学学年的第一个学期（首学期学分上限适用）
func FirstRegularTerm(layout []Term, matriculationAY string) (Term, bool) {
	for _, t := range layout {
		if t.AcadYear == matriculationAY {
			return t, true
		}
	}
	return Term{}, false
}

// ── 可选课程 ──

// Offering 某学期开设的课程
type Offering struct {
	Code  string
	Title string
}

// DisplayName 展示名 "CODE Title"
func (o Offering) DisplayName() string {
	if o.Title == "" {
		return o.Code
	}
	return o.Code + " " + o.Title
}

// AvailableChoices 过滤出某学期仍可选的课程
//
// 之前学期已修的课程不再出现；例外是全年课程在同学年的上一个已记录学期中已选，需要继续修读。
// 计划已失效时返回空列表。
func AvailableChoices(ctx context.Context, catalog Catalog, plan *Plan, term Term, offered []Offering) ([]string, error) {
	if plan.IsInvalid() {
		return []string{}, nil
	}

	completed := plan.CompletedCodesBefore(term)
	prev, hasPrev := plan.PreviousTerm(term)
	prevCodes := NewCodeSet()
	if hasPrev && prev.Term.AcadYear == term.AcadYear {
		prevCodes = NewCodeSet(prev.Codes...)
	}

	names := make([]string, 0, len(offered))
	for _, o := range offered {
		if completed.Has(o.Code) {
			if !prevCodes.Has(o.Code) {
				continue
			}
			info, err := catalog.ModuleInfo(ctx, o.Code)
			if err != nil {
				return nil, err
			}
			if !info.YearLong {
				continue
			}
		}
		names = append(names, o.DisplayName())
	}
	return names, nil
}
