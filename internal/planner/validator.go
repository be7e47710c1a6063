package planner

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/sync/errgroup"
)

// PrereqSource 先修树查询（外部课程目录 API）
// 失败即为硬错误，调用方不得降级为警告
type PrereqSource interface {
	PrereqTree(ctx context.Context, code, acadYear string) (*PrereqTree, error)
}

// Selection 待校验的单学期选课及其上下文
type Selection struct {
	Term        Term
	Codes       []string
	Credits     *big.Rat
	MinCredits  *big.Rat
	MaxCredits  *big.Rat // nil 表示无上限（仅首个学期设置）
	Outstanding *big.Rat // 本学期之前距毕业仍差的学分
	Internships CodeSet  // 计学分实习课程
}

// YearOverrides 先修树年份替换，如 {"2022-2023": "2023-2024"}
type YearOverrides map[string]string

// NewYearOverrides 复制配置中的替换表
func NewYearOverrides(m map[string]string) YearOverrides {
	out := make(YearOverrides, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Resolve 返回实际用于查询先修树的学年；未配置或目标为空时原样返回
func (y YearOverrides) Resolve(acadYear string) string {
	if to, ok := y[acadYear]; ok && to != "" {
		return to
	}
	return acadYear
}

// ValidatorOptions 校验器选项
type ValidatorOptions struct {
	YearOverrides YearOverrides
	// Concurrency 单次校验内并行拉取先修树的上限，<=0 时串行
	Concurrency int
}

// Validator 单学期选课校验器
type Validator struct {
	prereqs     PrereqSource
	years       YearOverrides
	concurrency int
}

// NewValidator 创建 Validator
func NewValidator(prereqs PrereqSource, opts ValidatorOptions) *Validator {
	return &Validator{
		prereqs:     prereqs,
		years:       NewYearOverrides(opts.YearOverrides),
		concurrency: opts.Concurrency,
	}
}

// ────────────────────── Validate ──────────────────────

// Validate 按顺序应用规则，首个命中的规则决定结果：
//  1. 计划已无效 → 拒绝
//  2. 低于最低学分，且未能覆盖剩余毕业学分，且未修计学分实习 → 拒绝
//  3. 超出首学期上限 → 拒绝
//  4. 先修树未满足 → 警告（先修数据不完整，只作提示）
//  5. 否则通过
//
// 本身无副作用；先修树拉取失败作为错误返回。
func (v *Validator) Validate(ctx context.Context, sel Selection, plan *Plan) (Outcome, error) {
	if plan != nil && plan.IsInvalid() {
		return Outcome{
			Kind:    OutcomeReject,
			Rule:    RulePlanInvalid,
			Message: "前序学期的选课已无效，请先检查",
		}, nil
	}

	credits := ratOrZero(sel.Credits)

	if sel.MinCredits != nil && credits.Cmp(sel.MinCredits) < 0 &&
		credits.Cmp(ratOrZero(sel.Outstanding)) < 0 &&
		!takesInternship(sel.Codes, sel.Internships) {
		return Outcome{
			Kind:    OutcomeReject,
			Rule:    RuleMinCredits,
			Message: fmt.Sprintf("未达到最低 %s 学分要求（当前 %s 学分）", FormatCredits(sel.MinCredits), FormatCredits(credits)),
		}, nil
	}

	if sel.MaxCredits != nil && credits.Cmp(sel.MaxCredits) > 0 {
		return Outcome{
			Kind:    OutcomeReject,
			Rule:    RuleMaxCredits,
			Message: fmt.Sprintf("超出首个学期 %s 学分上限（当前 %s 学分）", FormatCredits(sel.MaxCredits), FormatCredits(credits)),
		}, nil
	}

	completed := NewCodeSet()
	if plan != nil {
		completed = plan.CompletedCodesBefore(sel.Term)
	}

	failed, err := v.unmetPrereqs(ctx, sel.Codes, v.years.Resolve(sel.Term.AcadYear), completed)
	if err != nil {
		return Outcome{}, err
	}
	if len(failed) > 0 {
		return Outcome{
			Kind:        OutcomeWarning,
			Rule:        RulePrereqUnverified,
			Message:     fmt.Sprintf("以下课程的先修要求可能未满足：%s，请核实后再继续", strings.Join(failed, ", ")),
			FailedCodes: failed,
		}, nil
	}

	return Outcome{
		Kind:    OutcomeAccept,
		Rule:    RuleSatisfied,
		Message: "选课满足全部要求！",
	}, nil
}

// unmetPrereqs 并行拉取先修树并判定，返回未满足的课程（保持选课顺序）
func (v *Validator) unmetPrereqs(ctx context.Context, codes []string, acadYear string, completed CodeSet) ([]string, error) {
	unmet := make([]bool, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	if v.concurrency > 0 {
		g.SetLimit(v.concurrency)
	} else {
		g.SetLimit(1)
	}

	for i, code := range codes {
		i, code := i, code
		g.Go(func() error {
			tree, err := v.prereqs.PrereqTree(gctx, code, acadYear)
			if err != nil {
				return fmt.Errorf("获取 %s 先修树失败: %w", code, err)
			}
			ok, err := Satisfied(tree, completed)
			if err != nil {
				return fmt.Errorf("%s: %w", code, err)
			}
			unmet[i] = !ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed []string
	for i, code := range codes {
		if unmet[i] {
			failed = append(failed, code)
		}
	}
	return failed, nil
}

func takesInternship(codes []string, internships CodeSet) bool {
	for _, c := range codes {
		if internships.Has(c) {
			return true
		}
	}
	return false
}

func ratOrZero(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return r
}
