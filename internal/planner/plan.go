package planner

import (
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// PlanState 计划状态机：Empty → Partial → Invalid（终态，直至 Reset）
type PlanState string

const (
	PlanEmpty   PlanState = "empty"
	PlanPartial PlanState = "partial"
	PlanInvalid PlanState = "invalid"
)

// TermSelection 计划中已记录的单个学期
type TermSelection struct {
	Term    Term
	Codes   []string
	Credits *big.Rat
}

// Plan 按学期记录已通过校验的选课
//
// 学期以显式排序的切片保存，不依赖 map 遍历顺序。
// invalid 为 true 时表示之前某学期已被拒绝，此后 Extend 均为空操作。
type Plan struct {
	invalid bool
	terms   []Term
	records map[Term]TermSelection
	total   *big.Rat
}

// NewPlan 创建空计划
func NewPlan() *Plan {
	return &Plan{
		records: make(map[Term]TermSelection),
		total:   new(big.Rat),
	}
}

// State 当前状态
func (p *Plan) State() PlanState {
	switch {
	case p.invalid:
		return PlanInvalid
	case len(p.terms) == 0:
		return PlanEmpty
	default:
		return PlanPartial
	}
}

// IsInvalid 计划是否已失效
func (p *Plan) IsInvalid() bool { return p.invalid }

// Extend 记录某学期的选课并累加学分；已失效时为空操作。
// 重复记录同一学期会替换旧记录并相应修正总学分。
func (p *Plan) Extend(term Term, codes []string, credits *big.Rat) {
	if p.invalid {
		return
	}

	c := new(big.Rat)
	if credits != nil {
		c.Set(credits)
	}

	if old, ok := p.records[term]; ok {
		p.total.Sub(p.total, old.Credits)
	} else {
		idx := sort.Search(len(p.terms), func(i int) bool { return !p.terms[i].Before(term) })
		p.terms = append(p.terms, Term{})
		copy(p.terms[idx+1:], p.terms[idx:])
		p.terms[idx] = term
	}

	p.records[term] = TermSelection{
		Term:    term,
		Codes:   append([]string(nil), codes...),
		Credits: c,
	}
	p.total.Add(p.total, c)
}

// DropAfter 删除严格晚于 term 的学期记录并扣除其学分，返回被删除的学期
func (p *Plan) DropAfter(term Term) []Term {
	idx := sort.Search(len(p.terms), func(i int) bool { return term.Before(p.terms[i]) })
	if idx == len(p.terms) {
		return nil
	}
	dropped := append([]Term(nil), p.terms[idx:]...)
	for _, t := range dropped {
		p.total.Sub(p.total, p.records[t].Credits)
		delete(p.records, t)
	}
	p.terms = p.terms[:idx]
	return dropped
}

// Invalidate 将计划置为失效哨兵状态
func (p *Plan) Invalidate() {
	p.invalid = true
	p.terms = nil
	p.records = make(map[Term]TermSelection)
	p.total = new(big.Rat)
}

// Reset 回到空计划（新的规划会话）
func (p *Plan) Reset() {
	p.invalid = false
	p.terms = nil
	p.records = make(map[Term]TermSelection)
	p.total = new(big.Rat)
}

// Terms 已记录学期（时间序）
func (p *Plan) Terms() []Term {
	return append([]Term(nil), p.terms...)
}

// Selection 某学期已记录的课程代码
func (p *Plan) Selection(term Term) ([]string, bool) {
	rec, ok := p.records[term]
	if !ok {
		return nil, false
	}
	return append([]string(nil), rec.Codes...), true
}

// Records 全部已记录学期（时间序）
func (p *Plan) Records() []TermSelection {
	out := make([]TermSelection, 0, len(p.terms))
	for _, t := range p.terms {
		rec := p.records[t]
		out = append(out, TermSelection{
			Term:    rec.Term,
			Codes:   append([]string(nil), rec.Codes...),
			Credits: new(big.Rat).Set(rec.Credits),
		})
	}
	return out
}

// TotalCredits 已记录的总学分
func (p *Plan) TotalCredits() *big.Rat {
	return new(big.Rat).Set(p.total)
}

// CompletedCodesBefore 严格早于 term 的各学期课程代码并集
func (p *Plan) CompletedCodesBefore(term Term) CodeSet {
	done := NewCodeSet()
	for _, t := range p.terms {
		if !t.Before(term) {
			break
		}
		for _, c := range p.records[t].Codes {
			done.Add(c)
		}
	}
	return done
}

// CreditsBefore 严格早于 term 的各学期学分之和
func (p *Plan) CreditsBefore(term Term) *big.Rat {
	sum := new(big.Rat)
	for _, t := range p.terms {
		if !t.Before(term) {
			break
		}
		sum.Add(sum, p.records[t].Credits)
	}
	return sum
}

// PreviousTerm 严格早于 term 的最近一个已记录学期
func (p *Plan) PreviousTerm(term Term) (TermSelection, bool) {
	var (
		prev  TermSelection
		found bool
	)
	for _, t := range p.terms {
		if !t.Before(term) {
			break
		}
		prev, found = p.records[t], true
	}
	return prev, found
}

// ── 规范化键 ──

// PlanKey 计划的规范化编码，可比较、可作 map 键
type PlanKey string

// KeyWith 以 term 之前的已记录学期加上候选选课生成规范化键
//
// 学期按时间序排列；学期内课程代码排序去重，与插入顺序无关。
func (p *Plan) KeyWith(term Term, codes []string) PlanKey {
	var b strings.Builder
	for _, t := range p.terms {
		if !t.Before(term) {
			break
		}
		writeTermKey(&b, t, p.records[t].Codes)
	}
	writeTermKey(&b, term, codes)
	return PlanKey(b.String())
}

func writeTermKey(b *strings.Builder, term Term, codes []string) {
	b.WriteString(term.AcadYear)
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(term.SemNum))
	b.WriteByte(':')
	b.WriteString(strings.Join(NewCodeSet(codes...).Sorted(), ","))
	b.WriteByte(';')
}
