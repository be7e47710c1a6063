package planner

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// ErrRepeatedModule 课程已在之前学期修读（同学年连续的全年课程除外）
var ErrRepeatedModule = errors.New("课程已在之前学期修读")

// Requirements 与学生专业相关的学分规则
type Requirements struct {
	Semesters            []SemesterInfo
	MinCreditsToGraduate *big.Rat
	MaxCreditsFirstTerm  *big.Rat
	FirstTerm            Term // 适用首学期上限的学期，由调用方决定
}

// SessionConfig 创建规划会话所需依赖
type SessionConfig struct {
	ID           string
	Layout       []Term
	Requirements Requirements
	Internships  CodeSet
	Catalog      Catalog
	Prereqs      PrereqSource
	Validator    ValidatorOptions
	Logger       *zap.Logger
}

// TermResult 提交一个学期后的结果
type TermResult struct {
	Term    Term
	Outcome Outcome
	Credits *big.Rat
}

// Session 单个学生的规划会话：计划 + 默认选课网格 + 校验缓存
// 会话之间不共享任何可变状态；同一会话非并发安全，由调用方串行化
type Session struct {
	id          string
	reqs        Requirements
	minByTerm   map[int]*big.Rat
	internships CodeSet
	catalog     Catalog

	plan       *Plan
	grid       *Grid
	memo       *Memoizer
	propagator *Propagator
	logger     *zap.Logger
}

// NewSession 创建规划会话
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session_id", cfg.ID))

	minByTerm := make(map[int]*big.Rat, len(cfg.Requirements.Semesters))
	for _, s := range cfg.Requirements.Semesters {
		minByTerm[s.SemNum] = s.MinCredits
	}

	internships := cfg.Internships
	if internships == nil {
		internships = NewCodeSet()
	}

	return &Session{
		id:          cfg.ID,
		reqs:        cfg.Requirements,
		minByTerm:   minByTerm,
		internships: internships,
		catalog:     cfg.Catalog,
		plan:        NewPlan(),
		grid:        NewGrid(cfg.Layout),
		memo:        NewMemoizer(NewValidator(cfg.Prereqs, cfg.Validator), logger),
		propagator:  NewPropagator(cfg.Catalog),
		logger:      logger,
	}
}

// ── 只读访问 ──

func (s *Session) ID() string { return s.id }
func (s *Session) Plan() *Plan { return s.plan }
func (s *Session) Grid() *Grid { return s.grid }
func (s *Session) Layout() []Term { return s.grid.Layout() }
func (s *Session) TotalCredits() *big.Rat { return s.plan.TotalCredits() }
func (s *Session) Requirements() Requirements { return s.reqs }
func (s *Session) MemoStats() (hits, misses int) { return s.memo.Stats() }

// Complete 计划有效且布局内每个学期都已记录
func (s *Session) Complete() bool {
	if s.plan.IsInvalid() {
		return false
	}
	for _, t := range s.grid.Layout() {
		if _, ok := s.plan.Selection(t); !ok {
			return false
		}
	}
	return true
}

// ────────────────────── EditTerm ──────────────────────

// EditTerm 用户修改某学期默认选课，传播到后续学期及同学年兄弟学期
func (s *Session) EditTerm(ctx context.Context, term Term, names []string) error {
	if err := s.propagator.OnTermEdited(ctx, term, names, s.grid); err != nil {
		s.logger.Warn("默认选课传播失败", zap.String("term", term.String()), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── SubmitTerm ──────────────────────

// SubmitTerm 校验某学期选课并据结果更新计划
// 通过（含警告）→ 记录到计划并丢弃更晚学期的记录；拒绝 → 计划失效并清空该学期及之后的默认选课
func (s *Session) SubmitTerm(ctx context.Context, term Term, names []string) (TermResult, error) {
	if !s.grid.Has(term) {
		return TermResult{}, fmt.Errorf("%w: %s", ErrTermNotInLayout, term)
	}

	codes := ModuleCodes(names)
	credits, err := TotalCredits(ctx, s.catalog, codes, term.AcadYear)
	if err != nil {
		return TermResult{}, err
	}
	result := TermResult{Term: term, Credits: credits}

	if s.plan.IsInvalid() {
		result.Outcome = Outcome{
			Kind:    OutcomeReject,
			Rule:    RulePlanInvalid,
			Message: "前序学期的选课已无效，请先检查",
		}
		return result, nil
	}

	if err := s.checkRepeats(ctx, term, codes); err != nil {
		return TermResult{}, err
	}

	out, err := s.memo.Validate(ctx, s.selectionFor(term, codes, credits), s.plan)
	if err != nil {
		s.logger.Error("选课校验失败", zap.String("term", term.String()), zap.Error(err))
		return TermResult{}, err
	}
	result.Outcome = out

	if out.Accepted() {
		s.plan.Extend(term, codes, credits)
		if dropped := s.plan.DropAfter(term); len(dropped) > 0 {
			s.logger.Info("更早学期重新提交，丢弃之后学期的记录",
				zap.String("term", term.String()), zap.Int("dropped", len(dropped)))
		}
		_ = s.grid.Set(term, names)
	} else {
		s.Invalidate(term)
	}
	return result, nil
}

// Evaluate 从空计划开始按时间序依次提交各学期的默认选课
// 缓存保留，未变化的前缀不会重复拉取先修树
func (s *Session) Evaluate(ctx context.Context) ([]TermResult, error) {
	s.plan.Reset()
	layout := s.grid.Layout()
	results := make([]TermResult, 0, len(layout))
	for _, t := range layout {
		res, err := s.SubmitTerm(ctx, t, s.grid.Get(t))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Invalidate 计划置为失效，并清空该学期及之后各学期的默认选课
func (s *Session) Invalidate(term Term) {
	s.plan.Invalidate()
	if s.grid.Has(term) {
		_ = s.grid.Set(term, nil)
	}
	for _, t := range s.grid.After(term) {
		_ = s.grid.Set(t, nil)
	}
}

// Reset 开始新的规划：清空计划与缓存；retainGrid 为 false 时同时清空默认选课
func (s *Session) Reset(retainGrid bool) {
	s.plan.Reset()
	s.memo.Clear()
	if !retainGrid {
		s.grid.Clear()
	}
}

// ── 内部辅助方法 ──

func (s *Session) selectionFor(term Term, codes []string, credits *big.Rat) Selection {
	outstanding := new(big.Rat)
	if s.reqs.MinCreditsToGraduate != nil {
		outstanding.Sub(s.reqs.MinCreditsToGraduate, s.plan.CreditsBefore(term))
	}

	var maxCredits *big.Rat
	if term == s.reqs.FirstTerm {
		maxCredits = s.reqs.MaxCreditsFirstTerm
	}

	return Selection{
		Term:        term,
		Codes:       codes,
		Credits:     credits,
		MinCredits:  s.minByTerm[term.SemNum],
		MaxCredits:  maxCredits,
		Outstanding: outstanding,
		Internships: s.internships,
	}
}

// checkRepeats 保证同一课程只在同学年连续的全年课程中重复出现
// 之前和之后已记录的学期都参与检查
func (s *Session) checkRepeats(ctx context.Context, term Term, codes []string) error {
	records := s.plan.Records()
	if len(records) == 0 {
		return nil
	}
	for _, code := range codes {
		earlier, later := recordedAround(records, term, code)
		if earlier == nil && later == nil {
			continue
		}
		info, err := s.catalog.ModuleInfo(ctx, code)
		if err != nil {
			return err
		}
		if !info.YearLong ||
			(earlier != nil && earlier.AcadYear != term.AcadYear) ||
			(later != nil && later.AcadYear != term.AcadYear) {
			return fmt.Errorf("%w: %s", ErrRepeatedModule, code)
		}
	}
	return nil
}

// recordedAround 返回 term 之前最早、之后最晚记录了 code 的学期
func recordedAround(records []TermSelection, term Term, code string) (earlier, later *Term) {
	for i := range records {
		rec := records[i]
		if rec.Term == term || !containsCode(rec.Codes, code) {
			continue
		}
		t := rec.Term
		if t.Before(term) {
			if earlier == nil {
				earlier = &t
			}
		} else {
			later = &t
		}
	}
	return earlier, later
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
