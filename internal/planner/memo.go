package planner

import (
	"context"

	"go.uber.org/zap"
)

// Memoizer 以规范化计划键缓存校验结果
//
// 每个规划会话独占一个实例，会话内无上限，仅在会话重置时清空。
// 错误结果不缓存。
type Memoizer struct {
	validator *Validator
	cache     map[PlanKey]Outcome
	hits      int
	misses    int
	logger    *zap.Logger
}

// NewMemoizer 创建 Memoizer
func NewMemoizer(validator *Validator, logger *zap.Logger) *Memoizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memoizer{
		validator: validator,
		cache:     make(map[PlanKey]Outcome),
		logger:    logger,
	}
}

// Validate 命中缓存直接返回，否则调用 Validator 并写入缓存
func (m *Memoizer) Validate(ctx context.Context, sel Selection, plan *Plan) (Outcome, error) {
	if plan != nil && plan.IsInvalid() {
		return m.validator.Validate(ctx, sel, plan)
	}
	if plan == nil {
		plan = NewPlan()
	}

	key := plan.KeyWith(sel.Term, sel.Codes)
	if out, ok := m.cache[key]; ok {
		m.hits++
		m.logger.Debug("校验结果命中缓存", zap.String("term", sel.Term.String()), zap.String("key", string(key)))
		return clonedOutcome(out), nil
	}

	out, err := m.validator.Validate(ctx, sel, plan)
	if err != nil {
		return Outcome{}, err
	}
	m.misses++
	m.cache[key] = clonedOutcome(out)
	m.logger.Debug("校验结果已缓存", zap.String("term", sel.Term.String()), zap.String("kind", string(out.Kind)))
	return out, nil
}

// Len 缓存条目数
func (m *Memoizer) Len() int { return len(m.cache) }

// Stats 命中与未命中次数
func (m *Memoizer) Stats() (hits, misses int) { return m.hits, m.misses }

// Clear 清空缓存
func (m *Memoizer) Clear() {
	m.cache = make(map[PlanKey]Outcome)
	m.hits, m.misses = 0, 0
}
