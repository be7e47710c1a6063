package planner

// OutcomeKind 校验结果分类
type OutcomeKind string

const (
	OutcomeAccept  OutcomeKind = "accept"
	OutcomeWarning OutcomeKind = "accept_with_warning"
	OutcomeReject  OutcomeKind = "reject"
)

// 触发结果的规则
const (
	RuleSatisfied        = "satisfied"
	RulePlanInvalid      = "plan_invalid"
	RuleMinCredits       = "min_credits"
	RuleMaxCredits       = "max_credits"
	RulePrereqUnverified = "prereq_unverified"
)

// Outcome 单个学期选课的校验结果
type Outcome struct {
	Kind        OutcomeKind `json:"kind"`
	Rule        string      `json:"rule"`
	Message     string      `json:"message"`
	FailedCodes []string    `json:"failed_codes,omitempty"`
}

// Accepted 结果是否允许计划继续推进（含警告）
func (o Outcome) Accepted() bool {
	return o.Kind == OutcomeAccept || o.Kind == OutcomeWarning
}

func clonedOutcome(o Outcome) Outcome {
	if o.FailedCodes != nil {
		o.FailedCodes = append([]string(nil), o.FailedCodes...)
	}
	return o
}
