package dto

// ── 选课规划 DTO ──

// TermRef 学期标识
type TermRef struct {
	AcadYear string `json:"acad_year" binding:"required,acadyear"` // "2024-2025"
	SemNum   int    `json:"sem_num"   binding:"required,min=1,max=4"`
}

// StartSessionRequest 开始规划会话请求
type StartSessionRequest struct {
	FirstTerm    *TermRef `json:"first_term"`    // 适用首学期学分上限的学期，缺省为入学学年第一个学期
	IncludeIBLOC *bool    `json:"include_ibloc"` // 是否包含入学前的 IBLOC 学期，缺省按配置
}

// EditDefaultsRequest 修改某学期默认选课
// 元素为课程展示名 "CODE Title"，仅取第一个空格前的部分作为课程代码
type EditDefaultsRequest struct {
	Modules []string `json:"modules" binding:"omitempty,max=20,dive,min=2,max=300"`
}

// SubmitTermRequest 提交某学期选课；缺省或 null 时使用当前默认选课，[] 表示该学期不选课
type SubmitTermRequest struct {
	Modules []string `json:"modules" binding:"omitempty,max=20,dive,min=2,max=300"`
}

// ResetSessionRequest 重置规划会话
type ResetSessionRequest struct {
	RetainDefaults bool `json:"retain_defaults"`
}

// OutcomeResponse 校验结果
type OutcomeResponse struct {
	Kind        string   `json:"kind"` // accept | accept_with_warning | reject
	Rule        string   `json:"rule"`
	Message     string   `json:"message"`
	FailedCodes []string `json:"failed_codes,omitempty"`
}

// TermResultResponse 单个学期的校验结果
type TermResultResponse struct {
	AcadYear string          `json:"acad_year"`
	SemNum   int             `json:"sem_num"`
	Credits  string          `json:"credits"`
	Outcome  OutcomeResponse `json:"outcome"`
}

// TermStateResponse 单个学期的默认选课与记录状态
type TermStateResponse struct {
	AcadYear      string   `json:"acad_year"`
	SemNum        int      `json:"sem_num"`
	SemName       string   `json:"sem_name"`
	Defaults      []string `json:"defaults"`
	Recorded      bool     `json:"recorded"`
	RecordedCodes []string `json:"recorded_codes,omitempty"`
	Credits       string   `json:"credits,omitempty"`
}

// SessionResponse 规划会话状态
type SessionResponse struct {
	SessionID            string              `json:"session_id"`
	StudentID            string              `json:"student_id"`
	Major                string              `json:"major"`
	MatriculationAY      string              `json:"matriculation_ay"`
	State                string              `json:"state"` // empty | partial | invalid
	Complete             bool                `json:"complete"`
	TotalCredits         string              `json:"total_credits"`
	MinCreditsToGraduate string              `json:"min_credits_to_graduate"`
	MaxCreditsFirstTerm  string              `json:"max_credits_first_term"`
	FirstTerm            TermRef             `json:"first_term"`
	Terms                []TermStateResponse `json:"terms"`
	MemoHits             int                 `json:"memo_hits"`
	MemoMisses           int                 `json:"memo_misses"`
	ExpiresAt            string              `json:"expires_at"`
}

// SubmitTermResponse 提交学期响应
type SubmitTermResponse struct {
	Result  TermResultResponse `json:"result"`
	Session *SessionResponse   `json:"session"`
}

// EvaluateResponse 整体重新评估响应
type EvaluateResponse struct {
	Results []TermResultResponse `json:"results"`
	Session *SessionResponse     `json:"session"`
}

// ChoicesResponse 某学期可选课程
type ChoicesResponse struct {
	AcadYear string   `json:"acad_year"`
	SemNum   int      `json:"sem_num"`
	Choices  []string `json:"choices"`
}

// SavePlanResponse 保存计划响应
type SavePlanResponse struct {
	Terms       int `json:"terms"`
	Enrollments int `json:"enrollments"`
}
