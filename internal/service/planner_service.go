package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-planner/backend/config"
	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/model"
	"course-planner/backend/internal/planner"
	"course-planner/backend/internal/repository"
)

// ── 选课规划业务错误 ──

var (
	ErrProfileRequired    = errors.New("请先填写学生档案")
	ErrMajorNotFound      = errors.New("专业不存在")
	ErrUnknownMatricYear  = errors.New("入学学年不在课程目录中")
	ErrPlanIncomplete     = errors.New("计划尚未完成或已无效，无法保存")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// PlannerService 选课规划业务接口
//
// 会话状态保存在进程内，所有方法都以 userID 校验会话归属。
type PlannerService interface {
	StartSession(ctx context.Context, userID string, req *dto.StartSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, userID, sessionID string) (*dto.SessionResponse, error)
	CloseSession(ctx context.Context, userID, sessionID string) error
	ResetSession(ctx context.Context, userID, sessionID string, req *dto.ResetSessionRequest) (*dto.SessionResponse, error)
	ListChoices(ctx context.Context, userID, sessionID string, term dto.TermRef) (*dto.ChoicesResponse, error)
	EditDefaults(ctx context.Context, userID, sessionID string, term dto.TermRef, req *dto.EditDefaultsRequest) (*dto.SessionResponse, error)
	SubmitTerm(ctx context.Context, userID, sessionID string, term dto.TermRef, req *dto.SubmitTermRequest) (*dto.SubmitTermResponse, error)
	Evaluate(ctx context.Context, userID, sessionID string) (*dto.EvaluateResponse, error)
	SavePlan(ctx context.Context, userID, sessionID string) (*dto.SavePlanResponse, error)
	ExportPlan(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error)
}

type plannerService struct {
	cfg     *config.Config
	repo    *repository.Repository
	catalog *CatalogCache
	prereqs planner.PrereqSource
	store   *SessionStore
	logger  *zap.Logger
}

// NewPlannerService 创建 PlannerService 实例
func NewPlannerService(
	cfg *config.Config,
	repo *repository.Repository,
	catalog *CatalogCache,
	prereqs planner.PrereqSource,
	store *SessionStore,
	logger *zap.Logger,
) PlannerService {
	return &plannerService{
		cfg:     cfg,
		repo:    repo,
		catalog: catalog,
		prereqs: prereqs,
		store:   store,
		logger:  logger,
	}
}

// ────────────────────── StartSession ──────────────────────

func (s *plannerService) StartSession(ctx context.Context, userID string, req *dto.StartSessionRequest) (*dto.SessionResponse, error) {
	student, err := s.repo.Student.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileRequired
		}
		s.logger.Error("查询学生档案失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	major, err := s.repo.Major.GetByName(ctx, student.Major)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMajorNotFound
		}
		s.logger.Error("查询专业失败", zap.String("major", student.Major), zap.Error(err))
		return nil, err
	}

	years, err := s.repo.AcadYear.List(ctx)
	if err != nil {
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, err
	}
	semesters, err := s.semesterInfos(ctx)
	if err != nil {
		return nil, err
	}

	includeIBLOC := s.cfg.Planner.IncludeIBLOC
	if req != nil && req.IncludeIBLOC != nil {
		includeIBLOC = *req.IncludeIBLOC
	}
	iblocSem := 0
	if includeIBLOC {
		iblocSem = s.cfg.Planner.IBLOCSemNum
	}

	layout, err := planner.BuildLayout(planner.LayoutOptions{
		AcadYears:       years,
		MatriculationAY: student.MatriculationAY,
		NumYears:        major.NumYears,
		Semesters:       semesters,
		IBLOCSemNum:     iblocSem,
	})
	if err != nil {
		if errors.Is(err, planner.ErrUnknownAcadYear) {
			return nil, ErrUnknownMatricYear
		}
		return nil, err
	}

	firstTerm, _ := planner.FirstRegularTerm(layout, student.MatriculationAY)
	if req != nil && req.FirstTerm != nil {
		firstTerm = toTerm(*req.FirstTerm)
		if !containsTerm(layout, firstTerm) {
			return nil, fmt.Errorf("%w: %s", planner.ErrTermNotInLayout, firstTerm)
		}
	}

	internships, err := s.repo.Internship.ListCodes(ctx)
	if err != nil {
		s.logger.Error("查询计学分实习失败", zap.Error(err))
		return nil, err
	}

	minGrad := big.NewRat(int64(major.NumYears*s.cfg.Planner.AverageCreditsPerYear), 1)
	session := planner.NewSession(planner.SessionConfig{
		ID:     uuid.NewString(),
		Layout: layout,
		Requirements: planner.Requirements{
			Semesters:            semesters,
			MinCreditsToGraduate: minGrad,
			MaxCreditsFirstTerm:  big.NewRat(int64(s.cfg.Planner.MaxCreditsFirstTerm), 1),
			FirstTerm:            firstTerm,
		},
		Internships: planner.NewCodeSet(internships...),
		Catalog:     s.catalog,
		Prereqs:     s.prereqs,
		Validator: planner.ValidatorOptions{
			YearOverrides: s.cfg.Planner.PrereqYearOverrides,
			Concurrency:   s.cfg.NUSMods.FetchConcurrency,
		},
		Logger: s.logger,
	})

	if err := s.loadSavedDefaults(ctx, userID, session); err != nil {
		return nil, err
	}

	semNames := make(map[int]string, len(semesters))
	for _, sem := range semesters {
		semNames[sem.SemNum] = sem.Name
	}
	entry := &plannerEntry{
		session:  session,
		ownerID:  userID,
		major:    student.Major,
		matricAY: student.MatriculationAY,
		semNames: semNames,
	}
	s.store.Put(entry)

	s.logger.Info("创建规划会话",
		zap.String("session_id", session.ID()),
		zap.String("user_id", userID),
		zap.Int("terms", len(layout)),
	)
	return s.toSessionResponse(entry), nil
}

// ────────────────────── GetSession ──────────────────────

func (s *plannerService) GetSession(_ context.Context, userID, sessionID string) (*dto.SessionResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return s.toSessionResponse(entry), nil
}

// ────────────────────── CloseSession ──────────────────────

func (s *plannerService) CloseSession(_ context.Context, userID, sessionID string) error {
	return s.store.Delete(sessionID, userID)
}

// ────────────────────── ResetSession ──────────────────────

func (s *plannerService) ResetSession(_ context.Context, userID, sessionID string, req *dto.ResetSessionRequest) (*dto.SessionResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.Reset(req != nil && req.RetainDefaults)
	return s.toSessionResponse(entry), nil
}

// ────────────────────── ListChoices ──────────────────────

func (s *plannerService) ListChoices(ctx context.Context, userID, sessionID string, ref dto.TermRef) (*dto.ChoicesResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	term := toTerm(ref)
	if !entry.session.Grid().Has(term) {
		return nil, fmt.Errorf("%w: %s", planner.ErrTermNotInLayout, term)
	}

	offered, err := s.catalog.OfferedModules(ctx, term)
	if err != nil {
		s.logger.Error("查询开设课程失败", zap.String("term", term.String()), zap.Error(err))
		return nil, err
	}
	choices, err := planner.AvailableChoices(ctx, s.catalog, entry.session.Plan(), term, offered)
	if err != nil {
		return nil, err
	}

	return &dto.ChoicesResponse{
		AcadYear: term.AcadYear,
		SemNum:   term.SemNum,
		Choices:  choices,
	}, nil
}

// ────────────────────── EditDefaults ──────────────────────

func (s *plannerService) EditDefaults(ctx context.Context, userID, sessionID string, ref dto.TermRef, req *dto.EditDefaultsRequest) (*dto.SessionResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := entry.session.EditTerm(ctx, toTerm(ref), req.Modules); err != nil {
		return nil, err
	}
	return s.toSessionResponse(entry), nil
}

// ────────────────────── SubmitTerm ──────────────────────

func (s *plannerService) SubmitTerm(ctx context.Context, userID, sessionID string, ref dto.TermRef, req *dto.SubmitTermRequest) (*dto.SubmitTermResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	term := toTerm(ref)
	names := req.Modules
	if names == nil {
		names = entry.session.Grid().Get(term)
	}

	res, err := entry.session.SubmitTerm(ctx, term, names)
	if err != nil {
		return nil, err
	}
	termSubmissions.WithLabelValues(string(res.Outcome.Kind)).Inc()

	return &dto.SubmitTermResponse{
		Result:  toTermResult(res),
		Session: s.toSessionResponse(entry),
	}, nil
}

// ────────────────────── Evaluate ──────────────────────

func (s *plannerService) Evaluate(ctx context.Context, userID, sessionID string) (*dto.EvaluateResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	results, err := entry.session.Evaluate(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.TermResultResponse, 0, len(results))
	for _, r := range results {
		termSubmissions.WithLabelValues(string(r.Outcome.Kind)).Inc()
		out = append(out, toTermResult(r))
	}
	return &dto.EvaluateResponse{
		Results: out,
		Session: s.toSessionResponse(entry),
	}, nil
}

// ────────────────────── SavePlan ──────────────────────

// SavePlan 计划完整且有效时，以计划整体替换该学生已保存的选课记录
func (s *plannerService) SavePlan(ctx context.Context, userID, sessionID string) (*dto.SavePlanResponse, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if !entry.session.Complete() {
		return nil, ErrPlanIncomplete
	}

	records := entry.session.Plan().Records()
	rows := make([]model.Enrollment, 0)
	for _, rec := range records {
		for _, code := range rec.Codes {
			rows = append(rows, model.Enrollment{
				StudentID:  userID,
				ModuleCode: code,
				AcadYear:   rec.Term.AcadYear,
				SemNum:     rec.Term.SemNum,
			})
		}
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Enrollment.DeleteByStudent(ctx, userID); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("删除旧选课记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	if err := txRepo.Enrollment.CreateBatch(ctx, rows); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("写入选课记录失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("保存选课计划",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
		zap.Int("enrollments", len(rows)),
	)
	return &dto.SavePlanResponse{Terms: len(records), Enrollments: len(rows)}, nil
}

// ═══════════════════════════════════════════════════════════
// ExportPlan 导出计划为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 每个学年一个 Sheet，列为 学期 / 课程代码 / 课程名称 / 学分 / 状态
//   - 已记录的学期状态为"已校验"，其余学期导出默认选课并标注"未校验"
//   - 末尾 Sheet "汇总" 列出计划状态与总学分

func (s *plannerService) ExportPlan(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error) {
	entry, err := s.store.Get(sessionID, userID)
	if err != nil {
		return nil, "", err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	session := entry.session
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	sheets := make(map[string]int) // 学年 → 下一行
	for _, term := range session.Layout() {
		sheet := term.AcadYear
		row, ok := sheets[sheet]
		if !ok {
			if _, err := f.NewSheet(sheet); err != nil {
				s.logger.Error("创建 Sheet 失败", zap.String("sheet", sheet), zap.Error(err))
				return nil, "", ErrExportGenerateFail
			}
			f.SetColWidth(sheet, "A", "A", 18)
			f.SetColWidth(sheet, "B", "B", 12)
			f.SetColWidth(sheet, "C", "C", 44)
			f.SetColWidth(sheet, "D", "E", 10)
			for i, h := range []string{"学期", "课程代码", "课程名称", "学分", "状态"} {
				f.SetCellValue(sheet, cell(colName(i), 1), h)
			}
			f.SetCellStyle(sheet, "A1", "E1", headerStyle)
			row = 2
		}

		codes, recorded := session.Plan().Selection(term)
		status := "已校验"
		if !recorded {
			codes = planner.ModuleCodes(session.Grid().Get(term))
			status = "未校验"
		}
		for _, code := range codes {
			info, err := s.catalog.ModuleInfo(ctx, code)
			if err != nil {
				return nil, "", err
			}
			credit, err := planner.TermCredit(ctx, s.catalog, code, term.AcadYear)
			if err != nil {
				return nil, "", err
			}
			f.SetCellValue(sheet, cell("A", row), entry.semName(term.SemNum))
			f.SetCellValue(sheet, cell("B", row), code)
			f.SetCellValue(sheet, cell("C", row), info.Title)
			f.SetCellValue(sheet, cell("D", row), planner.FormatCredits(credit))
			f.SetCellValue(sheet, cell("E", row), status)
			row++
		}
		sheets[sheet] = row
	}

	summary := "汇总"
	if _, err := f.NewSheet(summary); err != nil {
		return nil, "", ErrExportGenerateFail
	}
	f.SetColWidth(summary, "A", "A", 16)
	f.SetColWidth(summary, "B", "B", 24)
	reqs := session.Requirements()
	summaryRows := [][2]string{
		{"专业", entry.major},
		{"入学学年", entry.matricAY},
		{"计划状态", string(session.Plan().State())},
		{"已记录学分", planner.FormatCredits(session.TotalCredits())},
		{"毕业最低学分", planner.FormatCredits(reqs.MinCreditsToGraduate)},
	}
	for i, r := range summaryRows {
		f.SetCellValue(summary, cell("A", i+1), r[0])
		f.SetCellValue(summary, cell("B", i+1), r[1])
	}
	f.SetCellStyle(summary, "A1", fmt.Sprintf("A%d", len(summaryRows)), headerStyle)

	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(summary); err == nil {
		f.SetActiveSheet(idx)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("选课计划_%s_%s.xlsx", entry.matricAY, time.Now().Format("20060102"))
	return buf, filename, nil
}

// ── 内部辅助方法 ──

func (s *plannerService) semesterInfos(ctx context.Context) ([]planner.SemesterInfo, error) {
	rows, err := s.repo.Semester.List(ctx)
	if err != nil {
		s.logger.Error("查询学期类型失败", zap.Error(err))
		return nil, err
	}
	out := make([]planner.SemesterInfo, 0, len(rows))
	for _, r := range rows {
		minCredits, ok := new(big.Rat).SetString(r.MinMCs)
		if !ok {
			return nil, fmt.Errorf("学期 %d 最低学分格式错误: %q", r.SemNum, r.MinMCs)
		}
		out = append(out, planner.SemesterInfo{SemNum: r.SemNum, Name: r.Name, MinCredits: minCredits})
	}
	return out, nil
}

// loadSavedDefaults 以已保存的选课记录作为各学期默认选课
func (s *plannerService) loadSavedDefaults(ctx context.Context, userID string, session *planner.Session) error {
	rows, err := s.repo.Enrollment.ListByStudent(ctx, userID)
	if err != nil {
		s.logger.Error("查询已保存选课失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	byTerm := make(map[planner.Term][]string)
	var codes []string
	for _, r := range rows {
		t := planner.Term{AcadYear: r.AcadYear, SemNum: r.SemNum}
		byTerm[t] = append(byTerm[t], r.ModuleCode)
		codes = append(codes, r.ModuleCode)
	}

	mods, err := s.repo.Module.GetByCodes(ctx, codes)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return err
	}
	titles := make(map[string]string, len(mods))
	for _, m := range mods {
		titles[m.Code] = m.Title
	}

	grid := session.Grid()
	for t, cs := range byTerm {
		if !grid.Has(t) {
			continue
		}
		names := make([]string, 0, len(cs))
		for _, c := range cs {
			names = append(names, planner.Offering{Code: c, Title: titles[c]}.DisplayName())
		}
		_ = grid.Set(t, names)
	}
	return nil
}

func (s *plannerService) toSessionResponse(e *plannerEntry) *dto.SessionResponse {
	session := e.session
	reqs := session.Requirements()
	hits, misses := session.MemoStats()

	recorded := make(map[planner.Term]planner.TermSelection)
	for _, rec := range session.Plan().Records() {
		recorded[rec.Term] = rec
	}

	terms := make([]dto.TermStateResponse, 0, len(session.Layout()))
	for _, t := range session.Layout() {
		ts := dto.TermStateResponse{
			AcadYear: t.AcadYear,
			SemNum:   t.SemNum,
			SemName:  e.semName(t.SemNum),
			Defaults: session.Grid().Get(t),
		}
		if rec, ok := recorded[t]; ok {
			ts.Recorded = true
			ts.RecordedCodes = rec.Codes
			ts.Credits = planner.FormatCredits(rec.Credits)
		}
		terms = append(terms, ts)
	}

	return &dto.SessionResponse{
		SessionID:            session.ID(),
		StudentID:            e.ownerID,
		Major:                e.major,
		MatriculationAY:      e.matricAY,
		State:                string(session.Plan().State()),
		Complete:             session.Complete(),
		TotalCredits:         planner.FormatCredits(session.TotalCredits()),
		MinCreditsToGraduate: planner.FormatCredits(reqs.MinCreditsToGraduate),
		MaxCreditsFirstTerm:  planner.FormatCredits(reqs.MaxCreditsFirstTerm),
		FirstTerm:            dto.TermRef{AcadYear: reqs.FirstTerm.AcadYear, SemNum: reqs.FirstTerm.SemNum},
		Terms:                terms,
		MemoHits:             hits,
		MemoMisses:           misses,
		ExpiresAt:            e.expiresAt.Format(time.RFC3339),
	}
}

func (e *plannerEntry) semName(semNum int) string {
	if name, ok := e.semNames[semNum]; ok {
		return name
	}
	return fmt.Sprintf("Semester %d", semNum)
}

func toTerm(ref dto.TermRef) planner.Term {
	return planner.Term{AcadYear: ref.AcadYear, SemNum: ref.SemNum}
}

func containsTerm(layout []planner.Term, t planner.Term) bool {
	for _, l := range layout {
		if l == t {
			return true
		}
	}
	return false
}

func toTermResult(r planner.TermResult) dto.TermResultResponse {
	return dto.TermResultResponse{
		AcadYear: r.Term.AcadYear,
		SemNum:   r.Term.SemNum,
		Credits:  planner.FormatCredits(r.Credits),
		Outcome: dto.OutcomeResponse{
			Kind:        string(r.Outcome.Kind),
			Rule:        r.Outcome.Rule,
			Message:     r.Outcome.Message,
			FailedCodes: r.Outcome.FailedCodes,
		},
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
