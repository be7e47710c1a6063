package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/planner"
	"course-planner/backend/internal/service"
	apperrors "course-planner/backend/pkg/errors"
	"course-planner/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock PlannerService ──

type mockPlannerService struct {
	session     *dto.SessionResponse
	sessionErr  error
	closeErr    error
	choices     *dto.ChoicesResponse
	choicesErr  error
	submit      *dto.SubmitTermResponse
	submitErr   error
	evaluate    *dto.EvaluateResponse
	evaluateErr error
	save        *dto.SavePlanResponse
	saveErr     error
	exportBuf   *bytes.Buffer
	exportName  string
	exportErr   error

	gotUserID    string
	gotSessionID string
	gotTerm      dto.TermRef
	gotStart     *dto.StartSessionRequest
	gotSubmit    *dto.SubmitTermRequest
	gotDefaults  *dto.EditDefaultsRequest
	gotReset     *dto.ResetSessionRequest
}

func (m *mockPlannerService) StartSession(_ context.Context, userID string, req *dto.StartSessionRequest) (*dto.SessionResponse, error) {
	m.gotUserID, m.gotStart = userID, req
	return m.session, m.sessionErr
}
func (m *mockPlannerService) GetSession(_ context.Context, userID, sessionID string) (*dto.SessionResponse, error) {
	m.gotUserID, m.gotSessionID = userID, sessionID
	return m.session, m.sessionErr
}
func (m *mockPlannerService) CloseSession(_ context.Context, _, sessionID string) error {
	m.gotSessionID = sessionID
	return m.closeErr
}
func (m *mockPlannerService) ResetSession(_ context.Context, _, _ string, req *dto.ResetSessionRequest) (*dto.SessionResponse, error) {
	m.gotReset = req
	return m.session, m.sessionErr
}
func (m *mockPlannerService) ListChoices(_ context.Context, _, _ string, term dto.TermRef) (*dto.ChoicesResponse, error) {
	m.gotTerm = term
	return m.choices, m.choicesErr
}
func (m *mockPlannerService) EditDefaults(_ context.Context, _, _ string, term dto.TermRef, req *dto.EditDefaultsRequest) (*dto.SessionResponse, error) {
	m.gotTerm, m.gotDefaults = term, req
	return m.session, m.sessionErr
}
func (m *mockPlannerService) SubmitTerm(_ context.Context, _, _ string, term dto.TermRef, req *dto.SubmitTermRequest) (*dto.SubmitTermResponse, error) {
	m.gotTerm, m.gotSubmit = term, req
	return m.submit, m.submitErr
}
func (m *mockPlannerService) Evaluate(_ context.Context, _, _ string) (*dto.EvaluateResponse, error) {
	return m.evaluate, m.evaluateErr
}
func (m *mockPlannerService) SavePlan(_ context.Context, _, _ string) (*dto.SavePlanResponse, error) {
	return m.save, m.saveErr
}
func (m *mockPlannerService) ExportPlan(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.exportBuf, m.exportName, m.exportErr
}

// ── Mock CatalogService ──

type mockCatalogService struct {
	module    *dto.ModuleResponse
	moduleErr error
	list      []dto.ModuleResponse
	total     int64
	listErr   error
	sync      *dto.SyncCatalogResponse
	syncErr   error

	gotCode  string
	gotQuery *dto.ModuleListQuery
}

func (m *mockCatalogService) GetModule(_ context.Context, code string, _ *dto.ModuleQuery) (*dto.ModuleResponse, error) {
	m.gotCode = code
	return m.module, m.moduleErr
}
func (m *mockCatalogService) ListModules(_ context.Context, q *dto.ModuleListQuery) ([]dto.ModuleResponse, int64, error) {
	m.gotQuery = q
	return m.list, m.total, m.listErr
}
func (m *mockCatalogService) SyncCatalog(_ context.Context, _ *dto.SyncCatalogRequest) (*dto.SyncCatalogResponse, error) {
	return m.sync, m.syncErr
}

// ── Mock StudentService ──

type mockStudentService struct {
	profile    *dto.StudentResponse
	profileErr error
	upsert     *dto.StudentResponse
	upsertErr  error
}

func (m *mockStudentService) GetProfile(_ context.Context, _ string) (*dto.StudentResponse, error) {
	return m.profile, m.profileErr
}
func (m *mockStudentService) UpsertProfile(_ context.Context, _ string, _ *dto.UpsertStudentRequest) (*dto.StudentResponse, error) {
	return m.upsert, m.upsertErr
}

// ═══════════════════════════════════════════════════════════
// 测试辅助
// ═══════════════════════════════════════════════════════════

// newTestRouter 构造带有身份注入的测试路由
func newTestRouter(userID string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
			c.Set("role", "student")
		}
		c.Next()
	})
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("响应不是合法 JSON: %v, body=%s", err, w.Body.String())
	}
	return resp
}

func plannerRouter(svc *mockPlannerService, userID string) *gin.Engine {
	h := NewPlannerHandler(svc)
	r := newTestRouter(userID)
	g := r.Group("/planner/sessions")
	g.POST("", h.StartSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.CloseSession)
	g.POST("/:id/reset", h.ResetSession)
	g.POST("/:id/evaluate", h.Evaluate)
	g.POST("/:id/save", h.SavePlan)
	g.GET("/:id/export", h.ExportPlan)
	g.GET("/:id/terms/:ay/:sem/choices", h.ListChoices)
	g.PUT("/:id/terms/:ay/:sem/defaults", h.EditDefaults)
	g.POST("/:id/terms/:ay/:sem/submit", h.SubmitTerm)
	return r
}

// ═══════════════════════════════════════════════════════════
// PlannerHandler
// ═══════════════════════════════════════════════════════════

func TestStartSession_Unauthenticated(t *testing.T) {
	r := plannerRouter(&mockPlannerService{}, "")
	w := doRequest(r, http.MethodPost, "/planner/sessions", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("期望 401，实际: %d", w.Code)
	}
}

func TestStartSession_EmptyBody(t *testing.T) {
	svc := &mockPlannerService{session: &dto.SessionResponse{SessionID: "s-1", State: "empty"}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodPost, "/planner/sessions", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("期望 201，实际: %d, body=%s", w.Code, w.Body.String())
	}
	if svc.gotUserID != "u-1" {
		t.Errorf("userID 未透传: %q", svc.gotUserID)
	}
	if svc.gotStart == nil || svc.gotStart.FirstTerm != nil {
		t.Errorf("空请求体应得到零值请求: %+v", svc.gotStart)
	}
}

func TestStartSession_InvalidFirstTerm(t *testing.T) {
	r := plannerRouter(&mockPlannerService{}, "u-1")
	w := doRequest(r, http.MethodPost, "/planner/sessions", `{"first_term":{"acad_year":"2024-2026","sem_num":1}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际: %d", w.Code)
	}
}

func TestStartSession_ProfileRequired(t *testing.T) {
	r := plannerRouter(&mockPlannerService{sessionErr: service.ErrProfileRequired}, "u-1")
	w := doRequest(r, http.MethodPost, "/planner/sessions", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("期望 400，实际: %d", w.Code)
	}
	if resp := decode(t, w); resp.Code != 30003 {
		t.Errorf("期望业务码 30003，实际: %d", resp.Code)
	}
}

func TestGetSession_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrSessionNotFound, http.StatusNotFound},
		{service.ErrSessionForbidden, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", apperrors.ErrUpstreamUnavailable), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := plannerRouter(&mockPlannerService{sessionErr: tc.err}, "u-1")
		w := doRequest(r, http.MethodGet, "/planner/sessions/s-1", "")
		if w.Code != tc.want {
			t.Errorf("%v: 期望 %d，实际: %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestSubmitTerm_PassesTermFromPath(t *testing.T) {
	svc := &mockPlannerService{submit: &dto.SubmitTermResponse{
		Result: dto.TermResultResponse{AcadYear: "2024-2025", SemNum: 2, Credits: "20.00",
			Outcome: dto.OutcomeResponse{Kind: "accept", Rule: "satisfied"}},
	}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/terms/2024-2025/2/submit", `{"modules":["CS2040 Data Structures","CS2030"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d, body=%s", w.Code, w.Body.String())
	}
	if svc.gotTerm != (dto.TermRef{AcadYear: "2024-2025", SemNum: 2}) {
		t.Errorf("学期解析错误: %+v", svc.gotTerm)
	}
	if svc.gotSubmit == nil || len(svc.gotSubmit.Modules) != 2 {
		t.Errorf("选课未透传: %+v", svc.gotSubmit)
	}
}

func TestSubmitTerm_EmptyBodyUsesDefaults(t *testing.T) {
	svc := &mockPlannerService{submit: &dto.SubmitTermResponse{}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/terms/2024-2025/1/submit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if svc.gotSubmit == nil || len(svc.gotSubmit.Modules) != 0 {
		t.Errorf("空请求体应提交空选课: %+v", svc.gotSubmit)
	}
}

func TestSubmitTerm_InvalidTermPath(t *testing.T) {
	r := plannerRouter(&mockPlannerService{}, "u-1")
	for _, path := range []string{
		"/planner/sessions/s-9/terms/2024-2026/1/submit",
		"/planner/sessions/s-9/terms/2024-2025/0/submit",
		"/planner/sessions/s-9/terms/2024-2025/x/submit",
		"/planner/sessions/s-9/terms/AY2024/1/submit",
	} {
		w := doRequest(r, http.MethodPost, path, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: 期望 400，实际: %d", path, w.Code)
		}
	}
}

func TestSubmitTerm_PlannerErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code int
	}{
		{fmt.Errorf("%w: CS9999", planner.ErrUnknownModule), http.StatusBadRequest, 30007},
		{fmt.Errorf("%w: CS1010", planner.ErrRepeatedModule), http.StatusBadRequest, 30009},
		{planner.ErrTermNotInLayout, http.StatusBadRequest, 30006},
		{planner.ErrMalformedTree, http.StatusBadGateway, 30011},
	}
	for _, tc := range cases {
		r := plannerRouter(&mockPlannerService{submitErr: tc.err}, "u-1")
		w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/terms/2024-2025/1/submit", "")
		if w.Code != tc.want {
			t.Errorf("%v: 期望 %d，实际: %d", tc.err, tc.want, w.Code)
			continue
		}
		if resp := decode(t, w); resp.Code != tc.code {
			t.Errorf("%v: 期望业务码 %d，实际: %d", tc.err, tc.code, resp.Code)
		}
	}
}

func TestEditDefaults_RequiresBody(t *testing.T) {
	svc := &mockPlannerService{session: &dto.SessionResponse{}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodPut, "/planner/sessions/s-9/terms/2024-2025/1/defaults", `{"modules":["CS1010 Programming Methodology"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if svc.gotDefaults == nil || svc.gotDefaults.Modules[0] != "CS1010 Programming Methodology" {
		t.Errorf("默认选课未透传: %+v", svc.gotDefaults)
	}

	w = doRequest(r, http.MethodPut, "/planner/sessions/s-9/terms/2024-2025/1/defaults", `{"modules":"CS1010"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法请求体期望 400，实际: %d", w.Code)
	}
}

func TestListChoices(t *testing.T) {
	svc := &mockPlannerService{choices: &dto.ChoicesResponse{AcadYear: "2024-2025", SemNum: 3, Choices: []string{"CS1010 Programming Methodology"}}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodGet, "/planner/sessions/s-9/terms/2024-2025/3/choices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if svc.gotTerm.SemNum != 3 {
		t.Errorf("学期编号错误: %d", svc.gotTerm.SemNum)
	}
}

func TestResetSession_RetainDefaults(t *testing.T) {
	svc := &mockPlannerService{session: &dto.SessionResponse{}}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/reset", `{"retain_defaults":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if svc.gotReset == nil || !svc.gotReset.RetainDefaults {
		t.Errorf("retain_defaults 未透传: %+v", svc.gotReset)
	}
}

func TestCloseSession(t *testing.T) {
	svc := &mockPlannerService{}
	r := plannerRouter(svc, "u-1")
	w := doRequest(r, http.MethodDelete, "/planner/sessions/s-7", "")
	if w.Code != http.StatusOK || svc.gotSessionID != "s-7" {
		t.Errorf("关闭会话失败: %d %q", w.Code, svc.gotSessionID)
	}
}

func TestSavePlan_Incomplete(t *testing.T) {
	r := plannerRouter(&mockPlannerService{saveErr: service.ErrPlanIncomplete}, "u-1")
	w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/save", "")
	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际: %d", w.Code)
	}
}

func TestEvaluate(t *testing.T) {
	svc := &mockPlannerService{evaluate: &dto.EvaluateResponse{Results: []dto.TermResultResponse{{AcadYear: "2024-2025", SemNum: 1}}}}
	r := plannerRouter(svc, "u-1")
	w := doRequest(r, http.MethodPost, "/planner/sessions/s-9/evaluate", "")
	if w.Code != http.StatusOK {
		t.Errorf("期望 200，实际: %d", w.Code)
	}
}

func TestExportPlan_Headers(t *testing.T) {
	svc := &mockPlannerService{exportBuf: bytes.NewBufferString("xlsx"), exportName: "选课计划_u-1.xlsx"}
	r := plannerRouter(svc, "u-1")

	w := doRequest(r, http.MethodGet, "/planner/sessions/s-9/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxMIME {
		t.Errorf("Content-Type 错误: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment; filename*=UTF-8''") {
		t.Errorf("Content-Disposition 错误: %s", cd)
	}
	if w.Body.String() != "xlsx" {
		t.Errorf("文件内容错误: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// ModuleHandler
// ═══════════════════════════════════════════════════════════

func moduleRouter(svc *mockCatalogService) *gin.Engine {
	h := NewModuleHandler(svc)
	r := newTestRouter("u-1")
	r.GET("/modules", h.ListModules)
	r.GET("/modules/:code", h.GetModule)
	r.POST("/admin/catalog/sync", h.SyncCatalog)
	return r
}

func TestGetModule_NormalizesCode(t *testing.T) {
	svc := &mockCatalogService{module: &dto.ModuleResponse{Code: "CS2040"}}
	w := doRequest(moduleRouter(svc), http.MethodGet, "/modules/cs2040", "")
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d", w.Code)
	}
	if svc.gotCode != "CS2040" {
		t.Errorf("课程代码未转大写: %q", svc.gotCode)
	}
}

func TestGetModule_NotFound(t *testing.T) {
	svc := &mockCatalogService{moduleErr: service.ErrModuleNotFound}
	w := doRequest(moduleRouter(svc), http.MethodGet, "/modules/ZZ9999", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际: %d", w.Code)
	}
}

func TestGetModule_BadAcadYear(t *testing.T) {
	w := doRequest(moduleRouter(&mockCatalogService{}), http.MethodGet, "/modules/CS2040?acad_year=2024", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("期望 400，实际: %d", w.Code)
	}
}

func TestListModules_Pagination(t *testing.T) {
	svc := &mockCatalogService{list: []dto.ModuleResponse{{Code: "CS1010"}}, total: 41}
	w := doRequest(moduleRouter(svc), http.MethodGet, "/modules?acad_year=2024-2025&sem_num=1&page=2&page_size=20", "")
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d, body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Data response.PageData `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if body.Data.Pagination.TotalPages != 3 || body.Data.Pagination.Page != 2 {
		t.Errorf("分页信息错误: %+v", body.Data.Pagination)
	}
	if svc.gotQuery.SemNum != 1 || svc.gotQuery.AcadYear != "2024-2025" {
		t.Errorf("查询参数错误: %+v", svc.gotQuery)
	}
}

func TestListModules_Validation(t *testing.T) {
	r := moduleRouter(&mockCatalogService{})
	for _, q := range []string{
		"/modules?sem_num=1",
		"/modules?acad_year=2024-2025",
		"/modules?acad_year=2024-2025&sem_num=5",
		"/modules?acad_year=2025-2024&sem_num=1",
	} {
		w := doRequest(r, http.MethodGet, q, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: 期望 400，实际: %d", q, w.Code)
		}
	}
}

func TestSyncCatalog_Upstream(t *testing.T) {
	svc := &mockCatalogService{syncErr: fmt.Errorf("%w: 503", apperrors.ErrUpstreamUnavailable)}
	w := doRequest(moduleRouter(svc), http.MethodPost, "/admin/catalog/sync", `{"acad_year":"2024-2025"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("期望 502，实际: %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// StudentHandler
// ═══════════════════════════════════════════════════════════

func studentRouter(svc *mockStudentService) *gin.Engine {
	h := NewStudentHandler(svc)
	r := newTestRouter("u-1")
	r.GET("/students/me", h.GetMe)
	r.PUT("/students/me", h.UpsertMe)
	return r
}

func TestGetMe_NotFound(t *testing.T) {
	w := doRequest(studentRouter(&mockStudentService{profileErr: service.ErrStudentNotFound}), http.MethodGet, "/students/me", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际: %d", w.Code)
	}
}

func TestUpsertMe(t *testing.T) {
	svc := &mockStudentService{upsert: &dto.StudentResponse{ID: "u-1", Version: 2}}
	r := studentRouter(svc)

	w := doRequest(r, http.MethodPut, "/students/me", `{"matriculation_ay":"2023-2024","major":"Computer Science","version":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际: %d, body=%s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodPut, "/students/me", `{"matriculation_ay":"AY2023","major":"Computer Science"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("非法学年期望 400，实际: %d", w.Code)
	}
}

func TestUpsertMe_VersionConflict(t *testing.T) {
	svc := &mockStudentService{upsertErr: apperrors.ErrOptimisticLock}
	w := doRequest(studentRouter(svc), http.MethodPut, "/students/me", `{"matriculation_ay":"2023-2024","major":"Computer Science","version":1}`)
	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际: %d", w.Code)
	}
}

// ── 校验规则 ──

func TestIsAcadYear(t *testing.T) {
	cases := map[string]bool{
		"2024-2025": true,
		"1999-2000": true,
		"2024-2024": false,
		"2024-2026": false,
		"2024/2025": false,
		"24-25":     false,
		"":          false,
	}
	for in, want := range cases {
		if got := IsAcadYear(in); got != want {
			t.Errorf("IsAcadYear(%q) 期望 %v，实际 %v", in, want, got)
		}
	}
}
