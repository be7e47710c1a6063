package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"course-planner/backend/internal/model"
	apperrors "course-planner/backend/pkg/errors"
	"course-planner/backend/pkg/nusmods"
)

// ── Mock AcadYearRepository ──

type mockAcadYearRepo struct {
	years []string
}

func (m *mockAcadYearRepo) List(_ context.Context) ([]string, error) {
	out := append([]string(nil), m.years...)
	sort.Strings(out)
	return out, nil
}

func (m *mockAcadYearRepo) Ensure(_ context.Context, ay string) error {
	for _, y := range m.years {
		if y == ay {
			return nil
		}
	}
	m.years = append(m.years, ay)
	return nil
}

// ── Mock SemesterRepository ──

type mockSemesterRepo struct {
	semesters []model.Semester
}

func (m *mockSemesterRepo) List(_ context.Context) ([]model.Semester, error) {
	return append([]model.Semester(nil), m.semesters...), nil
}

// ── Mock DepartmentRepository ──

type mockDeptRepo struct {
	depts    map[string]string
	orphaned int64
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{depts: make(map[string]string)}
}

func (m *mockDeptRepo) Upsert(_ context.Context, depts []model.Department) error {
	for _, d := range depts {
		m.depts[d.Department] = d.Faculty
	}
	return nil
}

func (m *mockDeptRepo) DeleteOrphans(_ context.Context) (int64, error) {
	return m.orphaned, nil
}

// ── Mock MajorRepository ──

type mockMajorRepo struct {
	majors map[string]*model.Major
}

func (m *mockMajorRepo) GetByName(_ context.Context, name string) (*model.Major, error) {
	if mj, ok := m.majors[name]; ok {
		cp := *mj
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ModuleRepository ──

type mockModuleRepo struct {
	modules   map[string]*model.Module
	offerings *mockOfferingRepo
	gets      int
}

func (m *mockModuleRepo) GetByCode(_ context.Context, code string) (*model.Module, error) {
	m.gets++
	if mod, ok := m.modules[code]; ok {
		cp := *mod
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockModuleRepo) GetByCodes(_ context.Context, codes []string) ([]model.Module, error) {
	var out []model.Module
	for _, c := range codes {
		if mod, ok := m.modules[c]; ok {
			out = append(out, *mod)
		}
	}
	return out, nil
}

func (m *mockModuleRepo) Upsert(_ context.Context, modules []model.Module) error {
	for i := range modules {
		mod := modules[i]
		m.modules[mod.Code] = &mod
	}
	return nil
}

func (m *mockModuleRepo) ListOffered(_ context.Context, ay string, sem, offset, limit int) ([]model.Module, int64, error) {
	var all []model.Module
	for _, o := range m.offerings.rows {
		if o.AcadYear == ay && o.SemNum == sem {
			if mod, ok := m.modules[o.ModuleCode]; ok {
				all = append(all, *mod)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Code < all[j].Code })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *mockModuleRepo) CountOfferedYears(_ context.Context, code string) (int64, error) {
	years := make(map[string]bool)
	for _, o := range m.offerings.rows {
		if o.ModuleCode == code {
			years[o.AcadYear] = true
		}
	}
	return int64(len(years)), nil
}

// ── Mock OfferingRepository ──

type mockOfferingRepo struct {
	rows  []model.Offering
	lists int
}

func (m *mockOfferingRepo) ListSemesters(_ context.Context, code, ay string) ([]int, error) {
	m.lists++
	var sems []int
	for _, o := range m.rows {
		if o.ModuleCode == code && o.AcadYear == ay {
			sems = append(sems, o.SemNum)
		}
	}
	sort.Ints(sems)
	return sems, nil
}

func (m *mockOfferingRepo) ReplaceForYear(_ context.Context, ay string, offerings []model.Offering) error {
	kept := m.rows[:0]
	for _, o := range m.rows {
		if o.AcadYear != ay {
			kept = append(kept, o)
		}
	}
	m.rows = append(kept, offerings...)
	return nil
}

// ── Mock InternshipRepository ──

type mockInternshipRepo struct {
	codes []string
}

func (m *mockInternshipRepo) ListCodes(_ context.Context) ([]string, error) {
	return append([]string(nil), m.codes...), nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students map[string]*model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	if s, ok := m.students[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) Create(_ context.Context, s *model.Student) error {
	if s.Version == 0 {
		s.Version = 1
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.students[s.ID] = &cp
	return nil
}

func (m *mockStudentRepo) UpdateWithVersion(_ context.Context, s *model.Student) error {
	cur, ok := m.students[s.ID]
	if !ok || cur.Version != s.Version {
		return apperrors.ErrOptimisticLock
	}
	s.Version++
	s.UpdatedAt = time.Now()
	cp := *s
	m.students[s.ID] = &cp
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	rows      []model.Enrollment
	createErr error
}

func (m *mockEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]model.Enrollment, error) {
	var out []model.Enrollment
	for _, r := range m.rows {
		if r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) DeleteByStudent(_ context.Context, studentID string) error {
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.StudentID != studentID {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

func (m *mockEnrollmentRepo) CreateBatch(_ context.Context, rows []model.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rows = append(m.rows, rows...)
	return nil
}

// ── 外部课程目录替身 ──

// fakeNUSMods 按 学年:课程代码 返回先修树，并记录调用次数
type fakeNUSMods struct {
	mu    sync.Mutex
	trees map[string]string
	infos map[string][]nusmods.ModuleInfo
	calls map[string]int
	err   error
}

func newFakeNUSMods() *fakeNUSMods {
	return &fakeNUSMods{
		trees: make(map[string]string),
		infos: make(map[string][]nusmods.ModuleInfo),
		calls: make(map[string]int),
	}
}

func (f *fakeNUSMods) FetchPrereqTree(_ context.Context, ay, code string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[ay+":"+code]++
	if f.err != nil {
		return nil, f.err
	}
	if raw, ok := f.trees[ay+":"+code]; ok {
		return json.RawMessage(raw), nil
	}
	return nil, nil
}

func (f *fakeNUSMods) FetchModuleInfo(_ context.Context, ay string) ([]nusmods.ModuleInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.infos[ay], nil
}

func (f *fakeNUSMods) callCount(ay, code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ay+":"+code]
}

// fakeTreeCache 内存先修树缓存
type fakeTreeCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
}

func newFakeTreeCache() *fakeTreeCache {
	return &fakeTreeCache{data: make(map[string][]byte)}
}

func (c *fakeTreeCache) GetPrereqTree(_ context.Context, ay, code string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[ay+":"+code]
	return raw, ok, nil
}

func (c *fakeTreeCache) SetPrereqTree(_ context.Context, ay, code string, raw []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(raw) == 0 {
		raw = []byte("null")
	}
	c.data[ay+":"+code] = raw
	return nil
}

func (c *fakeTreeCache) InvalidatePrereqTrees(_ context.Context, ay string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, ay)
	n := 0
	for k := range c.data {
		if len(k) > len(ay) && k[:len(ay)+1] == ay+":" {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}
