package planner

import (
	"fmt"
	"sort"
	"strings"
)

// Term 一个修读学期：学年 + 学期编号
// 学年为不透明字符串（如 "2024-2025"），按字典序即时间序比较
type Term struct {
	AcadYear string `json:"acad_year"`
	SemNum   int    `json:"sem_num"`
}

// Before 判断 t 是否严格早于 o
func (t Term) Before(o Term) bool {
	if t.AcadYear != o.AcadYear {
		return t.AcadYear < o.AcadYear
	}
	return t.SemNum < o.SemNum
}

func (t Term) String() string {
	return fmt.Sprintf("AY%s/S%d", t.AcadYear, t.SemNum)
}

// SortTerms 按 (学年, 学期编号) 原地排序
func SortTerms(terms []Term) {
	sort.Slice(terms, func(i, j int) bool { return terms[i].Before(terms[j]) })
}

// ── 课程代码集合 ──

// CodeSet 无序的课程代码集合
type CodeSet map[string]struct{}

// NewCodeSet 由代码列表构建集合
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has 是否包含 code
func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Add 加入 code
func (s CodeSet) Add(code string) {
	s[code] = struct{}{}
}

// Sorted 返回排序后的代码列表
func (s CodeSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ModuleCode 从展示名 "CS1010 Programming Methodology" 中取出课程代码
func ModuleCode(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ModuleCodes 批量提取课程代码，保持原有顺序
func ModuleCodes(names []string) []string {
	codes := make([]string, 0, len(names))
	for _, n := range names {
		codes = append(codes, ModuleCode(n))
	}
	return codes
}
