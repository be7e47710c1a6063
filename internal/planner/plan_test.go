package planner

import "testing"

func TestPlan_StateMachine(t *testing.T) {
	p := NewPlan()
	if p.State() != PlanEmpty {
		t.Fatalf("新计划应为 empty，实际 %s", p.State())
	}

	p.Extend(Term{AcadYear: ay, SemNum: 1}, []string{"CS1010"}, rat(4))
	if p.State() != PlanPartial {
		t.Fatalf("记录后应为 partial，实际 %s", p.State())
	}

	p.Invalidate()
	if p.State() != PlanInvalid {
		t.Fatalf("失效后应为 invalid，实际 %s", p.State())
	}

	// 失效后 Extend 为空操作
	p.Extend(Term{AcadYear: ay, SemNum: 2}, []string{"CS2030"}, rat(4))
	if p.State() != PlanInvalid || len(p.Terms()) != 0 || p.TotalCredits().Sign() != 0 {
		t.Error("失效计划不应再接受任何学期")
	}

	p.Reset()
	if p.State() != PlanEmpty {
		t.Errorf("Reset 后应回到 empty，实际 %s", p.State())
	}
}

func TestPlan_OutOfOrderExtendKeepsChronology(t *testing.T) {
	p := NewPlan()
	p.Extend(Term{AcadYear: "2025-2026", SemNum: 1}, []string{"CS3230"}, rat(4))
	p.Extend(Term{AcadYear: "2024-2025", SemNum: 2}, []string{"CS2040"}, rat(4))
	p.Extend(Term{AcadYear: "2024-2025", SemNum: 1}, []string{"CS1010"}, rat(4))

	terms := p.Terms()
	want := []Term{{"2024-2025", 1}, {"2024-2025", 2}, {"2025-2026", 1}}
	for i := range want {
		if terms[i] != want[i] {
			t.Fatalf("学期顺序错误: %v", terms)
		}
	}

	before := p.CompletedCodesBefore(Term{AcadYear: "2025-2026", SemNum: 1})
	if !before.Has("CS1010") || !before.Has("CS2040") || before.Has("CS3230") {
		t.Errorf("CompletedCodesBefore 应只含严格更早的学期，实际 %v", before.Sorted())
	}
	if p.CreditsBefore(Term{AcadYear: "2024-2025", SemNum: 2}).Cmp(rat(4)) != 0 {
		t.Error("CreditsBefore 计算错误")
	}
}

func TestPlan_DropAfter(t *testing.T) {
	p := NewPlan()
	p.Extend(Term{AcadYear: "2024-2025", SemNum: 1}, []string{"CS1010"}, rat(4))
	p.Extend(Term{AcadYear: "2024-2025", SemNum: 2}, []string{"CS2040"}, rat(4))
	p.Extend(Term{AcadYear: "2025-2026", SemNum: 1}, []string{"CS3230"}, rat(8))

	dropped := p.DropAfter(Term{AcadYear: "2024-2025", SemNum: 1})
	if len(dropped) != 2 || dropped[0] != (Term{AcadYear: "2024-2025", SemNum: 2}) {
		t.Fatalf("应丢弃之后的 2 个学期，实际 %v", dropped)
	}
	if len(p.Terms()) != 1 || p.TotalCredits().Cmp(rat(4)) != 0 {
		t.Errorf("丢弃后应只剩 4 学分，实际 %v / %s", p.Terms(), p.TotalCredits().RatString())
	}
	if p.DropAfter(Term{AcadYear: "2024-2025", SemNum: 1}) != nil {
		t.Error("没有更晚学期时应返回 nil")
	}
}

func TestPlan_ReExtendReplacesCredits(t *testing.T) {
	p := NewPlan()
	term := Term{AcadYear: ay, SemNum: 1}
	p.Extend(term, []string{"CS1010", "MA1521"}, rat(8))
	p.Extend(term, []string{"CS1010"}, rat(4))

	if p.TotalCredits().Cmp(rat(4)) != 0 {
		t.Errorf("重复记录应替换旧学分，实际 %s", p.TotalCredits().RatString())
	}
	codes, _ := p.Selection(term)
	if len(codes) != 1 {
		t.Errorf("重复记录应替换旧选课，实际 %v", codes)
	}
}

func TestPlan_KeyIsOrderIndependent(t *testing.T) {
	a := NewPlan()
	a.Extend(Term{AcadYear: ay, SemNum: 1}, []string{"CS1010", "MA1521", "GEA1000"}, rat(12))
	a.Extend(Term{AcadYear: ay, SemNum: 2}, []string{"CS2030", "CS2040"}, rat(8))

	b := NewPlan()
	b.Extend(Term{AcadYear: ay, SemNum: 2}, []string{"CS2040", "CS2030"}, rat(8))
	b.Extend(Term{AcadYear: ay, SemNum: 1}, []string{"GEA1000", "CS1010", "MA1521"}, rat(12))

	next := Term{AcadYear: "2025-2026", SemNum: 1}
	ka := a.KeyWith(next, []string{"CS3230", "CS3243"})
	kb := b.KeyWith(next, []string{"CS3243", "CS3230", "CS3230"})
	if ka != kb {
		t.Errorf("相同内容的计划应得到相同键:\n%s\n%s", ka, kb)
	}

	kc := a.KeyWith(next, []string{"CS3230"})
	if ka == kc {
		t.Error("候选选课不同时键应不同")
	}
}
