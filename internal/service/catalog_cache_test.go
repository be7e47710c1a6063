package service

import (
	"context"
	"errors"
	"testing"

	"course-planner/backend/internal/planner"
)

func TestCatalogCache_ModuleInfoCached(t *testing.T) {
	repo, modules, _, _, _ := newTestRepo()
	c := NewCatalogCache(repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info, err := c.ModuleInfo(ctx, "CP4101")
		if err != nil {
			t.Fatalf("ModuleInfo 失败: %v", err)
		}
		if !info.YearLong || info.Credits.RatString() != "8" {
			t.Errorf("课程信息错误: %+v", info)
		}
	}
	if modules.gets != 1 {
		t.Errorf("应只查询数据库一次，实际: %d", modules.gets)
	}

	c.Invalidate()
	_, _ = c.ModuleInfo(ctx, "CP4101")
	if modules.gets != 2 {
		t.Errorf("Invalidate 后应重新查询，实际: %d", modules.gets)
	}
}

func TestCatalogCache_UnknownModule(t *testing.T) {
	repo, _, _, _, _ := newTestRepo()
	c := NewCatalogCache(repo)

	_, err := c.ModuleInfo(context.Background(), "ZZ9999")
	if !errors.Is(err, planner.ErrUnknownModule) {
		t.Errorf("期望 ErrUnknownModule，实际: %v", err)
	}
}

func TestCatalogCache_TermsOfferedCopies(t *testing.T) {
	repo, _, offerings, _, _ := newTestRepo()
	c := NewCatalogCache(repo)
	ctx := context.Background()

	sems, _ := c.TermsOffered(ctx, "CP4101", testAY)
	if len(sems) != 2 || sems[0] != 1 || sems[1] != 2 {
		t.Fatalf("期望 [1 2]，实际: %v", sems)
	}
	sems[0] = 99

	again, _ := c.TermsOffered(ctx, "CP4101", testAY)
	if again[0] != 1 {
		t.Error("调用方修改返回值不应影响缓存")
	}
	if offerings.lists != 1 {
		t.Errorf("应只查询数据库一次，实际: %d", offerings.lists)
	}
}

func TestCatalogCache_OfferedModules(t *testing.T) {
	repo, _, _, _, _ := newTestRepo()
	c := NewCatalogCache(repo)

	got, err := c.OfferedModules(context.Background(), planner.Term{AcadYear: testAY, SemNum: 3})
	if err != nil {
		t.Fatalf("OfferedModules 失败: %v", err)
	}
	if len(got) != 1 || got[0].DisplayName() != "IDA3288 Industry Attachment" {
		t.Errorf("特别学期开设课程错误: %+v", got)
	}
}
