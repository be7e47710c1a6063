package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"course-planner/backend/internal/dto"
	apperrors "course-planner/backend/pkg/errors"
)

func setupTestStudentService() (StudentService, *mockStudentRepo) {
	repo, _, _, students, _ := newTestRepo()
	return NewStudentService(repo, zap.NewNop()), students
}

func TestStudentService_GetProfile(t *testing.T) {
	svc, _ := setupTestStudentService()

	p, err := svc.GetProfile(context.Background(), testStudent)
	if err != nil {
		t.Fatalf("GetProfile 应成功: %v", err)
	}
	if p.Major != "Computer Science" || p.NumYears != 1 {
		t.Errorf("档案错误: %+v", p)
	}

	if _, err := svc.GetProfile(context.Background(), "u-nobody"); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("期望 ErrStudentNotFound，实际: %v", err)
	}
}

func TestStudentService_UpsertProfile_Create(t *testing.T) {
	svc, students := setupTestStudentService()

	p, err := svc.UpsertProfile(context.Background(), "u-new", &dto.UpsertStudentRequest{
		Name: "Lim", MatriculationAY: "2023-2024", Major: "Computer Science",
	})
	if err != nil {
		t.Fatalf("UpsertProfile 应成功: %v", err)
	}
	if p.Version != 1 || students.students["u-new"] == nil {
		t.Errorf("应创建版本为 1 的档案，实际: %+v", p)
	}
}

func TestStudentService_UpsertProfile_Update(t *testing.T) {
	svc, students := setupTestStudentService()

	p, err := svc.UpsertProfile(context.Background(), testStudent, &dto.UpsertStudentRequest{
		Name: "Tan Ah Kow", MatriculationAY: "2023-2024", Major: "Computer Science", Version: 1,
	})
	if err != nil {
		t.Fatalf("UpsertProfile 应成功: %v", err)
	}
	if p.Version != 2 || students.students[testStudent].MatriculationAY != "2023-2024" {
		t.Errorf("更新后档案错误: %+v", p)
	}
}

func TestStudentService_UpsertProfile_StaleVersion(t *testing.T) {
	svc, _ := setupTestStudentService()

	_, err := svc.UpsertProfile(context.Background(), testStudent, &dto.UpsertStudentRequest{
		MatriculationAY: testAY, Major: "Computer Science", Version: 7,
	})
	if !errors.Is(err, apperrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestStudentService_UpsertProfile_Validation(t *testing.T) {
	svc, _ := setupTestStudentService()
	ctx := context.Background()

	_, err := svc.UpsertProfile(ctx, testStudent, &dto.UpsertStudentRequest{MatriculationAY: testAY, Major: "Astrology"})
	if !errors.Is(err, ErrMajorNotFound) {
		t.Errorf("期望 ErrMajorNotFound，实际: %v", err)
	}

	_, err = svc.UpsertProfile(ctx, testStudent, &dto.UpsertStudentRequest{MatriculationAY: "1999-2000", Major: "Computer Science"})
	if !errors.Is(err, ErrUnknownMatricYear) {
		t.Errorf("期望 ErrUnknownMatricYear，实际: %v", err)
	}
}
