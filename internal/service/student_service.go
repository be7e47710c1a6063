package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"course-planner/backend/internal/dto"
	"course-planner/backend/internal/model"
	"course-planner/backend/internal/repository"
	apperrors "course-planner/backend/pkg/errors"
)

var ErrStudentNotFound = errors.New("学生档案不存在")

// StudentService 学生档案业务接口
type StudentService interface {
	GetProfile(ctx context.Context, userID string) (*dto.StudentResponse, error)
	UpsertProfile(ctx context.Context, userID string, req *dto.UpsertStudentRequest) (*dto.StudentResponse, error)
}

type studentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStudentService 创建 StudentService 实例
func NewStudentService(repo *repository.Repository, logger *zap.Logger) StudentService {
	return &studentService{repo: repo, logger: logger}
}

// ────────────────────── GetProfile ──────────────────────

func (s *studentService) GetProfile(ctx context.Context, userID string) (*dto.StudentResponse, error) {
	student, err := s.repo.Student.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	numYears := 0
	if major, err := s.repo.Major.GetByName(ctx, student.Major); err == nil {
		numYears = major.NumYears
	}
	return toStudentResponse(student, numYears), nil
}

// ────────────────────── UpsertProfile ──────────────────────

// UpsertProfile 首次调用创建档案，之后按 Version 乐观锁更新
func (s *studentService) UpsertProfile(ctx context.Context, userID string, req *dto.UpsertStudentRequest) (*dto.StudentResponse, error) {
	major, err := s.repo.Major.GetByName(ctx, req.Major)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMajorNotFound
		}
		s.logger.Error("查询专业失败", zap.String("major", req.Major), zap.Error(err))
		return nil, err
	}

	years, err := s.repo.AcadYear.List(ctx)
	if err != nil {
		s.logger.Error("查询学年失败", zap.Error(err))
		return nil, err
	}
	known := false
	for _, y := range years {
		if y == req.MatriculationAY {
			known = true
			break
		}
	}
	if !known {
		return nil, ErrUnknownMatricYear
	}

	student, err := s.repo.Student.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学生档案失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if student == nil {
		student = &model.Student{
			ID:              userID,
			Name:            req.Name,
			MatriculationAY: req.MatriculationAY,
			Major:           req.Major,
		}
		if err := s.repo.Student.Create(ctx, student); err != nil {
			s.logger.Error("创建学生档案失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		return toStudentResponse(student, major.NumYears), nil
	}

	if req.Version != student.Version {
		return nil, apperrors.ErrOptimisticLock
	}
	student.Name = req.Name
	student.MatriculationAY = req.MatriculationAY
	student.Major = req.Major
	if err := s.repo.Student.UpdateWithVersion(ctx, student); err != nil {
		if !errors.Is(err, apperrors.ErrOptimisticLock) {
			s.logger.Error("更新学生档案失败", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	return toStudentResponse(student, major.NumYears), nil
}

func toStudentResponse(s *model.Student, numYears int) *dto.StudentResponse {
	return &dto.StudentResponse{
		ID:              s.ID,
		Name:            s.Name,
		MatriculationAY: s.MatriculationAY,
		Major:           s.Major,
		NumYears:        numYears,
		Version:         s.Version,
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
	}
}
