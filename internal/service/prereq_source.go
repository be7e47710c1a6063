package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"course-planner/backend/internal/planner"
)

// PrereqFetcher 外部课程目录的先修树接口（pkg/nusmods.Client 实现）
type PrereqFetcher interface {
	FetchPrereqTree(ctx context.Context, acadYear, code string) (json.RawMessage, error)
}

// PrereqCache 先修树原始 JSON 缓存（pkg/redis.Client 实现）
type PrereqCache interface {
	GetPrereqTree(ctx context.Context, acadYear, code string) ([]byte, bool, error)
	SetPrereqTree(ctx context.Context, acadYear, code string, raw []byte, ttl time.Duration) error
}

// PrereqSource 先修树查询：缓存 → 合并并发请求 → 上游
//
// 实现 planner.PrereqSource。缓存读写失败只记日志，上游失败原样返回。
type PrereqSource struct {
	fetcher PrereqFetcher
	cache   PrereqCache // 可为 nil
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewPrereqSource 创建 PrereqSource；cache 为 nil 时每次都请求上游
func NewPrereqSource(fetcher PrereqFetcher, cache PrereqCache, ttl time.Duration, logger *zap.Logger) *PrereqSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrereqSource{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

// PrereqTree 实现 planner.PrereqSource
func (s *PrereqSource) PrereqTree(ctx context.Context, code, acadYear string) (*planner.PrereqTree, error) {
	raw, err := s.RawTree(ctx, code, acadYear)
	if err != nil {
		return nil, err
	}
	return planner.ParsePrereqTree(raw)
}

// RawTree 先修树原始 JSON；课程无先修要求时返回 nil
func (s *PrereqSource) RawTree(ctx context.Context, code, acadYear string) (json.RawMessage, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.GetPrereqTree(ctx, acadYear, code)
		if err != nil {
			s.logger.Warn("读取先修树缓存失败", zap.String("acad_year", acadYear), zap.String("module_code", code), zap.Error(err))
		} else if ok {
			prereqLookups.WithLabelValues("cache").Inc()
			if string(raw) == "null" {
				return nil, nil
			}
			return raw, nil
		}
	}

	// 合并后的请求由多个调用方共享，不随单个调用方取消
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(acadYear+":"+code, func() (interface{}, error) {
		raw, err := s.fetcher.FetchPrereqTree(fetchCtx, acadYear, code)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetPrereqTree(fetchCtx, acadYear, code, raw, s.ttl); err != nil {
				s.logger.Warn("写入先修树缓存失败", zap.String("acad_year", acadYear), zap.String("module_code", code), zap.Error(err))
			}
		}
		return raw, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		prereqLookups.WithLabelValues("error").Inc()
		s.logger.Error("获取先修树失败", zap.String("acad_year", acadYear), zap.String("module_code", code), zap.Error(err))
		return nil, err
	}
	prereqLookups.WithLabelValues("upstream").Inc()

	raw, _ := v.(json.RawMessage)
	return raw, nil
}
