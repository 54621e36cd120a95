// Package session 保存匿名会话的语言偏好，不保存对话内容。
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

// ErrSessionNotFound 表示会话不存在或已过期。
var ErrSessionNotFound = errors.New("session not found")

// Store 抽象会话存储。
type Store interface {
	Create(ctx context.Context) (chat.Session, error)
	Load(ctx context.Context, id string) (chat.Session, error)
	Save(ctx context.Context, session chat.Session) error
	// Touch 刷新会话的活跃时间与过期时间，会话不存在时返回 ErrSessionNotFound。
	Touch(ctx context.Context, id string) error
}

// newSession 生成一条新的会话记录。
func newSession(now time.Time) chat.Session {
	return chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MemoryStore 是进程内的会话存储，适合单实例部署与测试。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore 创建内存存储，ttl <= 0 表示永不过期。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]chat.Session),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create 新建一个会话。
func (s *MemoryStore) Create(_ context.Context) (chat.Session, error) {
	session := newSession(s.now())

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Load 读取会话，过期的会话会被顺带清理。
func (s *MemoryStore) Load(_ context.Context, id string) (chat.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}

	if s.expired(session) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Save 写回会话，只允许更新已存在的会话。
func (s *MemoryStore) Save(_ context.Context, session chat.Session) error {
	if session.ID == "" {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return ErrSessionNotFound
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = s.now()
	}
	s.sessions[session.ID] = session
	return nil
}

// Touch 把会话的 UpdatedAt 推到当前时间，过期判断从此重新计时。
func (s *MemoryStore) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.expired(session) {
		delete(s.sessions, id)
		return ErrSessionNotFound
	}
	session.UpdatedAt = s.now()
	s.sessions[id] = session
	return nil
}

func (s *MemoryStore) expired(session chat.Session) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(session.UpdatedAt) > s.ttl
}
