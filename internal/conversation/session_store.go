package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/aihub/ragbot-go/internal/errors"
)

// Message 会话历史条目
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session 单个会话状态
type Session struct {
	ID           string    `json:"id"`
	History      []Message `json:"history"`
	LastIntent   string    `json:"last_intent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	// NoticeShown 补充信息是否已展示过（每会话一次）
	NoticeShown bool `json:"notice_shown"`

	maxHistory int
}

// NewSession 创建会话
func NewSession(id string, maxHistory int) *Session {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActivity: now,
		maxHistory:   maxHistory,
	}
}

// AddMessage 追加历史并刷新活跃时间，超出上限时淘汰最旧的
func (s *Session) AddMessage(role, content string, intent Intent) {
	s.History = append(s.History, Message{
		Role:      role,
		Content:   content,
		Intent:    string(intent),
		Timestamp: time.Now(),
	})
	if len(s.History) > s.maxHistory {
		s.History = s.History[len(s.History)-s.maxHistory:]
	}
	s.LastActivity = time.Now()
	if intent != "" {
		s.LastIntent = string(intent)
	}
}

// Expired 判断会话是否超时
func (s *Session) Expired(timeout time.Duration) bool {
	return time.Since(s.LastActivity) > timeout
}

// clone 深拷贝会话。存储层只交付副本，跨请求不共享可变状态
func (s *Session) clone() *Session {
	c := *s
	c.History = make([]Message, len(s.History))
	copy(c.History, s.History)
	return &c
}

// SessionStore 会话存储抽象，支持进程内与Redis两种实现
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) ([]*Session, error)
}

// MemoryStore 进程内会话存储（默认实现）。
// Get/All返回深拷贝，修改必须经Save写回：清理扫描与统计
// 读到的是快照，不会与正在处理请求的会话写操作竞争。
type MemoryStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	maxHistory int
}

// NewMemoryStore 创建进程内会话存储
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return session.clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.maxHistory = m.maxHistory
	m.sessions[session.ID] = session.clone()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) All(ctx context.Context) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s.clone())
	}
	return sessions, nil
}

const redisSessionPrefix = "ragbot:session:"

// RedisStore Redis会话存储，多进程部署时替换MemoryStore。
// 会话按超时时间设置TTL，过期淘汰交给Redis。
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxHistory int
}

// NewRedisStore 创建Redis会话存储
func NewRedisStore(client *redis.Client, ttl time.Duration, maxHistory int) *RedisStore {
	return &RedisStore{
		client:     client,
		ttl:        ttl,
		maxHistory: maxHistory,
	}
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, redisSessionPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeSessionStoreFailed,
			"session store read failed").WithCause(err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	session.maxHistory = r.maxHistory
	return &session, nil
}

func (r *RedisStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisSessionPrefix+session.ID, data, r.ttl).Err(); err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeSessionStoreFailed,
			"session store write failed").WithCause(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, redisSessionPrefix+id).Err(); err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeSessionStoreFailed,
			"session store delete failed").WithCause(err)
	}
	return nil
}

func (r *RedisStore) All(ctx context.Context) ([]*Session, error) {
	var sessions []*Session
	iter := r.client.Scan(ctx, 0, redisSessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var session Session
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		session.maxHistory = r.maxHistory
		sessions = append(sessions, &session)
	}
	if err := iter.Err(); err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeSessionStoreFailed,
			"session store scan failed").WithCause(err)
	}
	return sessions, nil
}
