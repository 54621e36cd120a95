package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

const keyPrefix = "mindharbor:session:"

// RedisStore 把会话保存为 Redis hash，并在每次写入时刷新过期时间。
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStore 连接 Redis 并确认可用。
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

// Close 关闭 Redis 连接。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) Create(ctx context.Context) (chat.Session, error) {
	session := newSession(time.Now().UTC())
	if err := s.write(ctx, session); err != nil {
		return chat.Session{}, err
	}
	return session, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, ErrSessionNotFound
	}

	fields, err := s.rdb.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return chat.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if len(fields) == 0 {
		return chat.Session{}, ErrSessionNotFound
	}

	session := chat.Session{ID: id, PreferredLanguage: fields["preferred_language"]}
	if session.CreatedAt, err = parseTime(fields["created_at"]); err != nil {
		return chat.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if session.UpdatedAt, err = parseTime(fields["updated_at"]); err != nil {
		return chat.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return session, nil
}

func (s *RedisStore) Save(ctx context.Context, session chat.Session) error {
	if session.ID == "" {
		return ErrSessionNotFound
	}

	exists, err := s.rdb.Exists(ctx, keyPrefix+session.ID).Result()
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now().UTC()
	}
	return s.write(ctx, session)
}

// Touch 续期会话。先续 TTL 再写 updated_at，避免给已过期的 key 写出残缺的 hash。
func (s *RedisStore) Touch(ctx context.Context, id string) error {
	if id == "" {
		return ErrSessionNotFound
	}
	key := keyPrefix + id

	if s.ttl > 0 {
		ok, err := s.rdb.Expire(ctx, key, s.ttl).Result()
		if err != nil {
			return fmt.Errorf("touch session %s: %w", id, err)
		}
		if !ok {
			return ErrSessionNotFound
		}
	} else {
		exists, err := s.rdb.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("touch session %s: %w", id, err)
		}
		if exists == 0 {
			return ErrSessionNotFound
		}
	}

	if err := s.rdb.HSet(ctx, key, "updated_at", time.Now().UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, session chat.Session) error {
	key := keyPrefix + session.ID

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"preferred_language", session.PreferredLanguage,
			"created_at", session.CreatedAt.Format(time.RFC3339Nano),
			"updated_at", session.UpdatedAt.Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session %s: %w", session.ID, err)
	}
	return nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.Parse(time.RFC3339Nano, raw)
}
