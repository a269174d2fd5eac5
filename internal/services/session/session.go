// Package session stores short-lived conversation state for admin flows
// (the multi-step add-keyword dialog and menu selections). Sessions expire
// on their own; an abandoned dialog simply times out.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/config"
	"github.com/tg-guard-bot-go/internal/models"
)

// Storage defines session state operations.
type Storage interface {
	GetSession(ctx context.Context, adminID int64) (*models.KeywordSession, error)
	SaveSession(ctx context.Context, session *models.KeywordSession) error
	DeleteSession(ctx context.Context, adminID int64) error

	GetState(ctx context.Context, userID int64, key string) (string, error)
	SetState(ctx context.Context, userID int64, key, value string) error
	DeleteState(ctx context.Context, userID int64, key string) error
}

// Manager selects and wraps a storage backend.
type Manager struct {
	storage Storage
	logger  *logrus.Logger
}

// NewManager creates a session manager with the configured backend.
func NewManager(cfg *config.Config, logger *logrus.Logger) (*Manager, error) {
	var storage Storage

	switch cfg.Session.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(&cfg.Session.Redis, logger)
		if err != nil {
			return nil, err
		}
		storage = redisStorage
	case "memory":
		storage = NewMemoryStorage(&cfg.Session.Memory, logger)
	default:
		return nil, fmt.Errorf("unsupported session storage type: %s", cfg.Session.Type)
	}

	return &Manager{storage: storage, logger: logger}, nil
}

func (m *Manager) GetSession(ctx context.Context, adminID int64) (*models.KeywordSession, error) {
	return m.storage.GetSession(ctx, adminID)
}

func (m *Manager) SaveSession(ctx context.Context, session *models.KeywordSession) error {
	return m.storage.SaveSession(ctx, session)
}

func (m *Manager) DeleteSession(ctx context.Context, adminID int64) error {
	return m.storage.DeleteSession(ctx, adminID)
}

func (m *Manager) GetState(ctx context.Context, userID int64, key string) (string, error) {
	return m.storage.GetState(ctx, userID, key)
}

func (m *Manager) SetState(ctx context.Context, userID int64, key string, value string) error {
	return m.storage.SetState(ctx, userID, key, value)
}

func (m *Manager) DeleteState(ctx context.Context, userID int64, key string) error {
	return m.storage.DeleteState(ctx, userID, key)
}

// RedisStorage keeps sessions in Redis with a 1h expiry.
type RedisStorage struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{client: client, logger: logger}, nil
}

func sessionKey(adminID int64) string {
	return fmt.Sprintf("kw_session:%d", adminID)
}

func stateKey(userID int64, key string) string {
	return fmt.Sprintf("user_state:%d:%s", userID, key)
}

func (r *RedisStorage) GetSession(ctx context.Context, adminID int64) (*models.KeywordSession, error) {
	data, err := r.client.Get(ctx, sessionKey(adminID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session models.KeywordSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *RedisStorage) SaveSession(ctx context.Context, session *models.KeywordSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKey(session.AdminID), data, time.Hour).Err()
}

func (r *RedisStorage) DeleteSession(ctx context.Context, adminID int64) error {
	return r.client.Del(ctx, sessionKey(adminID)).Err()
}

func (r *RedisStorage) GetState(ctx context.Context, userID int64, key string) (string, error) {
	value, err := r.client.Get(ctx, stateKey(userID, key)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

func (r *RedisStorage) SetState(ctx context.Context, userID int64, key string, value string) error {
	return r.client.Set(ctx, stateKey(userID, key), value, time.Hour).Err()
}

func (r *RedisStorage) DeleteState(ctx context.Context, userID int64, key string) error {
	return r.client.Del(ctx, stateKey(userID, key)).Err()
}

// MemoryStorage keeps sessions in an in-process TTL cache.
type MemoryStorage struct {
	sessions *cache.Cache
	states   *cache.Cache
	logger   *logrus.Logger
}

func NewMemoryStorage(cfg *config.MemoryConfig, logger *logrus.Logger) *MemoryStorage {
	return &MemoryStorage{
		sessions: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
		states:   cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
		logger:   logger,
	}
}

func (m *MemoryStorage) GetSession(ctx context.Context, adminID int64) (*models.KeywordSession, error) {
	if val, found := m.sessions.Get(sessionKey(adminID)); found {
		return val.(*models.KeywordSession), nil
	}
	return nil, nil
}

func (m *MemoryStorage) SaveSession(ctx context.Context, session *models.KeywordSession) error {
	m.sessions.SetDefault(sessionKey(session.AdminID), session)
	return nil
}

func (m *MemoryStorage) DeleteSession(ctx context.Context, adminID int64) error {
	m.sessions.Delete(sessionKey(adminID))
	return nil
}

func (m *MemoryStorage) GetState(ctx context.Context, userID int64, key string) (string, error) {
	if val, found := m.states.Get(stateKey(userID, key)); found {
		return val.(string), nil
	}
	return "", nil
}

func (m *MemoryStorage) SetState(ctx context.Context, userID int64, key string, value string) error {
	m.states.SetDefault(stateKey(userID, key), value)
	return nil
}

func (m *MemoryStorage) DeleteState(ctx context.Context, userID int64, key string) error {
	m.states.Delete(stateKey(userID, key))
	return nil
}
