package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CheckpointState tracks the lifecycle of a recovery point.
type CheckpointState string

const (
	CheckpointCreated    CheckpointState = "created"
	CheckpointCommitted  CheckpointState = "committed"
	CheckpointRolledBack CheckpointState = "rolled_back"
)

// Checkpoint is an opaque recovery point wrapped around one run. Created
// before the plan is built, committed after the last level on full success,
// rolled back with a reason on any level failure.
type Checkpoint struct {
	ID        string          `json:"id"`
	Tag       string          `json:"tag"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	State     CheckpointState `json:"state"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CheckpointStore is the rollback collaborator contract consumed by the
// orchestrator.
type CheckpointStore interface {
	CreateCheckpoint(ctx context.Context, tag string, metadata map[string]any) (string, error)
	CommitCheckpoint(ctx context.Context, id string) error
	Rollback(ctx context.Context, id string, reason string) error
}

func newCheckpointID() string {
	return "ckpt_" + uuid.NewString()
}

// MemoryCheckpointStore provides in-memory checkpoint storage.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryCheckpointStore creates a new in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*Checkpoint),
	}
}

func (s *MemoryCheckpointStore) CreateCheckpoint(ctx context.Context, tag string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := &Checkpoint{
		ID:        newCheckpointID(),
		Tag:       tag,
		Metadata:  metadata,
		State:     CheckpointCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.checkpoints[cp.ID] = cp
	return cp.ID, nil
}

func (s *MemoryCheckpointStore) CommitCheckpoint(ctx context.Context, id string) error {
	return s.transition(id, CheckpointCommitted, "")
}

func (s *MemoryCheckpointStore) Rollback(ctx context.Context, id string, reason string) error {
	return s.transition(id, CheckpointRolledBack, reason)
}

func (s *MemoryCheckpointStore) transition(id string, state CheckpointState, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.checkpoints[id]
	if !ok {
		return fmt.Errorf("checkpoint not found: %s", id)
	}
	cp.State = state
	cp.Reason = reason
	cp.UpdatedAt = time.Now()
	return nil
}

// Get returns a copy of a stored checkpoint.
func (s *MemoryCheckpointStore) Get(id string) (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[id]
	if !ok {
		return Checkpoint{}, false
	}
	return *cp, true
}

// RedisCheckpointStore persists checkpoints as JSON blobs in Redis, one key
// per checkpoint.
type RedisCheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCheckpointStore creates a Redis-backed store. A zero ttl keeps
// checkpoints until explicitly deleted by an external janitor.
func NewRedisCheckpointStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCheckpointStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCheckpointStore{
		client: client,
		prefix: "pipeflow:checkpoint:",
		ttl:    ttl,
		logger: logger.With(zap.String("component", "redis_checkpoint_store")),
	}
}

func (s *RedisCheckpointStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisCheckpointStore) save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", cp.ID, err)
	}
	if err := s.client.Set(ctx, s.key(cp.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}
	return nil
}

func (s *RedisCheckpointStore) load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

func (s *RedisCheckpointStore) CreateCheckpoint(ctx context.Context, tag string, metadata map[string]any) (string, error) {
	now := time.Now()
	cp := &Checkpoint{
		ID:        newCheckpointID(),
		Tag:       tag,
		Metadata:  metadata,
		State:     CheckpointCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, cp); err != nil {
		return "", err
	}
	s.logger.Debug("checkpoint created", zap.String("id", cp.ID), zap.String("tag", tag))
	return cp.ID, nil
}

func (s *RedisCheckpointStore) CommitCheckpoint(ctx context.Context, id string) error {
	return s.transition(ctx, id, CheckpointCommitted, "")
}

func (s *RedisCheckpointStore) Rollback(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, CheckpointRolledBack, reason)
}

func (s *RedisCheckpointStore) transition(ctx context.Context, id string, state CheckpointState, reason string) error {
	cp, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	cp.State = state
	cp.Reason = reason
	cp.UpdatedAt = time.Now()
	if err := s.save(ctx, cp); err != nil {
		return err
	}
	s.logger.Debug("checkpoint transitioned",
		zap.String("id", id),
		zap.String("state", string(state)),
	)
	return nil
}

// Get loads a checkpoint for inspection.
func (s *RedisCheckpointStore) Get(ctx context.Context, id string) (Checkpoint, error) {
	cp, err := s.load(ctx, id)
	if err != nil {
		return Checkpoint{}, err
	}
	return *cp, nil
}
