package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoomSnapshot is the externally visible state of a room at a point in
// time. Rooms write one after every phase transition; the REST surface
// reads them. Best effort only: the in-memory room is authoritative.
type RoomSnapshot struct {
	Code          string        `json:"code"`
	Category      string        `json:"category"`
	HostID        string        `json:"host_id"`
	Phase         string        `json:"phase"`
	QuestionIndex int           `json:"question_index"`
	Players       []RosterEntry `json:"players"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type SnapshotStore interface {
	Save(ctx context.Context, snap *RoomSnapshot) error
	Load(ctx context.Context, code string) (*RoomSnapshot, error)
	Delete(ctx context.Context, code string) error
}

const snapshotTTL = 2 * time.Hour

type redisSnapshotStore struct {
	client *redis.Client
}

func NewSnapshotStore(client *redis.Client) SnapshotStore {
	return &redisSnapshotStore{client: client}
}

func snapshotKey(code string) string {
	return "room:" + code
}

func (s *redisSnapshotStore) Save(ctx context.Context, snap *RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(snap.Code), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *redisSnapshotStore) Load(ctx context.Context, code string) (*RoomSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap RoomSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *redisSnapshotStore) Delete(ctx context.Context, code string) error {
	return s.client.Del(ctx, snapshotKey(code)).Err()
}
