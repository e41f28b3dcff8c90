package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fastrand"
	"go.uber.org/zap"
)

const codeAllocationAttempts = 100

// RegistryConfig carries everything new rooms need. NewScheduler exists so
// tests can hand rooms a manual clock.
type RegistryConfig struct {
	Bank      QuestionBank
	Snapshots SnapshotStore
	Records   GameRecorder
	Logger    *zap.SugaredLogger

	QuestionWindow time.Duration
	ResultsHold    time.Duration
	GameOverLinger time.Duration
	LobbyIdleTTL   time.Duration
	MaxPlayers     int

	NewScheduler func() Scheduler
}

// Registry is the only cross-room shared structure: an RWMutex-guarded map
// from code to room. Room internals never run under the registry lock.
type Registry struct {
	cfg    RegistryConfig
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	rooms map[string]*Room
	rng   fastrand.RNG
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.NewScheduler == nil {
		cfg.NewScheduler = func() Scheduler { return NewGameClock() }
	}
	return &Registry{
		cfg:    cfg,
		logger: cfg.Logger.Named("registry"),
		rooms:  map[string]*Room{},
	}
}

// CreateRoom allocates a free 6-digit code and spins up a room with the
// caller as host. Codes are regenerated on collision and never reused while
// a room holds them.
func (g *Registry) CreateRoom(host Identity, category string) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == codeAllocationAttempts {
			return nil, ErrCapacityExceeded
		}
		code = fmt.Sprintf("%06d", g.rng.Uint32n(1000000))
		if _, taken := g.rooms[code]; !taken {
			break
		}
	}

	room := NewRoom(code, host, category, RoomDeps{
		Bank:           g.cfg.Bank,
		Clock:          g.cfg.NewScheduler(),
		Snapshots:      g.cfg.Snapshots,
		Records:        g.cfg.Records,
		Logger:         g.cfg.Logger.Named("room").With("room", code),
		QuestionWindow: g.cfg.QuestionWindow,
		ResultsHold:    g.cfg.ResultsHold,
		GameOverLinger: g.cfg.GameOverLinger,
		MaxPlayers:     g.cfg.MaxPlayers,
		OnClosed:       g.Remove,
	})
	g.rooms[code] = room
	g.logger.Infof("room %s created, host %s, category %q", code, host.ID, category)
	return room, nil
}

func (g *Registry) Resolve(code string) (*Room, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}

// Remove drops the room from the map. Idempotent; safe from clock-driven
// cleanup and from teardown hooks.
func (g *Registry) Remove(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[code]; ok {
		delete(g.rooms, code)
		g.logger.Infof("room %s removed", code)
	}
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// Janitor reclaims rooms nobody is connected to once they have sat idle
// past the lobby TTL. Runs until ctx is cancelled.
func (g *Registry) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			g.mu.RLock()
			candidates := make([]*Room, 0, len(g.rooms))
			for _, room := range g.rooms {
				candidates = append(candidates, room)
			}
			g.mu.RUnlock()

			for _, room := range candidates {
				if room.Reclaimable(g.cfg.LobbyIdleTTL, now) {
					g.logger.Infof("reclaiming idle room %s", room.Code())
					room.Teardown("room reclaimed after inactivity")
				}
			}
		}
	}
}
