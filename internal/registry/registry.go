// Package registry owns the mapping from shareable room codes to live Room
// instances. Rooms are fully independent of each other: the registry lock
// only guards the map, never a room's own state, so actions against
// different rooms proceed in parallel.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/avalonserve/avalond/internal/randutil"
	"github.com/avalonserve/avalond/internal/room"
	"github.com/avalonserve/avalond/internal/roomcode"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	// ErrIdentityNotFound is surfaced when a client presents a durable
	// identity for a room that no longer exists or has been reset since the
	// disconnect. Identity state is room-scoped and dies with the room.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Registry creates, resolves and reclaims rooms.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*room.Room
	seed   int64
	codes  *roomcode.Generator
	clock  quartz.Clock
	logger zerolog.Logger

	defaults room.Config
}

// New builds a registry. Room RNGs are derived from the seed and the room
// code so a fixed seed reproduces every room's role deal.
func New(seed int64, defaults room.Config, clock quartz.Clock, logger zerolog.Logger) *Registry {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Registry{
		rooms:    make(map[string]*room.Room),
		seed:     seed,
		codes:    roomcode.NewGenerator(randutil.New(seed)),
		clock:    clock,
		logger:   logger.With().Str("component", "registry").Logger(),
		defaults: defaults,
	}
}

// Create allocates a room under a fresh code. Zero config fields fall back
// to the registry defaults.
func (g *Registry) Create(cfg room.Config) *room.Room {
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = g.defaults.MaxPlayers
	}
	if cfg.AssassinCount == 0 {
		cfg.AssassinCount = g.defaults.AssassinCount
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = g.defaults.FailThreshold
	}
	if cfg.StalledWinner == "" {
		cfg.StalledWinner = g.defaults.StalledWinner
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for {
		code = g.codes.Generate()
		if _, taken := g.rooms[code]; !taken {
			break
		}
	}

	r := room.New(code, cfg, randutil.NewFromString(g.seed, code), g.clock, g.logger)
	g.rooms[code] = r
	g.logger.Info().Str("code", code).Int("rooms", len(g.rooms)).Msg("room created")
	return r
}

// Get resolves a room by code. Codes are normalized so a hand-typed
// lowercase code still lands.
func (g *Registry) Get(code string) (*room.Room, error) {
	code = roomcode.Normalize(code)

	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove drops a room from the registry. Idempotent.
func (g *Registry) Remove(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.rooms[code]; ok {
		delete(g.rooms, code)
		g.logger.Info().Str("code", code).Int("rooms", len(g.rooms)).Msg("room removed")
	}
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// PruneAbandoned removes rooms whose entire roster has been gone for longer
// than grace, and empty rooms. Returns the number removed.
func (g *Registry) PruneAbandoned(grace time.Duration) int {
	cutoff := g.clock.Now().Add(-grace)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for code, r := range g.rooms {
		if r.Abandoned(cutoff) {
			delete(g.rooms, code)
			removed++
			g.logger.Info().Str("code", code).Msg("room pruned")
		}
	}
	return removed
}
