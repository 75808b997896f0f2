package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avalonserve/avalond/cmd/avalond/shared"
	"github.com/avalonserve/avalond/internal/registry"
	"github.com/avalonserve/avalond/internal/server"
)

// ServerCmd contains core server configuration
type ServerCmd struct {
	Addr          string `kong:"default=':8080',help='Server address'"`
	Debug         bool   `kong:"help='Enable debug logging'"`
	LogJSON       bool   `kong:"name='log-json',help='Emit structured JSON logs instead of console output'"`
	Config        string `kong:"default='avalond.hcl',help='Path to an HCL config file (missing file is ignored)'"`
	Seed          *int64 `kong:"help='Deterministic RNG seed for role deals (optional)'"`
	MaxPlayers    int    `kong:"help='Default room size cap'"`
	AssassinCount int    `kong:"help='Default number of hidden assassins'"`
	FailThreshold int    `kong:"help='Default fail votes needed to fail a mission'"`
	PruneInterval string `kong:"help='How often to sweep for abandoned rooms'"`
	PruneGrace    string `kong:"help='How long a fully-disconnected room survives'"`
}

func (c *ServerCmd) Run() error {
	cfg := server.DefaultConfig()

	fileCfg, err := server.LoadFileConfig(c.Config)
	if err != nil {
		return err
	}
	if err := fileCfg.Validate(); err != nil {
		return err
	}

	debug := c.Debug
	if fileCfg.Server != nil && fileCfg.Server.LogLevel == "debug" {
		debug = true
	}
	var logger zerolog.Logger
	if c.LogJSON {
		logger = shared.SetupStructuredLogger(debug)
	} else {
		logger = shared.SetupLogger(debug)
	}
	fileCfg.ApplyTo(&cfg)
	addr := fileCfg.Addr(c.Addr)

	// Flags win over the config file.
	if c.MaxPlayers != 0 {
		cfg.RoomDefaults.MaxPlayers = c.MaxPlayers
	}
	if c.AssassinCount != 0 {
		cfg.RoomDefaults.AssassinCount = c.AssassinCount
	}
	if c.FailThreshold != 0 {
		cfg.RoomDefaults.FailThreshold = c.FailThreshold
	}
	if c.PruneInterval != "" {
		d, err := time.ParseDuration(c.PruneInterval)
		if err != nil {
			return err
		}
		cfg.PruneInterval = d
	}
	if c.PruneGrace != "" {
		d, err := time.ParseDuration(c.PruneGrace)
		if err != nil {
			return err
		}
		cfg.PruneGrace = d
	}

	if c.Seed != nil {
		cfg.Seed = *c.Seed
		logger.Info().Int64("seed", cfg.Seed).Msg("Using deterministic seed")
	} else {
		cfg.Seed = time.Now().UnixNano()
		logger.Info().Int64("seed", cfg.Seed).Msg("Using random seed")
	}

	reg := registry.New(cfg.Seed, cfg.RoomDefaults, nil, logger)
	svc := server.NewService(reg, logger)
	s := server.NewServer(svc, cfg, logger)

	logger.Info().
		Str("address", addr).
		Int("max_players", cfg.RoomDefaults.MaxPlayers).
		Int("assassin_count", cfg.RoomDefaults.AssassinCount).
		Int("fail_threshold", cfg.RoomDefaults.FailThreshold).
		Str("stalled_winner", string(cfg.RoomDefaults.StalledWinner)).
		Dur("prune_interval", cfg.PruneInterval).
		Dur("prune_grace", cfg.PruneGrace).
		Msg("Starting avalond server")

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
