package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/avalonserve/avalond/internal/room"
	"github.com/avalonserve/avalond/internal/rules"
)

// Config is the resolved runtime configuration for the server.
type Config struct {
	// Seed drives every room's RNG; 0 means derive from the clock.
	Seed int64
	// RoomDefaults apply to rooms whose creation request leaves a knob unset.
	RoomDefaults room.Config
	// PruneInterval is how often the janitor looks for abandoned rooms.
	PruneInterval time.Duration
	// PruneGrace is how long a fully-disconnected room is kept before
	// teardown, giving its players a reconnection window.
	PruneGrace time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() Config {
	return Config{
		RoomDefaults: room.Config{
			MaxPlayers:    rules.MaxPlayers,
			AssassinCount: 1,
			FailThreshold: rules.DefaultFailThreshold,
			StalledWinner: rules.WinnerEvil,
		},
		PruneInterval: time.Minute,
		PruneGrace:    10 * time.Minute,
	}
}

// FileConfig is the optional HCL configuration file.
type FileConfig struct {
	Server *ServerSettings `hcl:"server,block"`
	Rooms  *RoomSettings   `hcl:"rooms,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// RoomSettings contains default room rule knobs.
type RoomSettings struct {
	MaxPlayers    int    `hcl:"max_players,optional"`
	AssassinCount int    `hcl:"assassin_count,optional"`
	FailThreshold int    `hcl:"fail_threshold,optional"`
	StalledWinner string `hcl:"stalled_winner,optional"`
	PruneInterval string `hcl:"prune_interval,optional"`
	PruneGrace    string `hcl:"prune_grace,optional"`
}

// LoadFileConfig loads configuration from an HCL file. A missing file is not
// an error; it yields an empty config.
func LoadFileConfig(filename string) (*FileConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return &FileConfig{}, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config FileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	return &config, nil
}

// Validate checks the file config for inconsistent values.
func (fc *FileConfig) Validate() error {
	if fc.Server != nil {
		if fc.Server.Port != 0 && (fc.Server.Port < 1 || fc.Server.Port > 65535) {
			return fmt.Errorf("invalid port: %d", fc.Server.Port)
		}
	}
	if fc.Rooms == nil {
		return nil
	}
	r := fc.Rooms
	if r.MaxPlayers != 0 && (r.MaxPlayers < rules.MinPlayers || r.MaxPlayers > rules.MaxPlayers) {
		return fmt.Errorf("max_players must be between %d and %d, got %d", rules.MinPlayers, rules.MaxPlayers, r.MaxPlayers)
	}
	if r.AssassinCount < 0 || (r.MaxPlayers != 0 && r.AssassinCount >= r.MaxPlayers) {
		return fmt.Errorf("assassin_count %d out of range for %d players", r.AssassinCount, r.MaxPlayers)
	}
	if r.FailThreshold < 0 {
		return fmt.Errorf("fail_threshold must be positive, got %d", r.FailThreshold)
	}
	switch r.StalledWinner {
	case "", string(rules.WinnerGood), string(rules.WinnerEvil):
	default:
		return fmt.Errorf("stalled_winner must be %q or %q, got %q", rules.WinnerGood, rules.WinnerEvil, r.StalledWinner)
	}
	for _, d := range []string{r.PruneInterval, r.PruneGrace} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration %q: %w", d, err)
		}
	}
	return nil
}

// ApplyTo overlays the file config onto a runtime config.
func (fc *FileConfig) ApplyTo(cfg *Config) {
	if fc.Rooms == nil {
		return
	}
	r := fc.Rooms
	if r.MaxPlayers != 0 {
		cfg.RoomDefaults.MaxPlayers = r.MaxPlayers
	}
	if r.AssassinCount != 0 {
		cfg.RoomDefaults.AssassinCount = r.AssassinCount
	}
	if r.FailThreshold != 0 {
		cfg.RoomDefaults.FailThreshold = r.FailThreshold
	}
	if r.StalledWinner != "" {
		cfg.RoomDefaults.StalledWinner = rules.Winner(r.StalledWinner)
	}
	if r.PruneInterval != "" {
		if d, err := time.ParseDuration(r.PruneInterval); err == nil {
			cfg.PruneInterval = d
		}
	}
	if r.PruneGrace != "" {
		if d, err := time.ParseDuration(r.PruneGrace); err == nil {
			cfg.PruneGrace = d
		}
	}
}

// Addr returns the listen address from the file config, or the fallback.
func (fc *FileConfig) Addr(fallback string) string {
	if fc.Server == nil {
		return fallback
	}
	if fc.Server.Address == "" && fc.Server.Port == 0 {
		return fallback
	}
	addr := fc.Server.Address
	port := fc.Server.Port
	if port == 0 {
		return addr + ":8080"
	}
	return fmt.Sprintf("%s:%d", addr, port)
}
