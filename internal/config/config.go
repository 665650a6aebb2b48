// Package config defines the core's external configuration object and
// its TOML loader, mirroring original_source/lab4/src/config.rs's shape
// and defaults (field.width/height, food, delay) translated to Go names,
// loaded with github.com/BurntSushi/toml the way the pack's own daemon
// code loads its config.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the single configuration object §6 specifies: width, height,
// food_static, tick_delay_ms, plus the game name and the local player's
// nickname. The loader is external to the core (a Non-goal); this package
// only defines the shape and an optional TOML-file loader for a host
// binary to call.
type Config struct {
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	FoodStatic  int    `toml:"food_static"`
	TickDelayMs int    `toml:"tick_delay_ms"`
	Name        string `toml:"name"`
	Nickname    string `toml:"nickname"`
}

// Default returns the spec's default configuration: 40x30, food_static=1,
// tick_delay_ms=1000 (§6).
func Default() Config {
	return Config{
		Width:       40,
		Height:      30,
		FoodStatic:  1,
		TickDelayMs: 1000,
		Name:        "game",
		Nickname:    "player",
	}
}

// Load reads and parses a TOML file, starting from Default() so any field
// the file omits keeps its default value — mirroring the original's
// #[serde(default)] behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
