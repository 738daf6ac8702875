// Package config persists the KIM-1 core's long-lived configuration blob:
// the default memory map, Wi-Fi credentials, video settings, controller
// flags and per-drive mounts. It is the single owned configuration value,
// created at startup and passed by reference into every subsystem
// alongside the controller singleton.
package config

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/kim1fw/memcard/cell"
)

// DriveConfig is one of up to four persisted drive mounts.
type DriveConfig struct {
	ImageName string
	ReadOnly  bool
}

// NumDrives mirrors fdc.NumDrives; config has no import on fdc to avoid a
// cycle (fdc never needs to read config directly — cmd/kimcore wires it).
const NumDrives = 4

// Config is the persisted configuration blob. Versioning is by
// regeneration: there is no schema version field. A missing config file
// just means start over with Default(); an unreadable one is a real error.
type Config struct {
	MemoryMap [cell.NumCells]uint16

	WiFiCountry  string
	WiFiSSID     string
	WiFiPassword string

	VideoSystem  string // e.g. "NTSC", "PAL"
	VideoBase    uint16

	ControllerEnable bool
	OptionSwitch     bool
	UserRAMBase      uint16
	SystemRAMBase    uint16

	Drives [NumDrives]DriveConfig
}

// defaultSignature is the factory ROM signature baked into every fresh
// memory map at 0xA000, the way a real board's mask ROM would ship with an
// identifying string baked in.
const defaultSignatureBase = 0xA000

var defaultSignature = [...]byte{'E', 'D', 'U', 'A', 'R', 'D', 'O'}

// Default returns a Config whose memory map has every cell word zero
// (enabled, read-only, data 0, as cell.NewStore does) except the factory
// signature bytes at 0xA000, which carry the same attributes, and no
// drives mounted.
func Default() *Config {
	cfg := &Config{
		VideoSystem: "NTSC",
		VideoBase:   0x2000,
	}
	for i, b := range defaultSignature {
		cfg.MemoryMap[defaultSignatureBase+i] = uint16(b)
	}
	return cfg
}

// Load reads a gob-encoded Config from path. If path does not exist, it
// returns a fresh Default() config rather than an error, matching the
// "versioning is by regeneration" policy: a missing or stale file just
// means start over.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := gob.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as gob, overwriting any prior contents.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return f.Sync()
}
