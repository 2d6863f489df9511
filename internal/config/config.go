// Package config loads an optional loxvm.toml, the way lookbusy1344's
// emulator loads its own TOML configuration before falling back to
// defaults.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables a deployer might want to override without
// recompiling: the VM's fixed stack capacity, and two debug switches.
type Config struct {
	StackSize   int  `toml:"stack_size"`
	Trace       bool `toml:"trace"`
	Disassemble bool `toml:"disassemble"`
}

// Default returns the config loxvm ships with when no loxvm.toml is found.
func Default() Config {
	return Config{StackSize: 255}
}

// Load reads path and overlays it onto Default(). A missing file is not an
// error: the defaults apply as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
