package obdex

/*------------------------------------------------------------------
 *
 * Purpose:	Runtime configuration (SPEC_FULL.md 6): the obdex.yaml
 *		document shape and its loader.
 *
 * Description:	Grounded on deviceid.go's tocalls.yaml loading (a
 *		fixed search path list, gopkg.in/yaml.v3, read once at
 *		startup). Unlike deviceid.go this has no effect on
 *		protocol semantics; it only wires up cmd/obdex-cli.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the obdex.yaml document shape.
type Config struct {
	// CatalogPath names an XML catalog document. It is parsed but not
	// read by cmd/obdex-cli, which takes the catalog from --catalog.
	CatalogPath string `yaml:"catalog"`

	// LogLevel is one of "debug", "info", "warn", "error". This is the
	// only field cmd/obdex-cli applies.
	LogLevel string `yaml:"log_level"`

	// Options holds per-protocol option values keyed by protocol name.
	// It is parsed but nothing in this module applies it; protocol
	// options come only from the catalog's <option> children.
	Options map[string]map[string]string `yaml:"options"`
}

// DefaultConfig returns the configuration obdex.yaml's omitted fields
// fall back to.
func DefaultConfig() Config {
	return Config{LogLevel: "info"}
}

// LoadConfig reads and parses an obdex.yaml document from path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("obdex: reading config %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("obdex: parsing config %q: %w", path, err)
	}

	return cfg, nil
}

// ParseLogLevel maps a config log_level string to a LogLevel, per
// SPEC_FULL.md A's logging facade. Unrecognized values fall back to
// LevelInfo.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "trace", "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
