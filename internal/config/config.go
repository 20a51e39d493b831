// Package config resolves the process's runtime configuration from
// built-in defaults, an optional config.yaml sidecar, environment
// variables, and CLI flags, in that ascending order of precedence.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved process configuration.
type Config struct {
	Port     int    // gRPC port, accepted but unused by this service
	HTTPPort int
	DataDir  string

	DefaultM              int
	DefaultEfConstruction int
	DefaultEfSearch       int
	DefaultMaxElements    int
}

// builtins are the lowest-precedence values, applied before anything else.
func builtins() Config {
	return Config{
		Port:                  0,
		HTTPPort:              50052,
		DataDir:               "./data",
		DefaultM:              16,
		DefaultEfConstruction: 200,
		DefaultEfSearch:       50,
		DefaultMaxElements:    1_000_000,
	}
}

// fileDefaults is the shape of the optional config.yaml sidecar. Every
// field is optional; zero value means "not set, keep the lower-precedence
// value".
type fileDefaults struct {
	DefaultM              int `yaml:"default_m"`
	DefaultEfConstruction int `yaml:"default_ef_construction"`
	DefaultEfSearch       int `yaml:"default_ef_search"`
	DefaultMaxElements    int `yaml:"default_max_elements"`
}

// Flags carries the values the CLI layer parsed, with a Set companion so
// Resolve knows which flags the user actually passed versus left at their
// cobra zero-value default.
type Flags struct {
	Port     int
	HTTPPort int
	DataDir  string

	PortSet     bool
	HTTPPortSet bool
	DataDirSet  bool
}

// Resolve determines DataDir first (env, then flags), loads config.yaml
// from that directory for the HNSW defaults, then applies environment and
// flag overrides for the remaining fields on top of the built-in defaults.
func Resolve(flags Flags) Config {
	cfg := builtins()

	if v, ok := os.LookupEnv("VECTOR_DATA_DIR"); ok && v != "" {
		cfg.DataDir = v
	}
	if flags.DataDirSet {
		cfg.DataDir = flags.DataDir
	}

	if fd, ok := loadFileDefaults(cfg.DataDir); ok {
		applyFileDefaults(&cfg, fd)
	}

	if v, ok := envInt("VECTOR_PORT"); ok {
		cfg.Port = v
	}
	if v, ok := envInt("VECTOR_HTTP_PORT"); ok {
		cfg.HTTPPort = v
	}

	if flags.PortSet {
		cfg.Port = flags.Port
	}
	if flags.HTTPPortSet {
		cfg.HTTPPort = flags.HTTPPort
	}

	return cfg
}

func applyFileDefaults(cfg *Config, fd fileDefaults) {
	if fd.DefaultM > 0 {
		cfg.DefaultM = fd.DefaultM
	}
	if fd.DefaultEfConstruction > 0 {
		cfg.DefaultEfConstruction = fd.DefaultEfConstruction
	}
	if fd.DefaultEfSearch > 0 {
		cfg.DefaultEfSearch = fd.DefaultEfSearch
	}
	if fd.DefaultMaxElements > 0 {
		cfg.DefaultMaxElements = fd.DefaultMaxElements
	}
}

func loadFileDefaults(dataDir string) (fileDefaults, bool) {
	if dataDir == "" {
		return fileDefaults{}, false
	}
	data, err := os.ReadFile(dataDir + "/config.yaml")
	if err != nil {
		return fileDefaults{}, false
	}
	var fd fileDefaults
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return fileDefaults{}, false
	}
	return fd, true
}

func envInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
