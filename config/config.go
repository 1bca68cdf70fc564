// Package config loads easd settings from the environment and an optional
// YAML file.
//
// Environment variables (prefix EASD_) carry process settings. The file
// declares the ledger's genesis state: resolver bindings, schemas registered
// at startup, and the archive layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"xdao.co/attest/compliance"
	"xdao.co/attest/storage/archive"
)

const EnvPrefix = "EASD_"

// Daemon holds process settings.
type Daemon struct {
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:"127.0.0.1:7420"`
	ConfigFile      string        `env:"CONFIG"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	Compliance      string        `env:"COMPLIANCE"`
	ArchiveDir      string        `env:"ARCHIVE_DIR"`
	MaxMsgBytes     int           `env:"MAX_MSG_BYTES"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// FromEnv reads Daemon from EASD_* variables.
func FromEnv() (Daemon, error) {
	return FromEnvironment(nil)
}

// FromEnvironment reads Daemon from vars instead of the process environment
// when vars is non-nil.
func FromEnvironment(vars map[string]string) (Daemon, error) {
	var d Daemon
	opts := env.Options{Prefix: EnvPrefix}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&d, opts); err != nil {
		return Daemon{}, fmt.Errorf("config: %w", err)
	}
	return d, nil
}

func (d Daemon) Validate() error {
	if strings.TrimSpace(d.ListenAddr) == "" {
		return fmt.Errorf("config: listen address must be set")
	}
	if _, err := zapcore.ParseLevel(d.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch d.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: log format must be json or console, got %q", d.LogFormat)
	}
	if _, err := compliance.Parse(d.Compliance); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if d.MaxMsgBytes < 0 {
		return fmt.Errorf("config: max message size cannot be negative")
	}
	return nil
}

// Logger builds the process logger. The console format uses zap's
// development encoder.
func (d Daemon) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(d.LogLevel)
	if err != nil {
		return nil, err
	}
	var cfg zap.Config
	if d.LogFormat == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// File is the YAML genesis file.
//
// Example:
//
//	compliance: strict
//	resolvers:
//	  - address: "0x00000000000000000000000000000000000000a1"
//	    kind: attestation-ref
//	schemas:
//	  - schema: "bytes32 eventId,uint8 ticketType,uint32 ticketNum"
//	    resolver: "0x00000000000000000000000000000000000000a1"
//	    revocable: true
//	archive:
//	  backends:
//	    - name: localfs
//	      dir: /var/lib/easd/archive
type File struct {
	Compliance string            `yaml:"compliance"`
	Resolvers  []ResolverBinding `yaml:"resolvers"`
	Schemas    []GenesisSchema   `yaml:"schemas"`
	Archive    *archive.Config   `yaml:"archive"`
}

type ResolverBinding struct {
	Address string            `yaml:"address"`
	Kind    string            `yaml:"kind"`
	Params  map[string]string `yaml:"params"`
}

type GenesisSchema struct {
	Schema string `yaml:"schema"`
	// Resolver is empty for schemas without a resolver.
	Resolver  string `yaml:"resolver"`
	Revocable bool   `yaml:"revocable"`
}

// Load reads and parses a genesis file.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return f, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse config file: %w", err)
	}
	return f, nil
}

// ComplianceMode picks the reference policy. The environment wins over the
// file.
func (d Daemon) ComplianceMode(f File) (compliance.ComplianceMode, error) {
	if strings.TrimSpace(d.Compliance) != "" {
		return compliance.Parse(d.Compliance)
	}
	return compliance.Parse(f.Compliance)
}

// ArchiveConfig returns the file's archive section, else a localfs archive
// at ArchiveDir, else an in-memory archive.
func (d Daemon) ArchiveConfig(f File) archive.Config {
	if f.Archive != nil {
		return *f.Archive
	}
	if d.ArchiveDir != "" {
		return archive.Config{Backends: []archive.Backend{{Name: archive.LocalFS, Dir: d.ArchiveDir}}}
	}
	return archive.Config{Backends: []archive.Backend{{Name: archive.Memory}}}
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("config: %s: malformed address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
