package main

import (
	"os"
	"time"

	"go.dedis.ch/concord/cli"
	"go.dedis.ch/concord/core/pipeline"
	"go.dedis.ch/concord/core/result"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Config is the configuration of a local cluster. It can be loaded from a YAML
// file, and the flags of the command override it.
type Config struct {
	Miners          int           `yaml:"miners"`
	Ops             int           `yaml:"ops"`
	DataDir         string        `yaml:"datadir"`
	History         int           `yaml:"history"`
	MaxPayload      int           `yaml:"maxpayload"`
	RoundTimeout    time.Duration `yaml:"roundtimeout"`
	ProposalTimeout time.Duration `yaml:"proposaltimeout"`
	FinalizeTimeout time.Duration `yaml:"finalizetimeout"`
	Metrics         string        `yaml:"metrics"`
	Tracing         bool          `yaml:"tracing"`
}

// DefaultConfig returns the configuration used when neither a file nor flags
// are provided.
func DefaultConfig() Config {
	return Config{
		Miners:          3,
		Ops:             1,
		History:         result.DefaultHistory,
		RoundTimeout:    pipeline.DefaultRoundTimeout,
		ProposalTimeout: pipeline.DefaultProposalTimeout,
		FinalizeTimeout: pipeline.DefaultFinalizeTimeout,
	}
}

// LoadConfig reads the YAML file on top of the default configuration. Unknown
// keys are refused.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, xerrors.Errorf("failed to read config: %v", err)
	}

	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return cfg, xerrors.Errorf("failed to parse config: %v", err)
	}

	return cfg, nil
}

// Override sets the values of the flags explicitly set by the user.
func (cfg *Config) Override(flags cli.Flags) {
	if flags.IsSet("miners") {
		cfg.Miners = flags.Int("miners")
	}
	if flags.IsSet("ops") {
		cfg.Ops = flags.Int("ops")
	}
	if flags.IsSet("db") {
		cfg.DataDir = flags.String("db")
	}
	if flags.IsSet("metrics") {
		cfg.Metrics = flags.String("metrics")
	}
	if flags.IsSet("tracing") {
		cfg.Tracing = flags.Bool("tracing")
	}
	if flags.IsSet("timeout") {
		cfg.RoundTimeout = flags.Duration("timeout")
	}
}

// Validate returns an error if the configuration cannot run a cluster.
func (cfg Config) Validate() error {
	if cfg.Miners <= 0 {
		return xerrors.Errorf("invalid number of miners: %d", cfg.Miners)
	}

	if cfg.Ops < 0 {
		return xerrors.Errorf("invalid number of operations: %d", cfg.Ops)
	}

	if cfg.History < 0 {
		return xerrors.Errorf("invalid history: %d", cfg.History)
	}

	return nil
}
