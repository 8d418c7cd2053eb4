package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/concord/core/pipeline"
	"go.dedis.ch/concord/core/result"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 3, cfg.Miners)
	require.Equal(t, 1, cfg.Ops)
	require.Equal(t, result.DefaultHistory, cfg.History)
	require.Equal(t, pipeline.DefaultRoundTimeout, cfg.RoundTimeout)
	require.Equal(t, pipeline.DefaultFinalizeTimeout, cfg.FinalizeTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
miners: 5
ops: 2
datadir: /tmp/concord
roundtimeout: 250ms
tracing: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Miners)
	require.Equal(t, 2, cfg.Ops)
	require.Equal(t, "/tmp/concord", cfg.DataDir)
	require.Equal(t, 250*time.Millisecond, cfg.RoundTimeout)
	require.True(t, cfg.Tracing)

	// Missing keys keep the default values.
	require.Equal(t, pipeline.DefaultProposalTimeout, cfg.ProposalTimeout)
	require.Equal(t, result.DefaultHistory, cfg.History)
}

func TestLoadConfig_Failures(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Regexp(t, "^failed to read config: ", err.Error())

	path := writeConfig(t, "unknown: 1\n")

	_, err = LoadConfig(path)
	require.Error(t, err)
	require.Regexp(t, "^failed to parse config: ", err.Error())

	path = writeConfig(t, "roundtimeout: abc\n")

	_, err = LoadConfig(path)
	require.Error(t, err)
	require.Regexp(t, "^failed to parse config: ", err.Error())
}

func TestConfig_Override(t *testing.T) {
	cfg := DefaultConfig()

	cfg.Override(fakeFlags{
		"miners":  7,
		"db":      "/data",
		"tracing": true,
		"timeout": time.Second,
	})

	require.Equal(t, 7, cfg.Miners)
	require.Equal(t, 1, cfg.Ops)
	require.Equal(t, "/data", cfg.DataDir)
	require.Equal(t, "", cfg.Metrics)
	require.True(t, cfg.Tracing)
	require.Equal(t, time.Second, cfg.RoundTimeout)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Miners = 0
	require.EqualError(t, cfg.Validate(), "invalid number of miners: 0")

	cfg = DefaultConfig()
	cfg.Ops = -1
	require.EqualError(t, cfg.Validate(), "invalid number of operations: -1")

	cfg = DefaultConfig()
	cfg.History = -2
	require.EqualError(t, cfg.Validate(), "invalid history: -2")
}

// -----------------------------------------------------------------------------
// Utility functions

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := os.WriteFile(path, []byte(content), 0600)
	require.NoError(t, err)

	return path
}

// fakeFlags only knows the flags set by the test.
type fakeFlags map[string]interface{}

func (f fakeFlags) String(name string) string {
	v, _ := f[name].(string)
	return v
}

func (f fakeFlags) Duration(name string) time.Duration {
	v, _ := f[name].(time.Duration)
	return v
}

func (f fakeFlags) Int(name string) int {
	v, _ := f[name].(int)
	return v
}

func (f fakeFlags) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

func (f fakeFlags) IsSet(name string) bool {
	_, found := f[name]
	return found
}
