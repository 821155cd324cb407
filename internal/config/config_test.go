package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coledb/coledb/internal/mvcc"
	"github.com/coledb/coledb/internal/store"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadDecodesTOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coledb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = "0.0.0.0:9999"
log_level = "debug"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Empty(t, cfg.NodeID)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/coledb.toml")
	require.Error(t, err)
}

func TestApplyFlagsOnlyOverlaysChangedFlags(t *testing.T) {
	cfg := Config{ListenAddr: "from-file:1", LogLevel: "from-file-level"}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen-addr", "default-addr", "")
	flags.String("storage-dir", "", "")
	flags.String("log-level", "default-level", "")
	flags.String("node-id", "", "")
	require.NoError(t, flags.Set("listen-addr", "from-flag:2"))

	cfg.ApplyFlags(flags)
	require.Equal(t, "from-flag:2", cfg.ListenAddr, "an explicitly-set flag must override the file value")
	require.Equal(t, "from-file-level", cfg.LogLevel, "an unset flag must not clobber the file value with its default")
}

func TestParsedLogLevelDefaultsToInfo(t *testing.T) {
	cfg := Config{}
	level, err := cfg.ParsedLogLevel()
	require.NoError(t, err)
	require.Equal(t, "info", level.String())
}

func TestParsedLogLevelRejectsInvalid(t *testing.T) {
	cfg := Config{LogLevel: "not-a-level"}
	_, err := cfg.ParsedLogLevel()
	require.Error(t, err)
}

func TestResolveNodeIDGeneratesAndPersistsOnce(t *testing.T) {
	engine := mvcc.New(store.NewBTreeStore())

	cfg := Config{}
	require.NoError(t, cfg.ResolveNodeID(engine))
	require.NotEmpty(t, cfg.NodeID)
	first := cfg.NodeID

	cfg2 := Config{}
	require.NoError(t, cfg2.ResolveNodeID(engine))
	require.Equal(t, first, cfg2.NodeID, "a second boot against the same store must reuse the persisted id")
}

func TestResolveNodeIDPrefersAlreadySetValue(t *testing.T) {
	engine := mvcc.New(store.NewBTreeStore())
	cfg := Config{NodeID: "explicit-id"}
	require.NoError(t, cfg.ResolveNodeID(engine))
	require.Equal(t, "explicit-id", cfg.NodeID)
}
