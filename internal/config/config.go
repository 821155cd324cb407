// Package config loads coledb-server's TOML configuration file and
// resolves the node id the way spec §6 describes: a config-supplied
// value wins, otherwise a previously-persisted one is reused, and
// only on a true first boot is a fresh one minted and stored.
//
// Grounded on Pieczasz-smf's internal/parser/toml/parser.go (struct-
// tagged TOML document, decoded with `toml.NewDecoder(r).Decode`) for
// the decoding style, and cmd/smf/main.go's `cmd.Flags().StringVarP`
// flag wiring for how CLI overrides are expected to reach this struct.
package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/coledb/coledb/internal/dberrors"
	"github.com/coledb/coledb/internal/mvcc"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const metadataNodeID = "node_id"

// Config is coledb-server's TOML configuration document (spec §6).
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	// StorageDir is present for forward-compatibility with an
	// on-disk store; the in-memory store.BTreeStore ignores it.
	StorageDir string `toml:"storage_dir"`
	LogLevel   string `toml:"log_level"`
	NodeID     string `toml:"node_id"`
}

// Default returns the configuration used when no file and no flags
// override it.
func Default() Config {
	return Config{
		ListenAddr: "127.0.0.1:7878",
		LogLevel:   "info",
	}
}

// Load reads and decodes the TOML file at path, overlaying it on
// Default. An empty path returns Default unchanged (flags alone may
// still configure the server).
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, dberrors.New(dberrors.Config, "open config %q: %v", path, err)
	}
	defer f.Close()
	return cfg, decode(f, &cfg)
}

func decode(r io.Reader, cfg *Config) error {
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return dberrors.New(dberrors.Config, "decode config: %v", err)
	}
	return nil
}

// ApplyFlags overlays any flag the caller actually set (per
// pflag.FlagSet.Changed) onto cfg, so an unset flag's zero-value
// default never clobbers a value already loaded from file.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) {
	if flags.Changed("listen-addr") {
		if v, err := flags.GetString("listen-addr"); err == nil {
			c.ListenAddr = v
		}
	}
	if flags.Changed("storage-dir") {
		if v, err := flags.GetString("storage-dir"); err == nil {
			c.StorageDir = v
		}
	}
	if flags.Changed("log-level") {
		if v, err := flags.GetString("log-level"); err == nil {
			c.LogLevel = v
		}
	}
	if flags.Changed("node-id") {
		if v, err := flags.GetString("node-id"); err == nil {
			c.NodeID = v
		}
	}
}

// ParsedLogLevel converts LogLevel to a logrus.Level, defaulting to
// InfoLevel for an empty string.
func (c Config) ParsedLogLevel() (logrus.Level, error) {
	if c.LogLevel == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, dberrors.New(dberrors.Config, "invalid log_level %q: %v", c.LogLevel, err)
	}
	return level, nil
}

// ResolveNodeID fills in c.NodeID, in priority order: a value already
// set (from file or flag), then one previously persisted to engine's
// metadata, then a freshly minted uuid persisted for next time.
func (c *Config) ResolveNodeID(engine *mvcc.MVCC) error {
	if c.NodeID != "" {
		return nil
	}
	if stored, ok, err := engine.GetMetadata(metadataNodeID); err != nil {
		return err
	} else if ok {
		c.NodeID = string(stored)
		return nil
	}
	id := uuid.NewString()
	if err := engine.SetMetadata(metadataNodeID, []byte(id)); err != nil {
		return err
	}
	c.NodeID = id
	return nil
}
