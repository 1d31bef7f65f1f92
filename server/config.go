// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (c) 2017-2023 The Spacemesh developers

package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/poexist/poe/logging"
	"github.com/poexist/poe/registry"
	"github.com/poexist/poe/rpc"
)

const (
	defaultDbDirName      = "db"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultRPCPort        = 50002

	defaultCacheSize     = 4096
	defaultMemoryShards  = 64
	defaultBlockInterval = 6 * time.Second
	defaultEpochDuration = 30 * time.Second
	defaultPhaseShift    = 15 * time.Second
)

const (
	StoreMemory  = "memory"
	StoreLevelDB = "leveldb"

	ClockHeight  = "height"
	ClockEpoch   = "epoch"
	ClockCounter = "counter"
)

// Config defines the configuration options for the claim registry daemon.
//
// See poeMain for further details regarding the
// configuration loading+parsing process.
type Config struct {
	PoeDir         string  `long:"poedir"         description:"The base directory that contains poe's data, logs, configuration file, etc."`
	ConfigFile     string  `long:"configfile"     description:"Path to configuration file"                                                 short:"c"`
	DataDir        string  `long:"datadir"        description:"The directory to store poe's data within."                                  short:"b"`
	DbDir          string  `long:"dbdir"          description:"The directory to store DBs within"`
	LogDir         string  `long:"logdir"         description:"Directory to log output."`
	DebugLog       bool    `long:"debuglog"       description:"Enable debug logs"`
	JSONLog        bool    `long:"jsonlog"        description:"Whether to log in JSON format"`
	MaxLogFiles    int     `long:"maxlogfiles"    description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int     `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	RawRPCListener string  `long:"rpclisten"      description:"The interface/port/socket to listen for RPC connections"                    short:"r"`
	MetricsPort    *uint16 `long:"metrics-port"   description:"The port to expose metrics"`

	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	Profile    string `long:"profile"    description:"Enable HTTP profiling on given port -- must be between 1024 and 65535"`

	Registry registry.Config `group:"Registry"`
	Store    StoreConfig     `group:"Store"`
	Clock    *ClockConfig    `group:"Clock"`
	Auth     AuthConfig      `group:"Auth"`
}

type StoreConfig struct {
	Backend   string `long:"store"        description:"Claim storage backend"                             choice:"memory" choice:"leveldb"`
	CacheSize int    `long:"cache-size"   description:"Number of claims cached in memory by the leveldb backend (0 disables)"`
	Shards    int    `long:"store-shards" description:"Number of shards of the memory backend"`
	NoSync    bool   `long:"no-sync"      description:"Do not fsync every leveldb write"`
}

// implement zap.ObjectMarshaler interface.
func (c StoreConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("backend", c.Backend)
	enc.AddInt("cache-size", c.CacheSize)
	enc.AddInt("shards", c.Shards)
	enc.AddBool("no-sync", c.NoSync)
	return nil
}

// AuthConfig selects how callers are identified.
// A tokens file disables the identity header unless HeaderWithTokens is set.
type AuthConfig struct {
	IdentityHeader   string `long:"identity-header"             description:"Trust caller identities found in this gRPC metadata header (empty disables)"`
	TokensFile       string `long:"tokens-file"                 description:"File with 'identity token' lines accepted as bearer tokens"`
	HeaderWithTokens bool   `long:"identity-header-with-tokens" description:"Keep trusting the identity header when a tokens file is set"`
}

// implement zap.ObjectMarshaler interface.
func (c AuthConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("identity-header", c.IdentityHeader)
	enc.AddString("tokens-file", c.TokensFile)
	enc.AddBool("identity-header-with-tokens", c.HeaderWithTokens)
	return nil
}

type Genesis time.Time

// UnmarshalFlag implements flags.Unmarshaler.
func (g *Genesis) UnmarshalFlag(value string) error {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}
	*g = Genesis(t)
	return nil
}

func (g Genesis) Time() time.Time {
	return time.Time(g)
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	poeDir := "./poe"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		poeDir = filepath.Join(cacheDir, "poe")
	}

	return &Config{
		PoeDir:         poeDir,
		DataDir:        filepath.Join(poeDir, defaultDataDirname),
		DbDir:          filepath.Join(poeDir, defaultDbDirName),
		LogDir:         filepath.Join(poeDir, defaultLogDirname),
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		RawRPCListener: fmt.Sprintf("localhost:%d", defaultRPCPort),
		Registry:       registry.DefaultConfig(),
		Store: StoreConfig{
			Backend:   StoreLevelDB,
			CacheSize: defaultCacheSize,
			Shards:    defaultMemoryShards,
		},
		Clock: DefaultClockConfig(),
		Auth: AuthConfig{
			IdentityHeader: rpc.DefaultIdentityHeader,
		},
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// If the provided poe directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	defaultCfg := DefaultConfig()
	if cfg.PoeDir != defaultCfg.PoeDir {
		if cfg.DataDir == defaultCfg.DataDir {
			cfg.DataDir = filepath.Join(cfg.PoeDir, defaultDataDirname)
		}
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.PoeDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.PoeDir, defaultDbDirName)
		}
	}

	// Create the poe directory if it doesn't already exist.
	if err := os.MkdirAll(cfg.PoeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.PoeDir, err)
	}

	// As soon as we're done parsing configuration options, ensure all paths
	// to directories and files are cleaned and expanded before attempting
	// to use them later on.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.Auth.TokensFile = cleanAndExpandPath(cfg.Auth.TokensFile)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// ClockConfig selects the logical clock stamped on new claims.
//
//   - height advances once every BlockInterval, like a chain producing blocks,
//   - epoch is the id of the epoch open at the time of registration,
//   - counter ticks once per registration.
type ClockConfig struct {
	Kind          string        `long:"clock"          description:"Logical clock for registration times" choice:"height" choice:"epoch" choice:"counter"`
	BlockInterval time.Duration `long:"block-interval" description:"Interval between heights of the height clock"`
	Genesis       Genesis       `long:"genesis-time"   description:"Genesis timestamp in RFC3339 format of the epoch clock"`
	EpochDuration time.Duration `long:"epoch-duration" description:"Epoch duration"`
	PhaseShift    time.Duration `long:"phase-shift"    description:"Time between genesis and the start of the first epoch"`
}

func DefaultClockConfig() *ClockConfig {
	return &ClockConfig{
		Kind:          ClockHeight,
		BlockInterval: defaultBlockInterval,
		Genesis:       Genesis(time.Now()),
		EpochDuration: defaultEpochDuration,
		PhaseShift:    defaultPhaseShift,
	}
}

// Validate rejects settings the selected clock cannot run with.
func (c *ClockConfig) Validate() error {
	switch c.Kind {
	case ClockHeight:
		if c.BlockInterval <= 0 {
			return fmt.Errorf("block interval must be positive, got %v", c.BlockInterval)
		}
	case ClockEpoch:
		if c.EpochDuration <= 0 {
			return fmt.Errorf("epoch duration must be positive, got %v", c.EpochDuration)
		}
		if c.PhaseShift < 0 {
			return fmt.Errorf("phase shift must not be negative, got %v", c.PhaseShift)
		}
	case ClockCounter:
	default:
		return fmt.Errorf("unknown clock %q", c.Kind)
	}
	return nil
}

// implement zap.ObjectMarshaler interface.
func (c ClockConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", c.Kind)
	switch c.Kind {
	case ClockHeight:
		enc.AddDuration("block-interval", c.BlockInterval)
	case ClockEpoch:
		enc.AddTime("genesis", c.Genesis.Time())
		enc.AddDuration("epoch-duration", c.EpochDuration)
		enc.AddDuration("phase-shift", c.PhaseShift)
	}
	return nil
}
