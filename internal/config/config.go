// Package config loads stockroom settings with viper.
//
// Precedence, lowest to highest: defaults, the optional stockroom.yaml,
// STOCKROOM_* environment variables, explicitly set command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/stockroom/internal/importer"
	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/redisstream"
)

// Transport names.
const (
	TransportSQLite = "sqlite"
	TransportRedis  = "redis"
	TransportMemory = "memory"
)

// EnvPrefix is prepended to every environment variable, e.g. STOCKROOM_REDIS_ADDR.
const EnvPrefix = "STOCKROOM"

// Config is the full set of runtime settings.
type Config struct {
	Transport string       `mapstructure:"transport"`
	DB        string       `mapstructure:"db"`
	Redis     RedisConfig  `mapstructure:"redis"`
	Actor     string       `mapstructure:"actor"`
	Log       LogConfig    `mapstructure:"log"`
	Import    ImportConfig `mapstructure:"import"`
}

// RedisConfig selects the Redis Streams log.
type RedisConfig struct {
	Addr   string `mapstructure:"addr"`
	Stream string `mapstructure:"stream"`
}

// LogConfig configures internal/logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ImportConfig bounds bulk_import_items chunks.
type ImportConfig struct {
	ChunkSize int `mapstructure:"chunk_size"`
	MaxBytes  int `mapstructure:"max_bytes"`
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"transport":    "transport",
	"db":           "db",
	"redis-addr":   "redis.addr",
	"redis-stream": "redis.stream",
	"actor":        "actor",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"chunk-size":   "import.chunk_size",
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. When empty, stockroom.yaml is
	// looked up in Dirs and skipped if absent.
	File string
	Dirs []string

	// Flags, when set, are bound per FlagKeys.
	Flags *pflag.FlagSet
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", TransportSQLite)
	v.SetDefault("db", "stockroom.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.stream", redisstream.DefaultStream)
	v.SetDefault("actor", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("import.chunk_size", importer.DefaultChunkSize)
	v.SetDefault("import.max_bytes", importer.DefaultMaxBytes)
}

// Load reads the configuration and validates it.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, opts); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, opts Options) error {
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", opts.File, err)
		}
		return nil
	}

	v.SetConfigName("stockroom")
	v.SetConfigType("yaml")
	dirs := opts.Dirs
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSQLite:
		if c.DB == "" {
			return errors.New("config: db path is required for the sqlite transport")
		}
	case TransportRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis transport")
		}
	case TransportMemory:
	default:
		return fmt.Errorf("config: unknown transport %q (want sqlite, redis, or memory)", c.Transport)
	}

	if c.Import.ChunkSize < 1 || c.Import.ChunkSize > importer.DefaultChunkSize {
		return fmt.Errorf("config: import.chunk_size %d out of range 1..%d", c.Import.ChunkSize, importer.DefaultChunkSize)
	}
	if c.Import.MaxBytes < 1 || c.Import.MaxBytes > transport.MaxPayloadBytes {
		return fmt.Errorf("config: import.max_bytes %d out of range 1..%d", c.Import.MaxBytes, transport.MaxPayloadBytes)
	}
	return nil
}
