// Package config holds server settings. Flags are registered here so the
// command and the tests agree on names and defaults; values may also come
// from NAMEGUESS_* environment variables or a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const EnvPrefix = "NAMEGUESS"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Bind           string
	Port           int
	Store          string
	DatabaseURL    string
	RoomCapacity   int
	MaxNameLength  int
	CommandTimeout time.Duration
	InboxSize      int
	OutboxSize     int
	PublicURL      string
	OriginPatterns []string
	Verbose        bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("--database-url is required with --store=postgres")
		}
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, StoreMemory, StorePostgres)
	}
	if c.RoomCapacity < 2 {
		return fmt.Errorf("room capacity must be at least 2: %d", c.RoomCapacity)
	}
	if c.MaxNameLength < 1 {
		return fmt.Errorf("max name length must be positive: %d", c.MaxNameLength)
	}
	if c.CommandTimeout <= 0 {
		return errors.New("command timeout must be positive")
	}
	if c.InboxSize < 1 || c.OutboxSize < 1 {
		return errors.New("inbox and outbox sizes must be positive")
	}
	return nil
}

func (c *Config) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

// RegisterFlags adds every setting to fs with its default.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&c.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: NAMEGUESS_BIND)")
	fs.IntVarP(&c.Port, "port", "p", 8080, "port to listen on (env: NAMEGUESS_PORT)")
	fs.StringVar(&c.Store, "store", StoreMemory, "room store: memory or postgres (env: NAMEGUESS_STORE)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "postgres connection string (env: NAMEGUESS_DATABASE_URL)")
	fs.IntVar(&c.RoomCapacity, "room-capacity", 10, "maximum players per room (env: NAMEGUESS_ROOM_CAPACITY)")
	fs.IntVar(&c.MaxNameLength, "max-name-length", 100, "maximum length of player, room and secret names (env: NAMEGUESS_MAX_NAME_LENGTH)")
	fs.DurationVar(&c.CommandTimeout, "command-timeout", 5*time.Second, "time a command may wait for its room (env: NAMEGUESS_COMMAND_TIMEOUT)")
	fs.IntVar(&c.InboxSize, "inbox-size", 64, "queued commands per room (env: NAMEGUESS_INBOX_SIZE)")
	fs.IntVar(&c.OutboxSize, "outbox-size", 32, "queued messages per connection before it is dropped (env: NAMEGUESS_OUTBOX_SIZE)")
	fs.StringVar(&c.PublicURL, "public-url", "", "base URL encoded in room QR codes (env: NAMEGUESS_PUBLIC_URL)")
	fs.StringSliceVar(&c.OriginPatterns, "origin", nil, "extra websocket origins to accept (env: NAMEGUESS_ORIGIN)")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "display additional output (env: NAMEGUESS_VERBOSE)")
}

// BindEnv loads envFile if present and fills every flag the user did not
// set from the environment.
func BindEnv(flags *pflag.FlagSet, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs error
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			if err := flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err))
			}
		}
	})
	return errs
}
