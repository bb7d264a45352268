// Package config loads the ledger configuration from a TOML file, an
// optional .env file and LOTTERY_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/services"

	"github.com/BurntSushi/toml"
	"github.com/google/logger"
	"github.com/joho/godotenv"
)

const envPrefix = "LOTTERY_"

// Round durations of the deployments the lottery runs on.
var networkDurations = map[string]time.Duration{
	"localnet": 60 * time.Second,
	"devnet":   120 * time.Second,
	"mainnet":  24 * time.Hour,
}

// Duration is a time.Duration read from strings such as "90s" or "24h".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

type Config struct {
	Listen    string   `toml:"listen"`
	DataPath  string   `toml:"data_path"`
	DBTimeout Duration `toml:"db_timeout"`
	AuthSkew  Duration `toml:"auth_skew"`
	ProgramID string   `toml:"program_id"`
	Network   string   `toml:"network"`
	Verbose   bool     `toml:"verbose"`

	Lottery   Lottery   `toml:"lottery"`
	Finalizer Finalizer `toml:"finalizer"`
	Backup    Backup    `toml:"backup"`
}

type Lottery struct {
	TicketPrice     uint64   `toml:"ticket_price"`
	ProtocolFee     uint64   `toml:"protocol_fee"`
	ActivationFee   uint64   `toml:"activation_fee"`
	PoolSize        uint64   `toml:"pool_size"`
	MaxTicketsPerTx uint8    `toml:"max_tickets_per_tx"`
	RoundDuration   Duration `toml:"round_duration"`
	AdminWallet     string   `toml:"admin_wallet"`
}

// Finalizer controls the background job closing expired rounds.
type Finalizer struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

// Backup controls periodic ledger snapshots to an S3 compatible bucket.
type Backup struct {
	Enabled         bool     `toml:"enabled"`
	Interval        Duration `toml:"interval"`
	Bucket          string   `toml:"bucket"`
	Prefix          string   `toml:"prefix"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	AccessKeyID     string   `toml:"access_key_id"`
	SecretAccessKey string   `toml:"secret_access_key"`
	PathStyle       bool     `toml:"path_style"`
}

// Default returns the mainnet configuration.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		DataPath:  "lottery.db",
		DBTimeout: Duration{time.Second},
		AuthSkew:  Duration{5 * time.Minute},
		ProgramID: "CpEVMvSsqTjx4Ajo4J7tbVSaqwR7nR5fwGFqMLAQ1ndr",
		Network:   "mainnet",
		Lottery: Lottery{
			TicketPrice:     11_000_000,
			ProtocolFee:     1_000_000,
			ActivationFee:   10_000_000,
			PoolSize:        1000,
			MaxTicketsPerTx: 10,
			AdminWallet:     "2q79WzkjgEqPoBAWeEP2ih51q6TYp8D9DYWWMeLHK6WP",
		},
		Finalizer: Finalizer{Enabled: true, Interval: Duration{2 * time.Second}},
		Backup: Backup{
			Interval: Duration{time.Hour},
			Prefix:   "snapshots/",
			Region:   "auto",
		},
	}
}

// Load reads path (skipped when empty), then envFile (skipped when it does
// not exist), then the process environment.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			logger.Warningf("Unknown config key %q in %s", key.String(), path)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read env file %s: %w", envFile, err)
			}
			logger.Infof("No %s file found, reading environment variables directly", envFile)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	u64 := func(name string, dst *uint64) {
		if v, ok := lookup(envPrefix + name); ok {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *Duration) {
		if v, ok := lookup(envPrefix + name); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			}
		}
	}

	str("LISTEN", &c.Listen)
	str("DATA_PATH", &c.DataPath)
	dur("DB_TIMEOUT", &c.DBTimeout)
	dur("AUTH_SKEW", &c.AuthSkew)
	str("PROGRAM_ID", &c.ProgramID)
	str("NETWORK", &c.Network)
	boolean("VERBOSE", &c.Verbose)

	u64("TICKET_PRICE", &c.Lottery.TicketPrice)
	u64("PROTOCOL_FEE", &c.Lottery.ProtocolFee)
	u64("ACTIVATION_FEE", &c.Lottery.ActivationFee)
	u64("POOL_SIZE", &c.Lottery.PoolSize)
	if v, ok := lookup(envPrefix + "MAX_TICKETS_PER_TX"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_TICKETS_PER_TX: %w", envPrefix, err))
		} else {
			c.Lottery.MaxTicketsPerTx = uint8(n)
		}
	}
	dur("ROUND_DURATION", &c.Lottery.RoundDuration)
	str("ADMIN_WALLET", &c.Lottery.AdminWallet)

	boolean("FINALIZER_ENABLED", &c.Finalizer.Enabled)
	dur("FINALIZER_INTERVAL", &c.Finalizer.Interval)

	boolean("BACKUP_ENABLED", &c.Backup.Enabled)
	dur("BACKUP_INTERVAL", &c.Backup.Interval)
	str("BACKUP_BUCKET", &c.Backup.Bucket)
	str("BACKUP_PREFIX", &c.Backup.Prefix)
	str("BACKUP_ENDPOINT", &c.Backup.Endpoint)
	str("BACKUP_REGION", &c.Backup.Region)
	str("BACKUP_ACCESS_KEY_ID", &c.Backup.AccessKeyID)
	str("BACKUP_SECRET_ACCESS_KEY", &c.Backup.SecretAccessKey)
	boolean("BACKUP_PATH_STYLE", &c.Backup.PathStyle)

	return errors.Join(errs...)
}

// RoundDuration is the configured duration, or the preset of the network
// when none is set.
func (c *Config) RoundDuration() time.Duration {
	if c.Lottery.RoundDuration.Duration > 0 {
		return c.Lottery.RoundDuration.Duration
	}
	return networkDurations[strings.ToLower(c.Network)]
}

// Program parses the program id.
func (c *Config) Program() (address.Address, error) {
	a, err := address.Parse(c.ProgramID)
	if err != nil {
		return address.Zero, fmt.Errorf("program_id: %w", err)
	}
	return a, nil
}

// Params converts the lottery section to service parameters.
func (c *Config) Params() (services.Params, error) {
	admin, err := address.Parse(c.Lottery.AdminWallet)
	if err != nil {
		return services.Params{}, fmt.Errorf("lottery.admin_wallet: %w", services.ErrInvalidAdminWallet)
	}
	return services.Params{
		TicketPrice:     c.Lottery.TicketPrice,
		ProtocolFee:     c.Lottery.ProtocolFee,
		ActivationFee:   c.Lottery.ActivationFee,
		PoolSize:        c.Lottery.PoolSize,
		MaxTicketsPerTx: c.Lottery.MaxTicketsPerTx,
		RoundDuration:   c.RoundDuration(),
		AdminWallet:     admin,
	}, nil
}

// Validate checks the configuration is complete enough to serve.
func (c *Config) Validate() error {
	if _, ok := networkDurations[strings.ToLower(c.Network)]; !ok {
		return fmt.Errorf("network %q is not one of localnet, devnet, mainnet", c.Network)
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	params, err := c.Params()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("lottery: %w", err)
	}
	if c.DataPath == "" {
		return errors.New("data_path must be set")
	}
	if c.Finalizer.Enabled && c.Finalizer.Interval.Duration <= 0 {
		return errors.New("finalizer.interval must be positive")
	}
	if c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return errors.New("backup.bucket must be set when backups are enabled")
		}
		if c.Backup.Interval.Duration <= 0 {
			return errors.New("backup.interval must be positive")
		}
	}
	return nil
}
