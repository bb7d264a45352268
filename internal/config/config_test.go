package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lottery-ledger/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, uint64(11_000_000), params.TicketPrice)
	assert.Equal(t, uint64(1_000_000), params.ProtocolFee)
	assert.Equal(t, uint64(1000), params.PoolSize)
	assert.Equal(t, uint8(10), params.MaxTicketsPerTx)
	assert.Equal(t, 24*time.Hour, params.RoundDuration)
	assert.Equal(t, "2q79WzkjgEqPoBAWeEP2ih51q6TYp8D9DYWWMeLHK6WP", params.AdminWallet.String())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "lottery.toml", `
listen = ":9000"
network = "devnet"

[lottery]
ticket_price = 500
protocol_fee = 50
pool_size = 20

[finalizer]
interval = "5s"

[backup]
enabled = true
bucket = "ledger-snapshots"
endpoint = "http://localhost:9000"
path_style = true
`)
	env := writeFile(t, ".env", "LOTTERY_POOL_SIZE=30\nLOTTERY_BACKUP_INTERVAL=10m\n")
	t.Setenv("LOTTERY_LISTEN", ":7000")

	t.Cleanup(func() {
		os.Unsetenv("LOTTERY_POOL_SIZE")
		os.Unsetenv("LOTTERY_BACKUP_INTERVAL")
	})

	cfg, err := Load(path, env)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen)
	assert.Equal(t, 2*time.Minute, cfg.RoundDuration())
	assert.Equal(t, uint64(500), cfg.Lottery.TicketPrice)
	assert.Equal(t, uint64(30), cfg.Lottery.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Finalizer.Interval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Backup.Interval.Duration)
	assert.True(t, cfg.Backup.PathStyle)
	assert.Equal(t, "ledger-snapshots", cfg.Backup.Bucket)
}

func TestExplicitRoundDurationWins(t *testing.T) {
	cfg := Default()
	cfg.Network = "localnet"
	assert.Equal(t, time.Minute, cfg.RoundDuration())
	cfg.Lottery.RoundDuration = Duration{90 * time.Second}
	assert.Equal(t, 90*time.Second, cfg.RoundDuration())
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		is     error
	}{
		{"unknown network", func(c *Config) { c.Network = "testnet" }, nil},
		{"bad program", func(c *Config) { c.ProgramID = "nope" }, nil},
		{"bad admin wallet", func(c *Config) { c.Lottery.AdminWallet = "" }, services.ErrInvalidAdminWallet},
		{"fee above price", func(c *Config) { c.Lottery.ProtocolFee = c.Lottery.TicketPrice }, nil},
		{"too many tickets per purchase", func(c *Config) { c.Lottery.MaxTicketsPerTx = 11 }, nil},
		{"backup without bucket", func(c *Config) { c.Backup.Enabled = true }, nil},
		{"finalizer without interval", func(c *Config) { c.Finalizer.Interval = Duration{} }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestBadEnvValues(t *testing.T) {
	t.Setenv("LOTTERY_TICKET_PRICE", "eleven")
	t.Setenv("LOTTERY_ROUND_DURATION", "forever")
	_, err := Load("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOTTERY_TICKET_PRICE")
	assert.Contains(t, err.Error(), "LOTTERY_ROUND_DURATION")
}
