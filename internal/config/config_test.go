package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
optimizer:
  carbon_weight: 0.4
datacenters:
  - id: us-west-2a
    location: Oregon
    capacity_units: 300
    prices: [0.12, 0.15]
    carbon_intensity: [50, 60]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 24, cfg.Optimizer.HorizonHours)
	assert.Equal(t, 0.4, cfg.Optimizer.CarbonWeight)
	assert.Equal(t, 100.0, cfg.Optimizer.CarbonThreshold)
	assert.Equal(t, 720, cfg.Optimizer.MaxHorizonHours)
	assert.Equal(t, 100_000, cfg.Optimizer.MaxVariables)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.Retention)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Backoff.Initial)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Backoff.Max)
	assert.Equal(t, 2.0, cfg.Scheduler.Backoff.Multiplier)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Store.JobTTL)

	require.Len(t, cfg.Datacenters, 1)
	assert.Equal(t, []float64{50, 60}, cfg.Datacenters[0].CarbonIntensity)
	assert.Nil(t, cfg.Datacenters[0].Nomad)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("GRIDSYNAPSE_OPTIMIZER__CARBON_WEIGHT", "0.9")
	t.Setenv("GRIDSYNAPSE_STORE__BACKEND", "redis")
	t.Setenv("GRIDSYNAPSE_STORE__REDIS__ADDR", "redis:6380")
	t.Setenv("GRIDSYNAPSE_SCHEDULER__POLL_INTERVAL", "1s")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 0.9, cfg.Optimizer.CarbonWeight)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis:6380", cfg.Store.Redis.Addr)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "store.redis.addr", envKey("GRIDSYNAPSE_STORE__REDIS__ADDR"))
	assert.Equal(t, "optimizer.horizon_hours", envKey("GRIDSYNAPSE_OPTIMIZER__HORIZON_HOURS"))
}

func validConfig() *Config {
	cfg := &Config{
		Datacenters: []DatacenterConfig{
			{ID: "dc", CapacityUnits: 10, Prices: []float64{0.1}, CarbonIntensity: []float64{50}},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "postgres" },
			wantErr: []string{`store.backend "postgres" is not supported`},
		},
		{
			name:    "etcd without endpoints",
			mutate:  func(c *Config) { c.Store.Backend = BackendEtcd },
			wantErr: []string{"store.etcd.endpoints is required"},
		},
		{
			name: "datacenter problems are all reported",
			mutate: func(c *Config) {
				c.Datacenters = append(c.Datacenters, DatacenterConfig{ID: "dc"})
			},
			wantErr: []string{
				`datacenters[1].id "dc" is duplicated`,
				"datacenters[1].prices must not be empty",
				"datacenters[1].carbon_intensity must not be empty",
				"datacenters[1].capacity_units must be positive",
			},
		},
		{
			name: "nomad block replaces static capacity",
			mutate: func(c *Config) {
				c.Datacenters[0].CapacityUnits = 0
				c.Datacenters[0].Nomad = &NomadConfig{Address: "http://nomad:4646", UnitsPerNode: 8}
			},
		},
		{
			name: "nomad block needs units per node",
			mutate: func(c *Config) {
				c.Datacenters[0].Nomad = &NomadConfig{Address: "http://nomad:4646"}
			},
			wantErr: []string{"datacenters[0].nomad.units_per_node must be positive"},
		},
		{
			name: "scheduler settings checked only when enabled",
			mutate: func(c *Config) {
				c.Scheduler.Enabled = true
				c.Scheduler.BatchSize = -1
			},
			wantErr: []string{"scheduler.batch_size must be positive"},
		},
		{
			name:    "horizon beyond its cap",
			mutate:  func(c *Config) { c.Optimizer.HorizonHours = 1000 },
			wantErr: []string{"optimizer.horizon_hours must not exceed optimizer.max_horizon_hours (720)"},
		},
		{
			name:    "no datacenters",
			mutate:  func(c *Config) { c.Datacenters = nil },
			wantErr: []string{"at least one datacenter must be configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	require.Len(t, cfg.Datacenters, 3)
	require.NotNil(t, cfg.Datacenters[2].Nomad)
	assert.Equal(t, 8, cfg.Datacenters[2].Nomad.UnitsPerNode)
	assert.Len(t, cfg.Datacenters[0].Prices, 24)
}
