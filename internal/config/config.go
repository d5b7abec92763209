package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file values.
// Nested keys are separated by a double underscore, for example
// GRIDSYNAPSE_OPTIMIZER__CARBON_WEIGHT=0.5.
const EnvPrefix = "GRIDSYNAPSE_"

// Store backends
const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
	BackendRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig       `koanf:"server"`
	Log         LogConfig          `koanf:"log"`
	Optimizer   OptimizerConfig    `koanf:"optimizer"`
	Scheduler   SchedulerConfig    `koanf:"scheduler"`
	Store       StoreConfig        `koanf:"store"`
	Datacenters []DatacenterConfig `koanf:"datacenters"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	BasePath     string        `koanf:"base_path"` // Optional base path for reverse proxy (e.g., "/gridsynapse")
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `koanf:"level"`
}

// OptimizerConfig tunes every solve, scheduled or one-shot
type OptimizerConfig struct {
	Solver          string        `koanf:"solver"`
	HorizonHours    int           `koanf:"horizon_hours"`
	CarbonWeight    float64       `koanf:"carbon_weight"`
	CarbonThreshold float64       `koanf:"carbon_threshold"`
	Deadline        time.Duration `koanf:"deadline"`
	MaxNodes        int           `koanf:"max_nodes"`
	MaxHorizonHours int           `koanf:"max_horizon_hours"`
	MaxVariables    int           `koanf:"max_variables"`
}

// SchedulerConfig represents the continuous optimization loop configuration
type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BatchSize    int           `koanf:"batch_size"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Retention    time.Duration `koanf:"retention"`
	Backoff      BackoffConfig `koanf:"backoff"`
}

// BackoffConfig represents the delay applied after a failed batch
type BackoffConfig struct {
	Initial    time.Duration `koanf:"initial"`
	Max        time.Duration `koanf:"max"`
	Multiplier float64       `koanf:"multiplier"`
}

// StoreConfig selects where queued jobs and schedules live
type StoreConfig struct {
	Backend string        `koanf:"backend"`
	JobTTL  time.Duration `koanf:"job_ttl"`
	Etcd    EtcdConfig    `koanf:"etcd"`
	Redis   RedisConfig   `koanf:"redis"`
}

// EtcdConfig represents etcd client configuration
type EtcdConfig struct {
	Endpoints   []string      `koanf:"endpoints"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	Prefix      string        `koanf:"prefix"`
	TLS         *TLSConfig    `koanf:"tls"`
}

// RedisConfig represents redis client configuration
type RedisConfig struct {
	Addr     string     `koanf:"addr"`
	Username string     `koanf:"username"`
	Password string     `koanf:"password"`
	DB       int        `koanf:"db"`
	TLS      *TLSConfig `koanf:"tls"`
}

// DatacenterConfig describes a placement target and its hourly profiles
type DatacenterConfig struct {
	ID              string       `koanf:"id"`
	Location        string       `koanf:"location"`
	CapacityUnits   int          `koanf:"capacity_units"`
	Prices          []float64    `koanf:"prices"`
	CarbonIntensity []float64    `koanf:"carbon_intensity"`
	Nomad           *NomadConfig `koanf:"nomad"` // Optional, derives capacity from ready nodes
}

// NomadConfig represents a Nomad cluster that backs a datacenter
type NomadConfig struct {
	Address      string     `koanf:"address"`
	Region       string     `koanf:"region"`
	Datacenter   string     `koanf:"datacenter"` // Nomad datacenter name, defaults to the datacenter id
	UnitsPerNode int        `koanf:"units_per_node"`
	TLS          *TLSConfig `koanf:"tls"`
}

// TLSConfig represents TLS configuration for etcd, redis and Nomad clients
type TLSConfig struct {
	CA   string `koanf:"ca"`
	Cert string `koanf:"cert"`
	Key  string `koanf:"key"`
}

// Load loads configuration from the specified file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML config
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps GRIDSYNAPSE_STORE__REDIS__ADDR to store.redis.addr
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Optimizer.HorizonHours == 0 {
		c.Optimizer.HorizonHours = 24
	}
	if c.Optimizer.CarbonThreshold == 0 {
		c.Optimizer.CarbonThreshold = 100
	}
	if c.Optimizer.Deadline == 0 {
		c.Optimizer.Deadline = 30 * time.Second
	}
	if c.Optimizer.MaxHorizonHours == 0 {
		c.Optimizer.MaxHorizonHours = 720
	}
	if c.Optimizer.MaxVariables == 0 {
		c.Optimizer.MaxVariables = 100_000
	}

	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 10
	}
	if c.Scheduler.PollInterval == 0 {
		c.Scheduler.PollInterval = 5 * time.Second
	}
	if c.Scheduler.Retention == 0 {
		c.Scheduler.Retention = 24 * time.Hour
	}
	if c.Scheduler.Backoff.Initial == 0 {
		c.Scheduler.Backoff.Initial = 10 * time.Second
	}
	if c.Scheduler.Backoff.Max == 0 {
		c.Scheduler.Backoff.Max = 5 * time.Minute
	}
	if c.Scheduler.Backoff.Multiplier == 0 {
		c.Scheduler.Backoff.Multiplier = 2
	}

	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.JobTTL == 0 {
		c.Store.JobTTL = 24 * time.Hour
	}
	if c.Store.Etcd.DialTimeout == 0 {
		c.Store.Etcd.DialTimeout = 5 * time.Second
	}
	if c.Store.Etcd.Prefix == "" {
		c.Store.Etcd.Prefix = "gridsynapse"
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
}

// Validate validates the configuration and reports every problem found
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Server.Addr == "" {
		result = multierror.Append(result, fmt.Errorf("server.addr is required"))
	}

	if c.Optimizer.HorizonHours <= 0 {
		result = multierror.Append(result, fmt.Errorf("optimizer.horizon_hours must be positive"))
	}
	if c.Optimizer.CarbonThreshold <= 0 {
		result = multierror.Append(result, fmt.Errorf("optimizer.carbon_threshold must be positive"))
	}
	if c.Optimizer.MaxNodes < 0 {
		result = multierror.Append(result, fmt.Errorf("optimizer.max_nodes must not be negative"))
	}
	if c.Optimizer.HorizonHours > c.Optimizer.MaxHorizonHours {
		result = multierror.Append(result, fmt.Errorf("optimizer.horizon_hours must not exceed optimizer.max_horizon_hours (%d)", c.Optimizer.MaxHorizonHours))
	}
	if c.Optimizer.MaxVariables < 0 {
		result = multierror.Append(result, fmt.Errorf("optimizer.max_variables must not be negative"))
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.BatchSize <= 0 {
			result = multierror.Append(result, fmt.Errorf("scheduler.batch_size must be positive when scheduler is enabled"))
		}
		if c.Scheduler.PollInterval <= 0 {
			result = multierror.Append(result, fmt.Errorf("scheduler.poll_interval must be positive when scheduler is enabled"))
		}
		if c.Scheduler.Backoff.Initial <= 0 {
			result = multierror.Append(result, fmt.Errorf("scheduler.backoff.initial must be positive when scheduler is enabled"))
		}
	}

	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendEtcd:
		if len(c.Store.Etcd.Endpoints) == 0 {
			result = multierror.Append(result, fmt.Errorf("store.etcd.endpoints is required for the etcd backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("store.backend %q is not supported", c.Store.Backend))
	}

	if len(c.Datacenters) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one datacenter must be configured"))
	}

	seen := make(map[string]bool, len(c.Datacenters))
	for i, dc := range c.Datacenters {
		if dc.ID == "" {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].id is required", i))
		} else if seen[dc.ID] {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].id %q is duplicated", i, dc.ID))
		}
		seen[dc.ID] = true

		if len(dc.Prices) == 0 {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].prices must not be empty", i))
		}
		if len(dc.CarbonIntensity) == 0 {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].carbon_intensity must not be empty", i))
		}

		if dc.Nomad == nil {
			if dc.CapacityUnits <= 0 {
				result = multierror.Append(result, fmt.Errorf("datacenters[%d].capacity_units must be positive without a nomad block", i))
			}
			continue
		}
		if dc.Nomad.Address == "" {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].nomad.address is required", i))
		}
		if dc.Nomad.UnitsPerNode <= 0 {
			result = multierror.Append(result, fmt.Errorf("datacenters[%d].nomad.units_per_node must be positive", i))
		}
	}

	return result.ErrorOrNil()
}
