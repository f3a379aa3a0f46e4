package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Likes   LikesConfig   `yaml:"likes"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// APIPort > 0 serves the posts API from the same process.
	APIPort int `yaml:"api_port"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type StorageConfig struct {
	Driver          string   `yaml:"driver"` // sqlite, memcache, memory
	Path            string   `yaml:"path"`
	MemcacheServers []string `yaml:"memcache_servers"`
}

type LikesConfig struct {
	PurgeOnDelete bool   `yaml:"purge_on_delete"`
	PruneSchedule string `yaml:"prune_schedule"`
}

type RenderConfig struct {
	Emoji bool `yaml:"emoji"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 9001,
		},
		API: APIConfig{
			Timeout: "10s",
		},
		Storage: StorageConfig{
			Driver: StorageSQLite,
			Path:   filepath.Join("data", "masterblog.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads .env (if any), then the YAML file at path, then the
// environment overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		data, err := ioutil.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrapf(err, "can't read config %s", path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "can't parse config %s", path)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("MASTERBLOG_API_BASE_URL"); url != "" {
		c.API.BaseURL = url
	}
	if path := os.Getenv("MASTERBLOG_DB"); path != "" {
		c.Storage.Driver = StorageSQLite
		c.Storage.Path = path
	}
	if servers := os.Getenv("MASTERBLOG_MEMCACHE"); servers != "" {
		c.Storage.Driver = StorageMemcache
		c.Storage.MemcacheServers = strings.Split(servers, ",")
	}
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
		c.Server.Port = port
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return errors.Wrapf(err, "invalid api timeout %q", c.API.Timeout)
	}
	switch c.Storage.Driver {
	case StorageSQLite:
		if c.Storage.Path == "" {
			return errors.New("sqlite storage needs a path")
		}
	case StorageMemcache:
		if len(c.Storage.MemcacheServers) == 0 {
			return errors.New("memcache storage needs at least one server")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Likes.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Likes.PruneSchedule); err != nil {
			return errors.Wrapf(err, "invalid prune schedule %q", c.Likes.PruneSchedule)
		}
	}
	return nil
}

func (c *Config) APITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
