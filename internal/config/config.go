package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds application-specific configuration.
type AppConfig struct {
	LabelKey          string `mapstructure:"label_key"`
	ConfigDir         string `mapstructure:"config_dir"`
	DefaultNetwork    string `mapstructure:"default_network"`
	DefaultRegistry   string `mapstructure:"default_registry"`
	DefaultRepository string `mapstructure:"default_repository"`
	HelperImage       string `mapstructure:"helper_image"`
	LocaltimePath     string `mapstructure:"localtime_path"`
	TopologyFile      string `mapstructure:"topology_file"`
}

// ClusterConfig holds the timings used while bringing nodes up.
type ClusterConfig struct {
	WaitTimeout  float64 `mapstructure:"wait_timeout"`
	WaitInterval float64 `mapstructure:"wait_interval"`
}

// HostsConfig selects how node names are published on the host.
type HostsConfig struct {
	Backend string `mapstructure:"backend"`
	File    string `mapstructure:"file"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// EtcdConfig holds etcd-related configuration.
type EtcdConfig struct {
	Endpoints   []string `mapstructure:"endpoints"`
	PathPrefix  string   `mapstructure:"path_prefix"`
	DialTimeout float64  `mapstructure:"dial_timeout"`
}

// Config is the top-level configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Cluster ClusterConfig `mapstructure:"cluster"`
	Hosts   HostsConfig   `mapstructure:"hosts"`
	Logging LoggingConfig `mapstructure:"log"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
}

const (
	HostsBackendFile = "hosts-file"
	HostsBackendEtcd = "etcd"
	HostsBackendNone = "none"
)

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clusterdock"
	}
	return filepath.Join(home, ".clusterdock")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.label_key", "clusterdock")
	v.SetDefault("app.config_dir", defaultConfigDir())
	v.SetDefault("app.default_network", "cluster")
	v.SetDefault("app.default_registry", "docker.io")
	v.SetDefault("app.default_repository", "docker.io/clusterdock")
	v.SetDefault("app.helper_image", "alpine:latest")
	v.SetDefault("app.localtime_path", "/etc/localtime")
	v.SetDefault("app.topology_file", "topology.yaml")
	v.SetDefault("cluster.wait_timeout", 30.0)
	v.SetDefault("cluster.wait_interval", 1.0)
	v.SetDefault("hosts.backend", HostsBackendFile)
	v.SetDefault("hosts.file", "/etc/hosts")
	v.SetDefault("log.log_level", "INFO")
	v.SetDefault("etcd.endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd.path_prefix", "/skydns")
	v.SetDefault("etcd.dial_timeout", 2.0)
}

// InitConfig performs the initial configuration: setting defaults, specifying the config file, and reading it.
func InitConfig(configFile string) error {
	SetDefaults(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath(defaultConfigDir())
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	viper.SetEnvPrefix("clusterdock")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings no action can work with.
func (c *Config) Validate() error {
	switch c.Hosts.Backend {
	case HostsBackendFile, HostsBackendEtcd, HostsBackendNone:
	default:
		return fmt.Errorf("unknown hosts backend %q", c.Hosts.Backend)
	}
	if c.App.LabelKey == "" {
		return fmt.Errorf("app.label_key must not be empty")
	}
	if c.Cluster.WaitTimeout <= 0 {
		return fmt.Errorf("cluster.wait_timeout must be positive")
	}
	if c.Cluster.WaitInterval <= 0 {
		return fmt.Errorf("cluster.wait_interval must be positive")
	}
	return nil
}
