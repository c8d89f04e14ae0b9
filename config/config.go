// Package config loads the NameNode and DataNode runtime configuration.
// It follows the teacher's viper-based pattern (SetDefault, AddConfigPath,
// AutomaticEnv) generalized to every field spec.md §6 names.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable named in spec.md §6 "Configuration". A
// single struct backs both the NameNode and DataNode processes; each
// binary only reads the fields relevant to it.
type Config struct {
	NameNodeHost   string `mapstructure:"namenode_host"`
	NameNodePort   int    `mapstructure:"namenode_port"`
	NameNodeAPIPort int   `mapstructure:"namenode_api_port"`

	DataNodeID      string `mapstructure:"datanode_id"`
	DataNodeHost    string `mapstructure:"datanode_host"`
	DataNodePort    int    `mapstructure:"datanode_port"`
	DataNodeAPIPort int    `mapstructure:"datanode_api_port"`
	StoragePath     string `mapstructure:"storage_path"`
	MetadataPath    string `mapstructure:"metadata_path"`

	ChunkSize          int64         `mapstructure:"chunk_size"`
	ReplicationFactor  int           `mapstructure:"replication_factor"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat_timeout"`
	APITimeout         time.Duration `mapstructure:"api_timeout"`
	ExistsCheckTimeout time.Duration `mapstructure:"exists_check_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	ReplicationWorkers int           `mapstructure:"replication_workers"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
}

// Default returns the spec.md §6 defaults.
func Default() *Config {
	return &Config{
		NameNodeHost:    "localhost",
		NameNodePort:    9870,
		NameNodeAPIPort: 8080,

		DataNodeID:      "",
		DataNodeHost:    "localhost",
		DataNodePort:    9866,
		DataNodeAPIPort: 8081,
		StoragePath:     "./data/chunks",
		MetadataPath:    "./data/metadata",

		ChunkSize:          64 * 1024 * 1024,
		ReplicationFactor:  3,
		HeartbeatInterval:  3 * time.Second,
		HeartbeatTimeout:   10 * time.Second,
		APITimeout:         30 * time.Second,
		ExistsCheckTimeout: 5 * time.Second,
		SweepInterval:      10 * time.Second,
		ReplicationWorkers: 4,
		ShutdownGrace:      10 * time.Second,
	}
}

// Load reads config.yaml from configPath (if present), overlays
// environment variables, and falls back to Default() for anything
// unset. A missing config file is not an error, as in the teacher's
// config.go; a config file that is present but cannot be read or
// parsed is returned as an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("namenode_host", def.NameNodeHost)
	v.SetDefault("namenode_port", def.NameNodePort)
	v.SetDefault("namenode_api_port", def.NameNodeAPIPort)
	v.SetDefault("datanode_id", def.DataNodeID)
	v.SetDefault("datanode_host", def.DataNodeHost)
	v.SetDefault("datanode_port", def.DataNodePort)
	v.SetDefault("datanode_api_port", def.DataNodeAPIPort)
	v.SetDefault("storage_path", def.StoragePath)
	v.SetDefault("metadata_path", def.MetadataPath)
	v.SetDefault("chunk_size", def.ChunkSize)
	v.SetDefault("replication_factor", def.ReplicationFactor)
	v.SetDefault("heartbeat_interval", def.HeartbeatInterval)
	v.SetDefault("heartbeat_timeout", def.HeartbeatTimeout)
	v.SetDefault("api_timeout", def.APITimeout)
	v.SetDefault("exists_check_timeout", def.ExistsCheckTimeout)
	v.SetDefault("sweep_interval", def.SweepInterval)
	v.SetDefault("replication_workers", def.ReplicationWorkers)
	v.SetDefault("shutdown_grace", def.ShutdownGrace)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
