package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Server   ServerConfig   `mapstructure:"server"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	PublicIP PublicIPConfig `mapstructure:"public_ip"`
}

type AgentConfig struct {
	Name string `mapstructure:"name"`
}

type KafkaConfig struct {
	Brokers []string    `mapstructure:"brokers"`
	Topics  KafkaTopics `mapstructure:"topics"`
}

type KafkaTopics struct {
	Runs    string `mapstructure:"runs"`
	Results string `mapstructure:"results"`
	Logs    string `mapstructure:"logs"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type ProbeConfig struct {
	TimeoutMs int    `mapstructure:"timeout_ms"`
	DelayMs   int    `mapstructure:"delay_ms"`
	GraceMs   int    `mapstructure:"grace_ms"`
	SourceIP  string `mapstructure:"source_ip"`
}

type PublicIPConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

func Load() (*Config, error) {

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("local")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("env", "local")
	viper.SetDefault("agent.name", "conncheck-agent-01")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topics.runs", "run-requests")
	viper.SetDefault("kafka.topics.results", "run-results")
	viper.SetDefault("kafka.topics.logs", "agent-logs")

	viper.SetDefault("server.port", "8081")

	viper.SetDefault("probe.timeout_ms", 2000)
	viper.SetDefault("probe.delay_ms", 100)
	viper.SetDefault("probe.grace_ms", 100)
	viper.SetDefault("probe.source_ip", "")

	viper.SetDefault("public_ip.url", "https://api.ipify.org")
	viper.SetDefault("public_ip.timeout_ms", 5000)
}

func (c *Config) GetProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutMs) * time.Millisecond
}

func (c *Config) GetDelay() time.Duration {
	return time.Duration(c.Probe.DelayMs) * time.Millisecond
}

func (c *Config) GetGrace() time.Duration {
	return time.Duration(c.Probe.GraceMs) * time.Millisecond
}

func (c *Config) GetPublicIPTimeout() time.Duration {
	return time.Duration(c.PublicIP.TimeoutMs) * time.Millisecond
}
