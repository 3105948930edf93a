package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host string
		Port int64
	}

	Storage struct {
		Path string // credential store SQLite file
	}

	Chain struct {
		RpcURL        string
		Confirmations uint64
	}

	Swap struct {
		ProviderURL  string
		PollInterval int64 // seconds between order status polls
	}

	Datadog struct {
		Host string
		Port string
	}
}

func ReadConfig(configName string) (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("storage.path", "caveau.db")
	viper.SetDefault("chain.confirmations", 1)
	viper.SetDefault("swap.pollinterval", 15)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("fail to read config file, err: %w", err)
		}
		// defaults plus environment are enough to run locally
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("fail to unmarshal config, err: %w", err)
	}
	return &cfg, nil
}
