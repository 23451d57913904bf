package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type SlateSqlConfig struct {
	AppName string `mapstructure:"app_name"`

	Engine struct {
		PlanCacheSize int `mapstructure:"plan_cache_size"`
	} `mapstructure:"engine"`

	Storage struct {
		// Mode selects the backend; only "memory" ships in-tree.
		Mode string `mapstructure:"mode"`
		// Capabilities lists the optional contracts to enable on the
		// memory backend: alter-table, index, transaction, metadata.
		// Empty means all.
		Capabilities []string `mapstructure:"capabilities"`
	} `mapstructure:"storage"`

	Log struct {
		Level string `mapstructure:"level"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"log"`
}

func LoadConfig(path string) (*SlateSqlConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg SlateSqlConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
