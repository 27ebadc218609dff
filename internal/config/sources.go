package config

import (
	"fmt"
	"log/slog"

	"github.com/LJTian/RiverReport/internal/collector"
	"github.com/spf13/viper"
)

type sourcesFile struct {
	Sources []collector.Source `mapstructure:"sources"`
}

// LoadSources 读取 YAML 站点表；path 为空时使用内置表。结果在返回前做一次校验。
func LoadSources(path string) ([]collector.Source, error) {
	if path == "" {
		sources := collector.DefaultSources()
		return sources, collector.ValidateSources(sources)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading sources file: %w", err)
	}

	var f sourcesFile
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("error unmarshaling sources file: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s: no sources defined", path)
	}
	if err := collector.ValidateSources(f.Sources); err != nil {
		return nil, fmt.Errorf("sources file %s: %w", path, err)
	}

	slog.Info("sources loaded", "file", path, "count", len(f.Sources))
	return f.Sources, nil
}
