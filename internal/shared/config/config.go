package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"hellod/internal/shared/types"
)

// LoadIni 加载 hellod.ini。文件不存在时返回默认配置。
func LoadIni(fileName string) (*types.Config, error) {
	cfg := types.Default()

	if _, err := os.Stat(fileName); err == nil {
		iniFile, err := ini.Load(fileName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := iniFile.MapTo(cfg); err != nil {
			return nil, fmt.Errorf("failed to map config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	overrideFromEnvInt(&cfg.ServerConf.Port, "HELLOD_PORT")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *types.Config) error {
	if cfg.ServerConf.Port < 0 || cfg.ServerConf.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.ServerConf.Port)
	}
	if cfg.ServerConf.Backlog <= 0 {
		return fmt.Errorf("backlog must be positive, got %d", cfg.ServerConf.Backlog)
	}
	if cfg.ServerConf.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive, got %d", cfg.ServerConf.BufferSize)
	}
	if cfg.ServerConf.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative, got %d", cfg.ServerConf.MaxConnections)
	}
	if cfg.WebConf.Port < 0 || cfg.WebConf.Port > 65535 {
		return fmt.Errorf("invalid web port %d", cfg.WebConf.Port)
	}
	return nil
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
