package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// LoadConfig loads configuration from file and environment.
// Environment variables use the MEDIAQ_ prefix, e.g. MEDIAQ_DOWNLOAD_MAX_CONCURRENT.
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediaq")
		v.AddConfigPath("/etc/mediaq")
	}

	v.SetEnvPrefix("MEDIAQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// configValues flattens a config into viper keys
func configValues(config *domain.Config) map[string]interface{} {
	return map[string]interface{}{
		"server.host":                  config.Server.Host,
		"server.port":                  config.Server.Port,
		"download.output_dir":          config.Download.OutputDir,
		"download.logs_dir":            config.Download.LogsDir,
		"download.max_concurrent":      config.Download.MaxConcurrent,
		"download.progress_interval":   config.Download.ProgressInterval.String(),
		"queue.database_path":          config.Queue.DatabasePath,
		"queue.persist_history":        config.Queue.PersistHistory,
		"resolver.timeout":             config.Resolver.Timeout.String(),
		"binaries.install_dir":         config.Binaries.InstallDir,
		"binaries.ytdlp_release_url":   config.Binaries.YTDLPReleaseURL,
		"binaries.ytdlp_checksum_url":  config.Binaries.YTDLPChecksumURL,
		"binaries.ffmpeg_release_url":  config.Binaries.FFmpegReleaseURL,
		"binaries.ffmpeg_checksum_url": config.Binaries.FFmpegChecksumURL,
		"binaries.download_timeout":    config.Binaries.DownloadTimeout.String(),
		"notification.enabled":         config.Notification.Enabled,
		"notification.sound":           config.Notification.Sound,
		"notification.method":          config.Notification.Method,
		"logging.level":                config.Logging.Level,
		"logging.format":               config.Logging.Format,
		"logging.output_path":          config.Logging.OutputPath,
	}
}

// bindDefaults registers every key so AutomaticEnv can override it during Unmarshal
func bindDefaults(v *viper.Viper, config *domain.Config) {
	for key, value := range configValues(config) {
		v.SetDefault(key, value)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Binaries.InstallDir = expandPath(config.Binaries.InstallDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.OutputDir == "" {
		return fmt.Errorf("download output directory not configured")
	}

	if config.Download.MaxConcurrent < 1 || config.Download.MaxConcurrent > domain.MaxConcurrentLimit {
		return fmt.Errorf("max concurrent must be between 1 and %d, got %d",
			domain.MaxConcurrentLimit, config.Download.MaxConcurrent)
	}

	if config.Download.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative")
	}

	if config.Queue.PersistHistory && config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	if config.Resolver.Timeout <= 0 {
		return fmt.Errorf("resolver timeout must be positive")
	}

	if config.Binaries.InstallDir == "" {
		return fmt.Errorf("binaries install directory not configured")
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range configValues(config) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
