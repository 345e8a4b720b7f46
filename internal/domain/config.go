package domain

import "time"

// MaxConcurrentLimit caps how many downloads may run at once
const MaxConcurrentLimit = 32

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Resolver     ResolverConfig     `mapstructure:"resolver"`
	Binaries     BinariesConfig     `mapstructure:"binaries"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	OutputDir        string        `mapstructure:"output_dir"`
	LogsDir          string        `mapstructure:"logs_dir"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath   string `mapstructure:"database_path"`
	PersistHistory bool   `mapstructure:"persist_history"`
}

// ResolverConfig contains metadata probe configuration
type ResolverConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// BinariesConfig contains managed tool install configuration
type BinariesConfig struct {
	InstallDir        string        `mapstructure:"install_dir"`
	YTDLPReleaseURL   string        `mapstructure:"ytdlp_release_url"`
	YTDLPChecksumURL  string        `mapstructure:"ytdlp_checksum_url"`
	FFmpegReleaseURL  string        `mapstructure:"ffmpeg_release_url"`
	FFmpegChecksumURL string        `mapstructure:"ffmpeg_checksum_url"`
	DownloadTimeout   time.Duration `mapstructure:"download_timeout"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values.
// Empty release URLs select the platform artifact at install time.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			OutputDir:        "$HOME/Downloads/mediaq",
			LogsDir:          "$HOME/.mediaq/logs",
			MaxConcurrent:    3,
			ProgressInterval: 200 * time.Millisecond,
		},
		Queue: QueueConfig{
			DatabasePath:   "$HOME/.mediaq/history.db",
			PersistHistory: true,
		},
		Resolver: ResolverConfig{
			Timeout: 30 * time.Second,
		},
		Binaries: BinariesConfig{
			InstallDir:      "$HOME/.mediaq/bin",
			DownloadTimeout: 10 * time.Minute,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
