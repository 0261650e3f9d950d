package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/justin-molloy/mediawatch/logdata"
)

const (
	DefaultDebounce      = "2s"
	DefaultThrottle      = "2s"
	DefaultHiddenPattern = "._*"
	DefaultDatabase      = "mediawatch.db"
	DefaultListen        = "127.0.0.1:8080"
	DefaultWorkers       = 2
	DefaultQueueSize     = 256
)

type ConfigData struct {
	LogFile       string        `yaml:"logdest"`
	LogLevel      string        `yaml:"loglevel"`
	LogToConsole  bool          `yaml:"logtoconsole"`
	Heartbeat     bool          `yaml:"service_heartbeat"`
	Database      string        `yaml:"database"`
	Listen        string        `yaml:"listen"`
	Debounce      string        `yaml:"debounce"`
	Throttle      string        `yaml:"throttle"`
	HiddenPattern string        `yaml:"hidden_pattern"`
	Workers       *int          `yaml:"workers"`
	QueueSize     *int          `yaml:"queue_size"`
	Watch         []string      `yaml:"watch"`
	Remotes       []RemoteEntry `yaml:"remotes"`
}

// RemoteEntry is an SFTP host that can be browsed for directories.
type RemoteEntry struct {
	Name       string `yaml:"name"`
	Server     string `yaml:"server"`
	Port       string `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	PrivateKey string `yaml:"privatekey"`
	KnownHosts string `yaml:"knownhosts"`
}

type FlagOptions struct {
	LogFile      string
	ConfigFile   string
	LogLevel     string
	LogToConsole bool
}

func (c *ConfigData) SetDefaults() {
	if c.Debounce == "" {
		slog.Warn("Debounce window not set. Default is " + DefaultDebounce)
		c.Debounce = DefaultDebounce
	}
	if c.Throttle == "" {
		slog.Warn("Activity throttle window not set. Default is " + DefaultThrottle)
		c.Throttle = DefaultThrottle
	}
	if c.HiddenPattern == "" {
		c.HiddenPattern = DefaultHiddenPattern
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Workers == nil {
		workers := DefaultWorkers
		c.Workers = &workers
	}
	if c.QueueSize == nil {
		size := DefaultQueueSize
		c.QueueSize = &size
	}
	for i := range c.Remotes {
		if c.Remotes[i].Port == "" {
			c.Remotes[i].Port = "22"
		}
	}
}

// DebounceWindow is only meaningful once ValidateConfig has passed.
func (c *ConfigData) DebounceWindow() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.Debounce))
	return d
}

func (c *ConfigData) ThrottleWindow() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.Throttle))
	return d
}

// Remote looks up a configured remote by name.
func (c *ConfigData) Remote(name string) (RemoteEntry, bool) {
	for _, r := range c.Remotes {
		if r.Name == name {
			return r, true
		}
	}
	return RemoteEntry{}, false
}

func LoadConfig(configFile string) (ConfigData, error) {

	// Read yaml config into ConfigData
	yamlConfig, err := os.ReadFile(configFile)
	if err != nil {
		return ConfigData{}, fmt.Errorf("can't read configuration file: %w", err)
	}

	var cfg ConfigData
	if err := yaml.Unmarshal(yamlConfig, &cfg); err != nil {
		return ConfigData{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// ensure every setting has a value before returning.
	cfg.SetDefaults()

	return cfg, nil
}

// PrintConfig writes the effective configuration as YAML with passwords
// masked.
func PrintConfig(w io.Writer, cfg ConfigData) error {
	cfg.Remotes = append([]RemoteEntry(nil), cfg.Remotes...)
	for i := range cfg.Remotes {
		if cfg.Remotes[i].Password != "" {
			cfg.Remotes[i].Password = "********"
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// GetConfigFile decides where the config file lives. An explicit path wins;
// otherwise the per-system location for appName is used if it exists, and
// config.yaml in the working directory if not.
func GetConfigFile(appName string, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	var base string
	if runtime.GOOS == "windows" {
		base = os.Getenv("ProgramData")
	} else {
		dir, err := os.UserConfigDir()
		if err == nil {
			base = dir
		}
	}

	if base != "" {
		candidate := filepath.Join(base, appName, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("can't determine working directory: %w", err)
	}
	return filepath.Join(cwd, "config.yaml"), nil
}

// AddFlags registers the logging and config overrides on cmd.
func AddFlags(cmd *cobra.Command) *FlagOptions {
	var flags FlagOptions

	cmd.PersistentFlags().StringVar(&flags.LogFile, "logdest", "", "Directory for log files (overrides config)")
	cmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Path to config file. If this is not set, the system location or ./config.yaml is used")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.LogToConsole, "console", false, "Log to console instead of file")

	return &flags
}

// ApplyFlags lets command line flags override the config file.
func ApplyFlags(cfg *ConfigData, flags FlagOptions) {
	if flags.LogFile != "" {
		cfg.LogFile = flags.LogFile
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if flags.LogToConsole {
		cfg.LogToConsole = true
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo // fallback
	}
}

// SetupLogger installs the default slog logger. When logging to a file the
// file is returned so the caller can close it.
func SetupLogger(cfg *ConfigData) (*os.File, error) {
	var output *os.File
	var logPath string

	if !cfg.LogToConsole && cfg.LogFile != "" {
		var err error
		logPath, output, err = logdata.OpenLogFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
	} else {
		output = os.Stdout
	}

	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	})
	slog.SetDefault(slog.New(handler))

	// Return nil for file if we're using stdout
	if output == os.Stdout {
		slog.Info("Program started. Log messages output to stdout.")
		return nil, nil
	}

	slog.Info("Program started. Future log messages will be written here.", "path", logPath)
	return output, nil
}
