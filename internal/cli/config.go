package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "SHOWCASE"

	cfgKeyBackend           = "backend"
	cfgKeyDataDir           = "data_dir"
	cfgKeySyncStrategy      = "sync_strategy"
	cfgKeyWatchFiles        = "watch_files"
	cfgKeyRetryMaxAttempts  = "retry.max_attempts"
	cfgKeyRetryInitialDelay = "retry.initial_delay"
	cfgKeyRetryMaxDelay     = "retry.max_delay"
	cfgKeyRetryMultiplier   = "retry.multiplier"
	cfgKeyLogLevel          = "log.level"
	cfgKeyLogFormat         = "log.format"
	cfgKeyLogNoColor        = "log.no_color"

	defaultLogLevel = "warn"
)

// settings is the decoded configuration of one invocation.
type settings struct {
	Store types.Config
	Log   logging.Config
}

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend      string    `yaml:"backend"`
	DataDir      string    `yaml:"data_dir,omitempty"`
	SyncStrategy string    `yaml:"sync_strategy"`
	WatchFiles   bool      `yaml:"watch_files"`
	Retry        retryFile `yaml:"retry"`
	Log          logFile   `yaml:"log"`
}

type retryFile struct {
	MaxAttempts  int     `yaml:"max_attempts"`
	InitialDelay string  `yaml:"initial_delay"`
	MaxDelay     string  `yaml:"max_delay"`
	Multiplier   float64 `yaml:"multiplier"`
}

type logFile struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfigFile() configFile {
	r := types.DefaultRetryConfig
	return configFile{
		Backend:      types.BackendSQLite,
		SyncStrategy: types.SyncImmediate,
		WatchFiles:   true,
		Retry: retryFile{
			MaxAttempts:  r.MaxAttempts,
			InitialDelay: r.InitialDelay.String(),
			MaxDelay:     r.MaxDelay.String(),
			Multiplier:   r.Multiplier,
		},
		Log: logFile{
			Level:  defaultLogLevel,
			Format: logging.FormatConsole,
		},
	}
}

// newViper returns a viper instance with every key defaulted and SHOWCASE_*
// environment variables bound, so that data_dir reads SHOWCASE_DATA_DIR and
// retry.max_attempts reads SHOWCASE_RETRY_MAX_ATTEMPTS.
func newViper() *viper.Viper {
	r := types.DefaultRetryConfig
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyWatchFiles, true)
	v.SetDefault(cfgKeyRetryMaxAttempts, r.MaxAttempts)
	v.SetDefault(cfgKeyRetryInitialDelay, r.InitialDelay)
	v.SetDefault(cfgKeyRetryMaxDelay, r.MaxDelay)
	v.SetDefault(cfgKeyRetryMultiplier, r.Multiplier)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, logging.FormatConsole)
	v.SetDefault(cfgKeyLogNoColor, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads config.yaml from configDir. It creates the directory and
// a default config.yaml on first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (settings, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return settings{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(filepath.Join(configDir, configFileExt), ""); err != nil {
		return settings{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := newViper()
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}
	return decodeSettings(v)
}

func decodeSettings(v *viper.Viper) (settings, error) {
	var s settings
	if err := v.Unmarshal(&s.Store); err != nil {
		return settings{}, fmt.Errorf("decode config: %w", err)
	}
	s.Log = logging.Config{
		Level:   v.GetString(cfgKeyLogLevel),
		Format:  v.GetString(cfgKeyLogFormat),
		NoColor: v.GetBool(cfgKeyLogNoColor),
	}
	return s, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. If it already exists, the function returns nil.
func writeConfigIfMissing(path, dataDir string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfigFile()
	cfg.DataDir = dataDir

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# showcase configuration\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
