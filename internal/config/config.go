// Package config loads the unisql CLI configuration from config.yaml in
// the configuration directory, with UNISQL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/unisql/internal/logging"
	"github.com/mesh-intelligence/unisql/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// FileName is the config file created in the configuration directory.
	FileName = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. UNISQL_LOG_LEVEL.
	EnvPrefix = "UNISQL"
)

// Config keys.
const (
	KeyDataDir         = "data_dir"
	KeySchemaDir       = "schema_dir"
	KeyMaxConnections  = "max_connections"
	KeyDriver          = "driver"
	KeyBusyTimeout     = "busy_timeout"
	KeyVerifyIntegrity = "verify_integrity"
	KeyRoles           = "roles"
	KeyPrimaryRole     = "primary_role"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyLogOutput       = "log.output"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# unisql configuration

# Directory holding one <name>.db file per logical database
# (optional; overridable by --data-dir and UNISQL_DATA_DIR)
# data_dir:

# Directory holding schema definition files and roles.yaml
# (optional; defaults to <config dir>/schemas)
# schema_dir:

max_connections: 10

# Preferred driver: modernc, or mattn in cgo_sqlite builds. Empty picks the
# first supported driver.
driver: ""

busy_timeout: 5s
verify_integrity: false

# Roles activated for every CLI session
roles: []
# primary_role:

log:
  level: warn
  format: text
  output: stderr
`

// File is the decoded config.yaml.
type File struct {
	DataDir         string         `mapstructure:"data_dir"`
	SchemaDir       string         `mapstructure:"schema_dir"`
	MaxConnections  int            `mapstructure:"max_connections"`
	Driver          string         `mapstructure:"driver"`
	BusyTimeout     time.Duration  `mapstructure:"busy_timeout"`
	VerifyIntegrity bool           `mapstructure:"verify_integrity"`
	Roles           []string       `mapstructure:"roles"`
	PrimaryRole     string         `mapstructure:"primary_role"`
	Log             logging.Config `mapstructure:"log"`
}

// Manager returns the manager settings, with dataDir as the resolved data
// directory.
func (f *File) Manager(dataDir string) types.Config {
	return types.Config{
		MaxConnections:  f.MaxConnections,
		DataDir:         dataDir,
		Driver:          f.Driver,
		BusyTimeout:     f.BusyTimeout,
		VerifyIntegrity: f.VerifyIntegrity,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeySchemaDir, "")
	v.SetDefault(KeyMaxConnections, types.DefaultMaxConnections)
	v.SetDefault(KeyDriver, "")
	v.SetDefault(KeyBusyTimeout, types.DefaultBusyTimeout)
	v.SetDefault(KeyVerifyIntegrity, false)
	v.SetDefault(KeyRoles, []string{})
	v.SetDefault(KeyPrimaryRole, "")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogOutput, "stderr")
}

// Load reads config.yaml from configDir, creating the directory and a
// default file on first run. Environment variables override the file.
func Load(configDir string) (*File, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := f.Manager("").WithDefaults().Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func ensureDefaultFile(configDir string) error {
	path := filepath.Join(configDir, FileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
