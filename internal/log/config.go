/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"strings"

	"code.cloudfoundry.org/bytefmt"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
)

const cfgDefaultKeyPrefix = "log"

const (
	cfgKeyLogLevel                        = "level"
	cfgKeyLogFormat                       = "format"
	cfgKeyLogOutput                       = "output"
	cfgKeyLogNoColor                      = "nocolor"
	cfgKeyLogAddCaller                    = "addCaller"
	cfgKeyLogErrorNoVerbose               = "error.noVerbose"
	cfgKeyLogErrorVerboseSuffix           = "error.verboseSuffix"
	cfgKeyLogFilePath                     = "file.path"
	cfgKeyLogFileRotationCompress         = "file.rotation.compress"
	cfgKeyLogFileRotationMaxSize          = "file.rotation.maxSize"
	cfgKeyLogFileRotationMaxBackups       = "file.rotation.maxBackups"
	cfgKeyLogFileRotationMaxAgeDays       = "file.rotation.maxAgeDays"
	cfgKeyLogFileRotationLocalTimeInNames = "file.rotation.localTimeInNames"
)

// Defaults and lower bounds for file rotation.
const (
	DefaultFileRotationMaxSizeBytes = 1024 * 1024 * 250
	MinFileRotationMaxSizeBytes     = 1024 * 1024

	DefaultFileRotationMaxBackups = 10
	MinFileRotationMaxBackups     = 1

	defaultErrorVerboseSuffix = "_verbose"
)

// Level names the minimum severity the logger emits.
type Level string

// Logging levels.
const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Format selects the encoding of emitted log entries.
type Format string

// Logging formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output selects where log entries are written.
type Output string

// Logging outputs.
const (
	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
	OutputFile   Output = "file"
)

var (
	knownLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}
	knownFormats = []string{string(FormatJSON), string(FormatText)}
	knownOutputs = []string{string(OutputStdout), string(OutputStderr), string(OutputFile)}
)

// Config holds the logging parameters of the service.
// It can be populated from YAML or JSON via config.Loader or unmarshalled directly.
type Config struct {
	Level   Level            `mapstructure:"level" yaml:"level" json:"level"`
	Format  Format           `mapstructure:"format" yaml:"format" json:"format"`
	Output  Output           `mapstructure:"output" yaml:"output" json:"output"`
	NoColor bool             `mapstructure:"nocolor" yaml:"nocolor" json:"nocolor"`
	File    FileOutputConfig `mapstructure:"file" yaml:"file" json:"file"`

	Error ErrorConfig `mapstructure:"error" yaml:"error" json:"error"`

	// AddCaller adds the calling package/file:line to every logged message.
	AddCaller bool `mapstructure:"addCaller" yaml:"addCaller" json:"addCaller"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// FileOutputConfig configures the file log output.
type FileOutputConfig struct {
	Path     string             `mapstructure:"path" yaml:"path" json:"path"`
	Rotation FileRotationConfig `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
}

// FileRotationConfig configures rotation of the log file.
type FileRotationConfig struct {
	Compress         bool              `mapstructure:"compress" yaml:"compress" json:"compress"`
	MaxSize          config.BytesCount `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`
	MaxBackups       int               `mapstructure:"maxBackups" yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays       int               `mapstructure:"maxAgeDays" yaml:"maxAgeDays" json:"maxAgeDays"`
	LocalTimeInNames bool              `mapstructure:"localTimeInNames" yaml:"localTimeInNames" json:"localTimeInNames"`
}

// ErrorConfig configures how errors are logged.
type ErrorConfig struct {
	// NoVerbose suppresses the verbose error field. When false and the logged error
	// implements fmt.Formatter with a representation different from err.Error(),
	// that representation is logged under the key "error" + VerboseSuffix.
	NoVerbose     bool   `mapstructure:"noVerbose" yaml:"noVerbose" json:"noVerbose"`
	VerboseSuffix string `mapstructure:"verboseSuffix" yaml:"verboseSuffix" json:"verboseSuffix"`
}

// ConfigOption is a functional option for Config constructors.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption overriding the key prefix under which
// config.Loader looks the logging parameters up.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new zero-valued Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new Config with default values filled in.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.Level = LevelInfo
	cfg.Format = FormatJSON
	cfg.Output = OutputStdout
	cfg.File.Rotation.MaxSize = DefaultFileRotationMaxSizeBytes
	cfg.File.Rotation.MaxBackups = DefaultFileRotationMaxBackups
	cfg.Error.VerboseSuffix = defaultErrorVerboseSuffix
	return cfg
}

// KeyPrefix returns the key prefix under which the parameters of this config are looked up.
// Part of the config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults writes the logging defaults into config.DataProvider.
// Part of the config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLogLevel, string(LevelInfo))
	dp.SetDefault(cfgKeyLogFormat, string(FormatJSON))
	dp.SetDefault(cfgKeyLogOutput, string(OutputStdout))
	dp.SetDefault(cfgKeyLogErrorVerboseSuffix, defaultErrorVerboseSuffix)
	dp.SetDefault(cfgKeyLogFileRotationMaxSize, bytefmt.ByteSize(DefaultFileRotationMaxSizeBytes))
	dp.SetDefault(cfgKeyLogFileRotationMaxBackups, DefaultFileRotationMaxBackups)
}

// Set reads the logging parameters from config.DataProvider.
// Part of the config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	levelStr, err := dp.GetStringFromSet(cfgKeyLogLevel, knownLevels, true)
	if err != nil {
		return err
	}
	c.Level = Level(strings.ToLower(levelStr))

	formatStr, err := dp.GetStringFromSet(cfgKeyLogFormat, knownFormats, true)
	if err != nil {
		return err
	}
	c.Format = Format(strings.ToLower(formatStr))

	outputStr, err := dp.GetStringFromSet(cfgKeyLogOutput, knownOutputs, true)
	if err != nil {
		return err
	}
	c.Output = Output(strings.ToLower(outputStr))

	if c.AddCaller, err = dp.GetBool(cfgKeyLogAddCaller); err != nil {
		return err
	}
	if c.NoColor, err = dp.GetBool(cfgKeyLogNoColor); err != nil {
		return err
	}
	if c.Error.NoVerbose, err = dp.GetBool(cfgKeyLogErrorNoVerbose); err != nil {
		return err
	}
	if c.Error.VerboseSuffix, err = dp.GetString(cfgKeyLogErrorVerboseSuffix); err != nil {
		return err
	}

	return c.setFileOutput(dp)
}

func (c *Config) setFileOutput(dp config.DataProvider) error {
	var err error

	if c.File.Path, err = dp.GetString(cfgKeyLogFilePath); err != nil {
		return err
	}
	if c.Output == OutputFile && c.File.Path == "" {
		return dp.WrapKeyErr(
			cfgKeyLogFilePath, fmt.Errorf("cannot be empty when %q output is used", OutputFile))
	}

	rot := &c.File.Rotation
	if rot.Compress, err = dp.GetBool(cfgKeyLogFileRotationCompress); err != nil {
		return err
	}
	if rot.MaxSize, err = dp.GetBytesCount(cfgKeyLogFileRotationMaxSize); err != nil {
		return err
	}
	if rot.MaxSize < MinFileRotationMaxSizeBytes {
		return dp.WrapKeyErr(cfgKeyLogFileRotationMaxSize,
			fmt.Errorf("should be >= %s", bytefmt.ByteSize(MinFileRotationMaxSizeBytes)))
	}
	if rot.MaxBackups, err = dp.GetInt(cfgKeyLogFileRotationMaxBackups); err != nil {
		return err
	}
	if rot.MaxBackups < MinFileRotationMaxBackups {
		return dp.WrapKeyErr(
			cfgKeyLogFileRotationMaxBackups, fmt.Errorf("should be >= %d", MinFileRotationMaxBackups))
	}
	if rot.MaxAgeDays, err = dp.GetInt(cfgKeyLogFileRotationMaxAgeDays); err != nil {
		return err
	}
	if rot.MaxAgeDays < 0 {
		return dp.WrapKeyErr(cfgKeyLogFileRotationMaxAgeDays, fmt.Errorf("should be >= 0"))
	}
	if rot.LocalTimeInNames, err = dp.GetBool(cfgKeyLogFileRotationLocalTimeInNames); err != nil {
		return err
	}

	return nil
}
