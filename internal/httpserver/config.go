/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"fmt"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
)

const cfgDefaultKeyPrefix = "server"

const (
	cfgKeyAddress                 = "address"
	cfgKeyTLSCert                 = "tls.cert"
	cfgKeyTLSKey                  = "tls.key"
	cfgKeyTLSEnabled              = "tls.enabled"
	cfgKeyTimeoutsWrite           = "timeouts.write"
	cfgKeyTimeoutsRead            = "timeouts.read"
	cfgKeyTimeoutsReadHeader      = "timeouts.readHeader"
	cfgKeyTimeoutsIdle            = "timeouts.idle"
	cfgKeyTimeoutsShutdown        = "timeouts.shutdown"
	cfgKeyLimitsRate              = "limits.rate"
	cfgKeyLimitsBurstLimit        = "limits.burstLimit"
	cfgKeyLimitsMaxBodySize       = "limits.maxBodySize"
	cfgKeyLogRequestStart         = "log.requestStart"
	cfgKeyLogRequestHeaders       = "log.requestHeaders"
	cfgKeyLogExcludedEndpoints    = "log.excludedEndpoints"
	cfgKeyLogSecretQueryParams    = "log.secretQueryParams" // nolint:gosec // false positive
	cfgKeyLogAddRequestInfo       = "log.addRequestInfo"
	cfgKeyLogSlowRequestThreshold = "log.slowRequestThreshold"
)

const (
	defaultAddress            = ":8080"
	defaultTimeoutsWrite      = time.Minute
	defaultTimeoutsRead       = time.Second * 15
	defaultTimeoutsReadHeader = time.Second * 10
	defaultTimeoutsIdle       = time.Minute
	defaultTimeoutsShutdown   = time.Second * 5

	defaultSlowRequestThreshold = time.Second
)

// Config holds the HTTPServer parameters: listen address, TLS, timeouts,
// request limits and access-log tuning. It can be populated from YAML or JSON
// via config.Loader or unmarshalled directly.
type Config struct {
	Address  string         `mapstructure:"address" yaml:"address" json:"address"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Limits   LimitsConfig   `mapstructure:"limits" yaml:"limits" json:"limits"`
	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	TLS      TLSConfig      `mapstructure:"tls" yaml:"tls" json:"tls"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a functional option for Config constructors.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption overriding the key prefix under which
// config.Loader looks the server parameters up.
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
	cfg.Address = defaultAddress
	cfg.Timeouts = TimeoutsConfig{
		Write:      config.TimeDuration(defaultTimeoutsWrite),
		Read:       config.TimeDuration(defaultTimeoutsRead),
		ReadHeader: config.TimeDuration(defaultTimeoutsReadHeader),
		Idle:       config.TimeDuration(defaultTimeoutsIdle),
		Shutdown:   config.TimeDuration(defaultTimeoutsShutdown),
	}
	cfg.Log.SlowRequestThreshold = config.TimeDuration(defaultSlowRequestThreshold)
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

// SetProviderDefaults writes the HTTP server defaults into config.DataProvider.
// Part of the config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyAddress, defaultAddress)

	dp.SetDefault(cfgKeyTimeoutsWrite, defaultTimeoutsWrite)
	dp.SetDefault(cfgKeyTimeoutsRead, defaultTimeoutsRead)
	dp.SetDefault(cfgKeyTimeoutsReadHeader, defaultTimeoutsReadHeader)
	dp.SetDefault(cfgKeyTimeoutsIdle, defaultTimeoutsIdle)
	dp.SetDefault(cfgKeyTimeoutsShutdown, defaultTimeoutsShutdown)

	dp.SetDefault(cfgKeyLogRequestStart, false)
	dp.SetDefault(cfgKeyLogAddRequestInfo, false)
	dp.SetDefault(cfgKeyLogSlowRequestThreshold, defaultSlowRequestThreshold)
}

// Set reads the HTTP server parameters from config.DataProvider.
// Part of the config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if c.Address == "" {
		return dp.WrapKeyErr(cfgKeyAddress, fmt.Errorf("cannot be empty"))
	}

	if err = c.TLS.Set(dp); err != nil {
		return err
	}
	if err = c.Timeouts.Set(dp); err != nil {
		return err
	}
	if err = c.Limits.Set(dp); err != nil {
		return err
	}
	return c.Log.Set(dp)
}

// TimeoutsConfig groups the timeouts of the server.
type TimeoutsConfig struct {
	Write      config.TimeDuration `mapstructure:"write" yaml:"write" json:"write"`
	Read       config.TimeDuration `mapstructure:"read" yaml:"read" json:"read"`
	ReadHeader config.TimeDuration `mapstructure:"readHeader" yaml:"readHeader" json:"readHeader"`
	Idle       config.TimeDuration `mapstructure:"idle" yaml:"idle" json:"idle"`
	Shutdown   config.TimeDuration `mapstructure:"shutdown" yaml:"shutdown" json:"shutdown"`
}

// Set reads the server timeouts from config.DataProvider.
func (t *TimeoutsConfig) Set(dp config.DataProvider) error {
	for _, tm := range []struct {
		key  string
		dest *config.TimeDuration
	}{
		{cfgKeyTimeoutsWrite, &t.Write},
		{cfgKeyTimeoutsRead, &t.Read},
		{cfgKeyTimeoutsReadHeader, &t.ReadHeader},
		{cfgKeyTimeoutsIdle, &t.Idle},
		{cfgKeyTimeoutsShutdown, &t.Shutdown},
	} {
		dur, err := dp.GetDuration(tm.key)
		if err != nil {
			return err
		}
		*tm.dest = config.TimeDuration(dur)
	}
	return nil
}

// LimitsConfig groups the request limits of the server.
type LimitsConfig struct {
	// Rate is the service-wide quota per client address. No rate limiting is applied when it's empty.
	Rate config.RateValue `mapstructure:"rate" yaml:"rate" json:"rate"`

	// BurstLimit is the number of requests that may momentarily exceed Rate.
	BurstLimit int `mapstructure:"burstLimit" yaml:"burstLimit" json:"burstLimit"`

	// MaxBodySizeBytes is the maximum size of the request body in bytes.
	MaxBodySizeBytes config.BytesCount `mapstructure:"maxBodySize" yaml:"maxBodySize" json:"maxBodySize"`
}

// Set reads the request limits from config.DataProvider.
func (l *LimitsConfig) Set(dp config.DataProvider) error {
	var err error

	if l.Rate, err = dp.GetRateValue(cfgKeyLimitsRate); err != nil {
		return err
	}
	if l.Rate.Count < 0 {
		return dp.WrapKeyErr(cfgKeyLimitsRate, fmt.Errorf("rate must be positive"))
	}

	if l.BurstLimit, err = dp.GetInt(cfgKeyLimitsBurstLimit); err != nil {
		return err
	}
	if l.BurstLimit < 0 {
		return dp.WrapKeyErr(cfgKeyLimitsBurstLimit, fmt.Errorf("burstLimit must be positive"))
	}

	if l.MaxBodySizeBytes, err = dp.GetBytesCount(cfgKeyLimitsMaxBodySize); err != nil {
		return dp.WrapKeyErr(cfgKeyLimitsMaxBodySize, err)
	}

	return nil
}

// LogConfig tunes the access log middleware of the server.
type LogConfig struct {
	RequestStart           bool                `mapstructure:"requestStart" yaml:"requestStart" json:"requestStart"`
	RequestHeaders         []string            `mapstructure:"requestHeaders" yaml:"requestHeaders" json:"requestHeaders"`
	ExcludedEndpoints      []string            `mapstructure:"excludedEndpoints" yaml:"excludedEndpoints" json:"excludedEndpoints"`
	SecretQueryParams      []string            `mapstructure:"secretQueryParams" yaml:"secretQueryParams"`
	AddRequestInfoToLogger bool                `mapstructure:"addRequestInfo" yaml:"addRequestInfo" json:"addRequestInfo"`
	SlowRequestThreshold   config.TimeDuration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`
}

// Set reads the access-log tuning from config.DataProvider.
func (l *LogConfig) Set(dp config.DataProvider) error {
	var err error

	if l.RequestStart, err = dp.GetBool(cfgKeyLogRequestStart); err != nil {
		return err
	}
	if l.RequestHeaders, err = dp.GetStringSlice(cfgKeyLogRequestHeaders); err != nil {
		return err
	}
	if l.ExcludedEndpoints, err = dp.GetStringSlice(cfgKeyLogExcludedEndpoints); err != nil {
		return err
	}
	if l.SecretQueryParams, err = dp.GetStringSlice(cfgKeyLogSecretQueryParams); err != nil {
		return err
	}
	if l.AddRequestInfoToLogger, err = dp.GetBool(cfgKeyLogAddRequestInfo); err != nil {
		return err
	}

	dur, err := dp.GetDuration(cfgKeyLogSlowRequestThreshold)
	if err != nil {
		return err
	}
	l.SlowRequestThreshold = config.TimeDuration(dur)

	return nil
}

// TLSConfig holds the certificate and key of the server when TLS is on.
type TLSConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Certificate string `mapstructure:"cert" yaml:"cert" json:"cert"`
	Key         string `mapstructure:"key" yaml:"key" json:"key"`
}

// Set reads the TLS parameters from config.DataProvider.
func (s *TLSConfig) Set(dp config.DataProvider) error {
	var err error

	if s.Enabled, err = dp.GetBool(cfgKeyTLSEnabled); err != nil {
		return err
	}
	if s.Certificate, err = dp.GetString(cfgKeyTLSCert); err != nil {
		return err
	}
	if s.Key, err = dp.GetString(cfgKeyTLSKey); err != nil {
		return err
	}
	if s.Enabled && (s.Certificate == "" || s.Key == "") {
		return dp.WrapKeyErr(cfgKeyTLSKey, fmt.Errorf("both cert and key should be set"))
	}

	return nil
}
