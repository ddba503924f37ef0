/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/retry"
)

// DefaultClientWaitTimeout limits the total time of a single client call,
// including every retry attempt.
const DefaultClientWaitTimeout = 10 * time.Second

// Supported retry policy strategies.
const (
	RetryPolicyExponential = "exponential"
	RetryPolicyConstant    = "constant"
)

const (
	cfgKeyRetriesEnabled                          = "retries.enabled"
	cfgKeyRetriesMax                              = "retries.maxAttempts"
	cfgKeyRetriesPolicyStrategy                   = "retries.policy.strategy"
	cfgKeyRetriesPolicyExponentialInitialInterval = "retries.policy.exponentialBackoffInitialInterval"
	cfgKeyRetriesPolicyExponentialMultiplier      = "retries.policy.exponentialBackoffMultiplier"
	cfgKeyRetriesPolicyConstantInternal           = "retries.policy.constantBackoffInterval"
	cfgKeyRateLimitsEnabled                       = "rateLimits.enabled"
	cfgKeyRateLimitsLimit                         = "rateLimits.limit"
	cfgKeyRateLimitsBurst                         = "rateLimits.burst"
	cfgKeyRateLimitsWaitTimeout                   = "rateLimits.waitTimeout"
	cfgKeyRateLimitsAdaptationHeader              = "rateLimits.adaptation.responseHeaderName"
	cfgKeyRateLimitsAdaptationSlackPercent        = "rateLimits.adaptation.slackPercent"
	cfgKeyLoggerEnabled                           = "logger.enabled"
	cfgKeyLoggerMode                              = "logger.mode"
	cfgKeyLoggerSlowRequestThreshold              = "logger.slowRequestThreshold"
	cfgKeyMetricsEnabled                          = "metrics.enabled"
	cfgKeyTimeout                                 = "timeout"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config describes an outbound HTTP client: total timeout plus the retries,
// rate limiting, logging and metrics layers of its transport chain. Each of
// the GenAI, image generation and object storage clients carries one under its
// own key prefix.
type Config struct {
	Retries    RetriesConfig   `mapstructure:"retries" yaml:"retries" json:"retries"`
	RateLimits RateLimitConfig `mapstructure:"rateLimits" yaml:"rateLimits" json:"rateLimits"`
	Log        LoggerConfig    `mapstructure:"logger" yaml:"logger" json:"logger"`
	Metrics    MetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// Timeout bounds the whole client call. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	keyPrefix string
}

// NewConfig creates a new Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new Config that reads its parameters under
// the given key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix is part of the config.KeyPrefixProvider interface implementation.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultClientWaitTimeout)
}

// Set is part of the config.Config interface implementation.
func (c *Config) Set(dp config.DataProvider) error {
	timeout, err := dp.GetDuration(cfgKeyTimeout)
	if err != nil {
		return err
	}
	c.Timeout = timeout

	for _, sub := range []config.Config{&c.Retries, &c.RateLimits, &c.Log, &c.Metrics} {
		if err := sub.Set(dp); err != nil {
			return err
		}
	}
	return nil
}

// RateLimitConfig describes client-side rate limiting of outbound requests.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Limit is the sustained number of requests per second.
	Limit int `mapstructure:"limit" yaml:"limit" json:"limit"`

	// Burst allows short spikes above Limit.
	Burst int `mapstructure:"burst" yaml:"burst" json:"burst"`

	// WaitTimeout bounds the wait for a free slot.
	WaitTimeout time.Duration `mapstructure:"waitTimeout" yaml:"waitTimeout" json:"waitTimeout"`

	// Adaptation adjusts the effective limit from a response header the remote side sends
	// (e.g. X-RateLimit-Limit). Disabled when ResponseHeaderName is empty.
	Adaptation RateLimitAdaptationConfig `mapstructure:"adaptation" yaml:"adaptation" json:"adaptation"`
}

// RateLimitAdaptationConfig tunes following a limit the remote side reports.
type RateLimitAdaptationConfig struct {
	ResponseHeaderName string `mapstructure:"responseHeaderName" yaml:"responseHeaderName" json:"responseHeaderName"`
	SlackPercent       int    `mapstructure:"slackPercent" yaml:"slackPercent" json:"slackPercent"`
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *RateLimitConfig) SetProviderDefaults(_ config.DataProvider) {}

// Set is part of the config.Config interface implementation.
func (c *RateLimitConfig) Set(dp config.DataProvider) (err error) {
	if c.Enabled, err = dp.GetBool(cfgKeyRateLimitsEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	if c.Limit, err = dp.GetInt(cfgKeyRateLimitsLimit); err != nil {
		return err
	}
	if c.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsLimit, errors.New("client rate limit must be positive"))
	}

	if c.Burst, err = dp.GetInt(cfgKeyRateLimitsBurst); err != nil {
		return err
	}
	if c.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsBurst, errors.New("client burst must be positive"))
	}

	if c.WaitTimeout, err = dp.GetDuration(cfgKeyRateLimitsWaitTimeout); err != nil {
		return err
	}
	if c.WaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsWaitTimeout, errors.New("client wait timeout must be positive"))
	}

	if c.Adaptation.ResponseHeaderName, err = dp.GetString(cfgKeyRateLimitsAdaptationHeader); err != nil {
		return err
	}
	if c.Adaptation.SlackPercent, err = dp.GetInt(cfgKeyRateLimitsAdaptationSlackPercent); err != nil {
		return err
	}
	if c.Adaptation.SlackPercent < 0 || c.Adaptation.SlackPercent > 100 {
		return dp.WrapKeyErr(cfgKeyRateLimitsAdaptationSlackPercent, errors.New("slack percent must be in range [0..100]"))
	}

	return nil
}

// TransportOpts converts the config into RateLimitingRoundTripper options.
func (c *RateLimitConfig) TransportOpts() RateLimitingRoundTripperOpts {
	return RateLimitingRoundTripperOpts{
		Burst:       c.Burst,
		WaitTimeout: c.WaitTimeout,
		Adaptation: RateLimitingRoundTripperAdaptation{
			ResponseHeaderName: c.Adaptation.ResponseHeaderName,
			SlackPercent:       c.Adaptation.SlackPercent,
		},
	}
}

// RetriesConfig describes retrying of failed outbound requests.
type RetriesConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// MaxAttempts limits how many times a request is retried.
	MaxAttempts int `mapstructure:"maxAttempts" yaml:"maxAttempts" json:"maxAttempts"`

	// Policy selects the backoff strategy, exponential or constant.
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy" json:"policy"`
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *RetriesConfig) SetProviderDefaults(_ config.DataProvider) {}

// Set is part of the config.Config interface implementation.
func (c *RetriesConfig) Set(dp config.DataProvider) (err error) {
	if c.Enabled, err = dp.GetBool(cfgKeyRetriesEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	if c.MaxAttempts, err = dp.GetInt(cfgKeyRetriesMax); err != nil {
		return err
	}
	if c.MaxAttempts < 0 {
		return dp.WrapKeyErr(cfgKeyRetriesMax, errors.New("client max retry attempts must be positive"))
	}

	return c.Policy.Set(dp)
}

// GetPolicy builds a retry.Policy from the configured strategy, nil when no
// strategy is set.
func (c *RetriesConfig) GetPolicy() retry.Policy {
	switch c.Policy.Strategy {
	case RetryPolicyExponential:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewExponentialBackOff()
			bf.InitialInterval = c.Policy.ExponentialBackoffInitialInterval
			bf.Multiplier = c.Policy.ExponentialBackoffMultiplier
			bf.Reset()
			return bf
		})
	case RetryPolicyConstant:
		return retry.PolicyFunc(func() backoff.BackOff {
			bf := backoff.NewConstantBackOff(c.Policy.ConstantBackoffInterval)
			bf.Reset()
			return bf
		})
	}
	return nil
}

// TransportOpts converts the config into RetryableRoundTripper options.
func (c *RetriesConfig) TransportOpts() RetryableRoundTripperOpts {
	return RetryableRoundTripperOpts{MaxRetryAttempts: c.MaxAttempts}
}

// PolicyConfig holds the parameters of both backoff strategies, only the ones
// matching Strategy are read.
type PolicyConfig struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy" json:"strategy"`

	ExponentialBackoffInitialInterval time.Duration `mapstructure:"exponentialBackoffInitialInterval" yaml:"exponentialBackoffInitialInterval" json:"exponentialBackoffInitialInterval"` // nolint:lll
	ExponentialBackoffMultiplier      float64       `mapstructure:"exponentialBackoffMultiplier" yaml:"exponentialBackoffMultiplier" json:"exponentialBackoffMultiplier"`
	ConstantBackoffInterval           time.Duration `mapstructure:"constantBackoffInterval" yaml:"constantBackoffInterval" json:"constantBackoffInterval"`
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *PolicyConfig) SetProviderDefaults(_ config.DataProvider) {}

// Set is part of the config.Config interface implementation.
func (c *PolicyConfig) Set(dp config.DataProvider) (err error) {
	if c.Strategy, err = dp.GetString(cfgKeyRetriesPolicyStrategy); err != nil {
		return err
	}

	switch c.Strategy {
	case "":
		return nil

	case RetryPolicyExponential:
		if c.ExponentialBackoffInitialInterval, err = dp.GetDuration(cfgKeyRetriesPolicyExponentialInitialInterval); err != nil {
			return err
		}
		if c.ExponentialBackoffInitialInterval < 0 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyExponentialInitialInterval,
				errors.New("client exponential backoff initial interval must be positive"))
		}
		if c.ExponentialBackoffMultiplier, err = dp.GetFloat64(cfgKeyRetriesPolicyExponentialMultiplier); err != nil {
			return err
		}
		if c.ExponentialBackoffMultiplier <= 1 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyExponentialMultiplier,
				errors.New("client exponential backoff multiplier must be greater than 1"))
		}
		return nil

	case RetryPolicyConstant:
		if c.ConstantBackoffInterval, err = dp.GetDuration(cfgKeyRetriesPolicyConstantInternal); err != nil {
			return err
		}
		if c.ConstantBackoffInterval < 0 {
			return dp.WrapKeyErr(cfgKeyRetriesPolicyConstantInternal,
				errors.New("client constant backoff interval must be positive"))
		}
		return nil
	}

	return dp.WrapKeyErr(cfgKeyRetriesPolicyStrategy, errors.New("client retry policy must be one of: [exponential, constant]"))
}

// LoggerConfig describes logging of outbound requests.
type LoggerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// SlowRequestThreshold marks requests whose round trip took longer.
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`

	// Mode selects what is logged: none, all, failed.
	Mode string `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *LoggerConfig) SetProviderDefaults(_ config.DataProvider) {}

// Set is part of the config.Config interface implementation.
func (c *LoggerConfig) Set(dp config.DataProvider) (err error) {
	if c.Enabled, err = dp.GetBool(cfgKeyLoggerEnabled); err != nil {
		return err
	}
	if !c.Enabled {
		return nil
	}

	if c.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLoggerSlowRequestThreshold); err != nil {
		return err
	}
	if c.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLoggerSlowRequestThreshold,
			errors.New("client logger slow request threshold can not be negative"))
	}

	if c.Mode, err = dp.GetString(cfgKeyLoggerMode); err != nil {
		return err
	}
	if !LoggingMode(c.Mode).IsValid() {
		return dp.WrapKeyErr(cfgKeyLoggerMode, fmt.Errorf("invalid client logger mode %q, choose one of: [none, all, failed]", c.Mode))
	}

	return nil
}

// TransportOpts converts the config into LoggingRoundTripper options.
func (c *LoggerConfig) TransportOpts() LoggingRoundTripperOpts {
	return LoggingRoundTripperOpts{
		Mode:                 LoggingMode(c.Mode),
		SlowRequestThreshold: c.SlowRequestThreshold,
	}
}

// MetricsConfig describes metrics collection for outbound requests.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// SetProviderDefaults is part of the config.Config interface implementation.
func (c *MetricsConfig) SetProviderDefaults(_ config.DataProvider) {}

// Set is part of the config.Config interface implementation.
func (c *MetricsConfig) Set(dp config.DataProvider) (err error) {
	c.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled)
	return err
}
