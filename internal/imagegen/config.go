/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package imagegen

import (
	"errors"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const (
	cfgKeyImageGenBaseURL      = "imagegen.baseUrl"
	cfgKeyImageGenAPIKey       = "imagegen.apiKey"
	cfgKeyImageGenProviderRate = "imagegen.providerRate"
	cfgKeyImageGenWorkers      = "imagegen.workers"
	cfgKeyImageGenQueueSize    = "imagegen.queueSize"
	cfgKeyImageGenJobTTL       = "imagegen.jobTtl"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	defaultJobTTL    = time.Minute * 30
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents a set of configuration parameters for the image generation client and job queue.
type Config struct {
	// BaseURL is a base URL of the image generation service API.
	BaseURL string

	// APIKey is a bearer token for the image generation service API.
	APIKey string

	// ProviderRate paces outbound generation calls to the provider-side quota.
	// No pacing is applied when it's empty.
	ProviderRate config.RateValue

	// Workers is the number of goroutines processing queued jobs.
	Workers int

	// QueueSize is the capacity of the job queue. Enqueueing fails when the queue is full.
	QueueSize int

	// JobTTL is how long finished and abandoned jobs are kept before the reaper purges them.
	JobTTL config.TimeDuration

	// Transport configures the outbound HTTP client (retries, rate limits, logging, metrics).
	Transport *httpclient.Config

	keyPrefix string
}

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{
		Transport: httpclient.NewConfig(),
		keyPrefix: keyPrefix,
	}
}

// KeyPrefix returns the key prefix under which the parameters of this config are looked up.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the image generation client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyImageGenWorkers, defaultWorkers)
	dp.SetDefault(cfgKeyImageGenQueueSize, defaultQueueSize)
	dp.SetDefault(cfgKeyImageGenJobTTL, defaultJobTTL)
	c.Transport.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, "imagegen.transport"))
}

// Set sets image generation client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.BaseURL, err = dp.GetString(cfgKeyImageGenBaseURL); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return dp.WrapKeyErr(cfgKeyImageGenBaseURL, errors.New("image generation base URL cannot be empty"))
	}
	if c.APIKey, err = dp.GetString(cfgKeyImageGenAPIKey); err != nil {
		return err
	}
	if c.ProviderRate, err = dp.GetRateValue(cfgKeyImageGenProviderRate); err != nil {
		return err
	}
	if c.Workers, err = dp.GetInt(cfgKeyImageGenWorkers); err != nil {
		return err
	}
	if c.Workers < 1 {
		return dp.WrapKeyErr(cfgKeyImageGenWorkers, errors.New("workers must be >= 1"))
	}
	if c.QueueSize, err = dp.GetInt(cfgKeyImageGenQueueSize); err != nil {
		return err
	}
	if c.QueueSize < 1 {
		return dp.WrapKeyErr(cfgKeyImageGenQueueSize, errors.New("queueSize must be >= 1"))
	}

	var jobTTL time.Duration
	if jobTTL, err = dp.GetDuration(cfgKeyImageGenJobTTL); err != nil {
		return err
	}
	if jobTTL <= 0 {
		return dp.WrapKeyErr(cfgKeyImageGenJobTTL, errors.New("jobTtl must be positive"))
	}
	c.JobTTL = config.TimeDuration(jobTTL)

	return c.Transport.Set(config.NewKeyPrefixedDataProvider(dp, "imagegen.transport"))
}
