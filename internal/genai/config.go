/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package genai

import (
	"errors"
	"time"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const (
	cfgKeyGenAIBaseURL        = "genai.baseUrl"
	cfgKeyGenAIAPIKey         = "genai.apiKey"
	cfgKeyGenAIDefaultModel   = "genai.defaultModel"
	cfgKeyGenAIModelsCacheTTL = "genai.modelsCacheTtl"
)

const defaultModelsCacheTTL = time.Minute * 5

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents a set of configuration parameters for the content generation client.
type Config struct {
	// BaseURL is a base URL of the content generation service API.
	BaseURL string

	// APIKey is a bearer token for the content generation service API.
	APIKey string

	// DefaultModel is used for analyses that don't name a model explicitly.
	DefaultModel string

	// ModelsCacheTTL is how long a fetched model list is served from memory.
	ModelsCacheTTL config.TimeDuration

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

// SetProviderDefaults sets default configuration values for the content generation client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyGenAIModelsCacheTTL, defaultModelsCacheTTL)
	c.Transport.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, "genai.transport"))
}

// Set sets content generation client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.BaseURL, err = dp.GetString(cfgKeyGenAIBaseURL); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return dp.WrapKeyErr(cfgKeyGenAIBaseURL, errors.New("content generation base URL cannot be empty"))
	}
	if c.APIKey, err = dp.GetString(cfgKeyGenAIAPIKey); err != nil {
		return err
	}
	if c.DefaultModel, err = dp.GetString(cfgKeyGenAIDefaultModel); err != nil {
		return err
	}

	var ttl time.Duration
	if ttl, err = dp.GetDuration(cfgKeyGenAIModelsCacheTTL); err != nil {
		return err
	}
	if ttl < 0 {
		return dp.WrapKeyErr(cfgKeyGenAIModelsCacheTTL, errors.New("models cache TTL must not be negative"))
	}
	c.ModelsCacheTTL = config.TimeDuration(ttl)

	return c.Transport.Set(config.NewKeyPrefixedDataProvider(dp, "genai.transport"))
}
