/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package objstorage

import (
	"errors"

	"github.com/Muminur/shopgenfy-sub002/internal/config"
	"github.com/Muminur/shopgenfy-sub002/internal/httpclient"
)

const (
	cfgKeyObjStorageBaseURL = "objstorage.baseUrl"
	cfgKeyObjStorageAPIKey  = "objstorage.apiKey"
)

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// Config represents a set of configuration parameters for the object storage client.
type Config struct {
	// BaseURL is a base URL of the object storage service API.
	BaseURL string

	// APIKey is a bearer token for the object storage service API.
	APIKey string

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

// SetProviderDefaults sets default configuration values for the object storage client in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	c.Transport.SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, "objstorage.transport"))
}

// Set sets object storage client configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.BaseURL, err = dp.GetString(cfgKeyObjStorageBaseURL); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return dp.WrapKeyErr(cfgKeyObjStorageBaseURL, errors.New("object storage base URL cannot be empty"))
	}
	if c.APIKey, err = dp.GetString(cfgKeyObjStorageAPIKey); err != nil {
		return err
	}
	return c.Transport.Set(config.NewKeyPrefixedDataProvider(dp, "objstorage.transport"))
}
