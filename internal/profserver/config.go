/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package profserver

import "github.com/Muminur/shopgenfy-sub002/internal/config"

const (
	cfgKeyProfServerEnabled = "profserver.enabled"
	cfgKeyProfServerAddress = "profserver.address"
)

const defaultProfServerAddress = ":8081"

// Config holds the profiling server parameters.
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address string `mapstructure:"address" yaml:"address" json:"address"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new zero-valued Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix("")
}

// NewConfigWithKeyPrefix creates a new Config looking its parameters up under
// the given key prefix.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// KeyPrefix returns the key prefix under which the parameters of this config are looked up.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults writes the profiling server defaults into config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyProfServerEnabled, true)
	dp.SetDefault(cfgKeyProfServerAddress, defaultProfServerAddress)
}

// Set reads the profiling server parameters from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.Enabled, err = dp.GetBool(cfgKeyProfServerEnabled); err != nil {
		return err
	}
	if c.Address, err = dp.GetString(cfgKeyProfServerAddress); err != nil {
		return err
	}
	return nil
}
