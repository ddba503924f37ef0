/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import "io"

// Loader fills Config objects from a DataProvider, registering every config's
// defaults before any values are read.
type Loader struct {
	DataProvider DataProvider
}

// NewLoader creates a Loader on top of the given provider.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// NewDefaultLoader creates a Loader backed by viper with env var overrides
// enabled under the given prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// LoadFromFile reads configuration data from the file at path and fills cfgs.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.load(append([]Config{cfg}, cfgs...))
}

// LoadFromReader reads configuration data from reader and fills cfgs.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.load(append([]Config{cfg}, cfgs...))
}

func (l *Loader) load(cfgs []Config) error {
	for _, cfg := range cfgs {
		cfg.SetProviderDefaults(dataProviderForConfig(cfg, l.DataProvider))
	}
	for _, cfg := range cfgs {
		if err := cfg.Set(dataProviderForConfig(cfg, l.DataProvider)); err != nil {
			return err
		}
	}
	return nil
}
