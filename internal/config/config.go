/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import "reflect"

// Config is implemented by configuration objects that Loader can fill.
// SetProviderDefaults runs for every config before any Set, so defaults
// registered by one section are visible when another is read.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is implemented by configs that live under a fixed key
// prefix in the config tree.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// CallSetProviderDefaultsForFields calls SetProviderDefaults on every exported
// non-nil field of obj that implements Config.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	forEachConfigField(obj, dp, func(c Config, fieldDP DataProvider) error {
		c.SetProviderDefaults(fieldDP)
		return nil
	})
}

// CallSetForFields calls Set on every exported non-nil field of obj that
// implements Config, stopping at the first error.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	return forEachConfigField(obj, dp, func(c Config, fieldDP DataProvider) error {
		return c.Set(fieldDP)
	})
}

func forEachConfigField(obj interface{}, dp DataProvider, fn func(c Config, dp DataProvider) error) error {
	el := reflect.ValueOf(obj).Elem()
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		v := el.Field(i).Interface()
		if reflect.ValueOf(v).Kind() == reflect.Ptr && reflect.ValueOf(v).IsNil() {
			continue
		}
		c, ok := v.(Config)
		if !ok {
			continue
		}
		if err := fn(c, dataProviderForConfig(c, dp)); err != nil {
			return err
		}
	}
	return nil
}

func dataProviderForConfig(cfg Config, dp DataProvider) DataProvider {
	if kpHolder, ok := cfg.(KeyPrefixProvider); ok && kpHolder.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kpHolder.KeyPrefix())
	}
	return dp
}
