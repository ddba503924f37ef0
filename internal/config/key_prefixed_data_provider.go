/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"io"
	"strings"
	"time"
)

// KeyPrefixedDataProvider is a DataProvider view that prepends a fixed prefix
// to every key. It lets a section config like genai or imagegen address its own
// keys without knowing where it sits in the config tree.
type KeyPrefixedDataProvider struct {
	delegate DataProvider
	prefix   string
}

var _ DataProvider = (*KeyPrefixedDataProvider)(nil)

// NewKeyPrefixedDataProvider creates a new KeyPrefixedDataProvider.
func NewKeyPrefixedDataProvider(delegate DataProvider, keyPrefix string) *KeyPrefixedDataProvider {
	return &KeyPrefixedDataProvider{delegate: delegate, prefix: keyPrefix}
}

func (kp *KeyPrefixedDataProvider) fullKey(key string) string {
	return strings.Trim(kp.prefix+"."+key, ".")
}

// UseEnvVars enables env var overrides on the underlying provider.
func (kp *KeyPrefixedDataProvider) UseEnvVars(prefix string) {
	kp.delegate.UseEnvVars(prefix)
}

// Set forces the value for the prefixed key.
func (kp *KeyPrefixedDataProvider) Set(key string, value interface{}) {
	kp.delegate.Set(kp.fullKey(key), value)
}

// SetDefault sets the default value for the prefixed key.
func (kp *KeyPrefixedDataProvider) SetDefault(key string, value interface{}) {
	kp.delegate.SetDefault(kp.fullKey(key), value)
}

// SetFromFile loads configuration data from the file at path.
func (kp *KeyPrefixedDataProvider) SetFromFile(path string, dataType DataType) error {
	return kp.delegate.SetFromFile(path, dataType)
}

// SetFromReader loads configuration data from reader.
func (kp *KeyPrefixedDataProvider) SetFromReader(reader io.Reader, dataType DataType) error {
	return kp.delegate.SetFromReader(reader, dataType)
}

// Get returns the raw value for the prefixed key, or nil when unset.
func (kp *KeyPrefixedDataProvider) Get(key string) interface{} {
	return kp.delegate.Get(kp.fullKey(key))
}

// GetBool reads the prefixed key as a bool.
func (kp *KeyPrefixedDataProvider) GetBool(key string) (bool, error) {
	return kp.delegate.GetBool(kp.fullKey(key))
}

// GetInt reads the prefixed key as an int.
func (kp *KeyPrefixedDataProvider) GetInt(key string) (int, error) {
	return kp.delegate.GetInt(kp.fullKey(key))
}

// GetFloat64 reads the prefixed key as a float64.
func (kp *KeyPrefixedDataProvider) GetFloat64(key string) (float64, error) {
	return kp.delegate.GetFloat64(kp.fullKey(key))
}

// GetString reads the prefixed key as a string.
func (kp *KeyPrefixedDataProvider) GetString(key string) (string, error) {
	return kp.delegate.GetString(kp.fullKey(key))
}

// GetStringFromSet reads the prefixed key as a string and requires it to be one of set.
func (kp *KeyPrefixedDataProvider) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	return kp.delegate.GetStringFromSet(kp.fullKey(key), set, ignoreCase)
}

// GetStringSlice reads the prefixed key as a slice of strings.
func (kp *KeyPrefixedDataProvider) GetStringSlice(key string) ([]string, error) {
	return kp.delegate.GetStringSlice(kp.fullKey(key))
}

// GetDuration reads the prefixed key as a time.Duration.
func (kp *KeyPrefixedDataProvider) GetDuration(key string) (time.Duration, error) {
	return kp.delegate.GetDuration(kp.fullKey(key))
}

// GetBytesCount reads the prefixed key as a size in bytes.
func (kp *KeyPrefixedDataProvider) GetBytesCount(key string) (BytesCount, error) {
	return kp.delegate.GetBytesCount(kp.fullKey(key))
}

// GetRateValue reads the prefixed key as a rate in N/(s|m|h) format.
func (kp *KeyPrefixedDataProvider) GetRateValue(key string) (RateValue, error) {
	return kp.delegate.GetRateValue(kp.fullKey(key))
}

// WrapKeyErr annotates err with the full, prefixed config key.
func (kp *KeyPrefixedDataProvider) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(kp.fullKey(key), err)
}
