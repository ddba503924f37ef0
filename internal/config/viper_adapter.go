/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperAdapter implements DataProvider on top of the viper library.
type ViperAdapter struct {
	viper *viper.Viper
}

var _ DataProvider = (*ViperAdapter)(nil)

// NewViperAdapter creates a new ViperAdapter.
func NewViperAdapter() *ViperAdapter {
	return &ViperAdapter{viper.New()}
}

// UseEnvVars lets environment variables override config values. With prefix
// "shopgenfy", the key server.address maps to SHOPGENFY_SERVER_ADDRESS.
func (va *ViperAdapter) UseEnvVars(prefix string) {
	va.viper.AutomaticEnv()
	va.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	va.viper.SetEnvPrefix(prefix)
}

// Set forces the value for the key, taking precedence over files and env vars.
func (va *ViperAdapter) Set(key string, value interface{}) {
	va.viper.Set(key, value)
}

// SetDefault sets the value used when neither config nor env provides one.
func (va *ViperAdapter) SetDefault(key string, value interface{}) {
	va.viper.SetDefault(key, value)
}

// Get returns the raw value for the key, or nil when unset.
func (va *ViperAdapter) Get(key string) interface{} {
	return va.viper.Get(key)
}

// SetFromFile loads configuration data from the file at path.
func (va *ViperAdapter) SetFromFile(path string, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	va.viper.SetConfigFile(path)
	return va.viper.ReadInConfig()
}

// SetFromReader loads configuration data from reader.
func (va *ViperAdapter) SetFromReader(reader io.Reader, dataType DataType) error {
	va.viper.SetConfigType(string(dataType))
	return va.viper.ReadConfig(reader)
}

// GetBool reads the key as a bool.
func (va *ViperAdapter) GetBool(key string) (bool, error) {
	res, err := cast.ToBoolE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetInt reads the key as an int.
func (va *ViperAdapter) GetInt(key string) (int, error) {
	res, err := cast.ToIntE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetFloat64 reads the key as a float64.
func (va *ViperAdapter) GetFloat64(key string) (float64, error) {
	res, err := cast.ToFloat64E(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetString reads the key as a string.
func (va *ViperAdapter) GetString(key string) (string, error) {
	res, err := cast.ToStringE(va.Get(key))
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetStringFromSet reads the key as a string and requires it to be one of set.
func (va *ViperAdapter) GetStringFromSet(key string, set []string, ignoreCase bool) (string, error) {
	str, err := va.GetString(key)
	if err != nil {
		return "", err
	}
	for _, allowed := range set {
		if str == allowed || (ignoreCase && strings.EqualFold(str, allowed)) {
			return str, nil
		}
	}
	return "", WrapKeyErr(key, fmt.Errorf("unknown value %q, should be one of %v", str, set))
}

// GetStringSlice reads the key as a slice of strings. An unset key yields nil.
func (va *ViperAdapter) GetStringSlice(key string) ([]string, error) {
	val := va.Get(key)
	if val == nil {
		return nil, nil
	}
	res, err := cast.ToStringSliceE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetDuration reads the key as a time.Duration. An unset key yields zero.
func (va *ViperAdapter) GetDuration(key string) (time.Duration, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	res, err := cast.ToDurationE(val)
	return res, WrapKeyErrIfNeeded(key, err)
}

// GetBytesCount reads the key as a size in bytes. Both plain numbers and
// human-readable strings like "256M" are accepted.
func (va *ViperAdapter) GetBytesCount(key string) (BytesCount, error) {
	val := va.Get(key)
	if val == nil {
		return 0, nil
	}
	switch v := val.(type) {
	case BytesCount:
		return v, nil

	case string:
		num, err := parseBytesCount(v)
		if err != nil {
			return 0, WrapKeyErr(key, err)
		}
		return num, nil

	case int, int8, int16, int32, int64:
		num := cast.ToInt64(val)
		if num < 0 {
			return 0, WrapKeyErr(key, fmt.Errorf("negative value is not allowed: %d", num))
		}
		return BytesCount(num), nil

	case uint, uint8, uint16, uint32, uint64:
		return BytesCount(cast.ToUint64(val)), nil

	case float32, float64:
		return BytesCount(uint64(cast.ToFloat64(val))), nil
	}
	return 0, WrapKeyErr(key, fmt.Errorf("unsupported type for bytes count: %T", val))
}

// GetRateValue reads the key as a rate in N/(s|m|h) format.
func (va *ViperAdapter) GetRateValue(key string) (RateValue, error) {
	val := va.Get(key)
	if val == nil {
		return RateValue{}, nil
	}
	switch v := val.(type) {
	case RateValue:
		return v, nil
	case string:
		var rate RateValue
		if err := rate.unmarshal(v); err != nil {
			return RateValue{}, WrapKeyErr(key, err)
		}
		return rate, nil
	}
	return RateValue{}, WrapKeyErr(key, fmt.Errorf("unsupported type for rate: %T", val))
}

// WrapKeyErr annotates err with the config key it belongs to.
func (va *ViperAdapter) WrapKeyErr(key string, err error) error {
	return WrapKeyErr(key, err)
}
