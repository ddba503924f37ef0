/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v3"
)

// BytesCount is a size in bytes for use in config structs. It decodes from
// plain integers as well as human-readable strings such as "256M" or "1Gi".
type BytesCount uint64

// String implements fmt.Stringer.
func (b BytesCount) String() string {
	return bytefmt.ByteSize(uint64(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BytesCount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*b = BytesCount(num)
		return nil
	}
	parsed, err := parseBytesCount(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *BytesCount) UnmarshalYAML(value *yaml.Node) error {
	var num uint64
	if err := value.Decode(&num); err == nil {
		*b = BytesCount(num)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid byte size format: %v", value)
	}
	parsed, err := parseBytesCount(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *BytesCount) UnmarshalText(text []byte) error {
	return b.UnmarshalJSON(text)
}

func parseBytesCount(s string) (BytesCount, error) {
	v := strings.TrimSpace(s)

	// bytefmt does not know the k8s power-of-two suffixes, strip the trailing "i".
	for _, suffix := range [...]string{"Ki", "Mi", "Gi", "Ti", "Pi", "Ei"} {
		if strings.HasSuffix(v, suffix) {
			v = v[:len(v)-1]
			break
		}
	}

	num, err := bytefmt.ToBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size format (%s): %w", s, err)
	}
	return BytesCount(num), nil
}

// TimeDuration is a time.Duration for use in config structs. It decodes from
// plain integers (nanoseconds) as well as strings such as "1h30m".
type TimeDuration time.Duration

// String implements fmt.Stringer.
func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *TimeDuration) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if num, err := strconv.ParseInt(s, 10, 64); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*d = TimeDuration(num)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid time duration format (%s): %w", s, err)
	}
	*d = TimeDuration(dur)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	var num int64
	if err := value.Decode(&num); err == nil {
		if num < 0 {
			return fmt.Errorf("negative value is not allowed: %d", num)
		}
		*d = TimeDuration(num)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid time duration format: %v", value)
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid time duration format (%s): %w", s, err)
	}
	*d = TimeDuration(dur)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TimeDuration) UnmarshalText(text []byte) error {
	return d.UnmarshalJSON(text)
}

// RateValue is a request rate for use in config structs. It decodes from
// strings in N/(s|m|h) format, for example "10/s" or "1000/h".
type RateValue struct {
	Count    int
	Duration time.Duration
}

// String implements fmt.Stringer, producing the same N/(s|m|h) format.
func (r RateValue) String() string {
	if r.Duration == 0 && r.Count == 0 {
		return ""
	}
	var unit string
	switch r.Duration {
	case time.Second:
		unit = "s"
	case time.Minute:
		unit = "m"
	case time.Hour:
		unit = "h"
	default:
		unit = r.Duration.String()
	}
	return fmt.Sprintf("%d/%s", r.Count, unit)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RateValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return r.unmarshal(s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RateValue) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid rate format: %v", value)
	}
	return r.unmarshal(s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RateValue) UnmarshalText(text []byte) error {
	return r.unmarshal(string(text))
}

func (r *RateValue) unmarshal(rate string) error {
	if rate == "" {
		*r = RateValue{}
		return nil
	}
	badFormatErr := fmt.Errorf(
		"incorrect format for rate %q, should be N/(s|m|h), for example 10/s, 100/m, 1000/h", rate)
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) != 2 {
		return badFormatErr
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return badFormatErr
	}
	var dur time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		dur = time.Second
	case "m":
		dur = time.Minute
	case "h":
		dur = time.Hour
	default:
		return badFormatErr
	}
	*r = RateValue{Count: count, Duration: dur}
	return nil
}
