package cache

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	// SizeKey bounds the total cached bytes. -1 means unbounded.
	SizeKey = "size"
	// RetentionKey bounds the age of cached entries in milliseconds.
	// -1 means entries never expire.
	RetentionKey = "retention.ms"

	// DefaultRetention applies when RetentionKey is absent.
	DefaultRetention = 10 * time.Minute

	unbounded = -1
)

var (
	// ErrInvalidConfiguration matches *ConfigError.
	ErrInvalidConfiguration = errors.New("invalid cache configuration")

	// ErrMissingRequiredConfiguration is returned when SizeKey is absent and
	// no default size was supplied.
	ErrMissingRequiredConfiguration = errors.New("missing required cache configuration")
)

// ConfigError reports a cache configuration value that cannot be used.
type ConfigError struct {
	Key   string
	Value any
	cause error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid cache configuration: %v", e.cause)
	}
	if e.cause != nil {
		return fmt.Sprintf("invalid value %v for cache configuration %q: %v", e.Value, e.Key, e.cause)
	}
	return fmt.Sprintf("invalid value %v for cache configuration %q: must be -1 or non-negative", e.Value, e.Key)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrInvalidConfiguration) hold.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// Config bounds a chunk cache by total size and entry age.
//
// A Config is immutable once built. The zero Config places no bounds.
type Config struct {
	size             int64
	sizeBounded      bool
	retention        time.Duration
	retentionBounded bool
}

// ConfigOption supplies call-site defaults to NewConfig.
type ConfigOption func(*configOptions)

type configOptions struct {
	defaultSize *int64
}

// WithDefaultSize is used when the mapping has no SizeKey.
// Pass -1 to default to an unbounded cache.
func WithDefaultSize(size int64) ConfigOption {
	return func(o *configOptions) {
		o.defaultSize = &size
	}
}

// NewConfig builds a Config from a string-keyed mapping such as a decoded
// YAML section or a flat properties map. Values may be integers, floats
// without fraction or numeric strings; booleans and fractional numbers are
// rejected. Unrelated keys are ignored.
func NewConfig(props map[string]any, opts ...ConfigOption) (Config, error) {
	var o configOptions
	for _, opt := range opts {
		opt(&o)
	}

	size, err := decodeBound(props, SizeKey)
	if err != nil {
		return Config{}, err
	}
	retention, err := decodeBound(props, RetentionKey)
	if err != nil {
		return Config{}, err
	}

	if size == nil {
		size = o.defaultSize
	}
	if size == nil {
		return Config{}, fmt.Errorf("%w: %q", ErrMissingRequiredConfiguration, SizeKey)
	}
	if *size < unbounded {
		return Config{}, &ConfigError{Key: SizeKey, Value: *size}
	}

	retentionMs := DefaultRetention.Milliseconds()
	if retention != nil {
		retentionMs = *retention
	}
	if retentionMs < unbounded {
		return Config{}, &ConfigError{Key: RetentionKey, Value: retentionMs}
	}

	return Config{
		size:             *size,
		sizeBounded:      *size != unbounded,
		retention:        time.Duration(retentionMs) * time.Millisecond,
		retentionBounded: retentionMs != unbounded,
	}, nil
}

// decodeBound decodes props[key] into an int64. A missing or null key yields
// nil.
func decodeBound(props map[string]any, key string) (*int64, error) {
	v, ok := props[key]
	if !ok || v == nil {
		return nil, nil
	}

	var out int64
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       rejectLossyNumbers,
		Result:           &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, &ConfigError{Key: key, Value: v, cause: err}
	}
	return &out, nil
}

// rejectLossyNumbers stops weak decoding from turning booleans into 0/1 and
// truncating fractional floats.
func rejectLossyNumbers(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int64 {
		return data, nil
	}

	switch from.Kind() {
	case reflect.Bool:
		return nil, fmt.Errorf("boolean %v is not a whole number", data)
	case reflect.Float32, reflect.Float64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("%v is not a whole number", data)
		}
	}
	return data, nil
}

// Size returns the size bound in bytes. ok is false when the cache is
// unbounded.
func (c Config) Size() (bytes int64, ok bool) {
	return c.size, c.sizeBounded
}

// Retention returns the maximum entry age. ok is false when entries never
// expire.
func (c Config) Retention() (d time.Duration, ok bool) {
	return c.retention, c.retentionBounded
}

func (c Config) String() string {
	size, retention := "unbounded", "infinite"
	if c.sizeBounded {
		size = fmt.Sprintf("%d", c.size)
	}
	if c.retentionBounded {
		retention = c.retention.String()
	}
	return fmt.Sprintf("size=%s retention=%s", size, retention)
}
