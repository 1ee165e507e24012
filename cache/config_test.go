package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name          string
		props         map[string]any
		opts          []ConfigOption
		wantSize      int64
		wantSizeOK    bool
		wantRetention time.Duration
		wantRetOK     bool
	}{
		{
			name:          "unbounded size default retention",
			props:         map[string]any{SizeKey: -1},
			wantRetention: 600000 * time.Millisecond,
			wantRetOK:     true,
		},
		{
			name:          "zero size is a valid bound",
			props:         map[string]any{SizeKey: 0},
			wantSizeOK:    true,
			wantRetention: DefaultRetention,
			wantRetOK:     true,
		},
		{
			name:       "infinite retention",
			props:      map[string]any{SizeKey: 1024, RetentionKey: -1},
			wantSize:   1024,
			wantSizeOK: true,
		},
		{
			name:          "explicit bounds",
			props:         map[string]any{SizeKey: 1 << 20, RetentionKey: 1500},
			wantSize:      1 << 20,
			wantSizeOK:    true,
			wantRetention: 1500 * time.Millisecond,
			wantRetOK:     true,
		},
		{
			name:          "numeric strings and floats",
			props:         map[string]any{SizeKey: "2048", RetentionKey: 30000.0},
			wantSize:      2048,
			wantSizeOK:    true,
			wantRetention: 30 * time.Second,
			wantRetOK:     true,
		},
		{
			name:          "default size applies when absent",
			props:         map[string]any{},
			opts:          []ConfigOption{WithDefaultSize(4096)},
			wantSize:      4096,
			wantSizeOK:    true,
			wantRetention: DefaultRetention,
			wantRetOK:     true,
		},
		{
			name:          "explicit size wins over default",
			props:         map[string]any{SizeKey: 10},
			opts:          []ConfigOption{WithDefaultSize(4096)},
			wantSize:      10,
			wantSizeOK:    true,
			wantRetention: DefaultRetention,
			wantRetOK:     true,
		},
		{
			name:          "unbounded default",
			props:         nil,
			opts:          []ConfigOption{WithDefaultSize(-1)},
			wantRetention: DefaultRetention,
			wantRetOK:     true,
		},
		{
			name:          "whole float and numeric string",
			props:         map[string]any{SizeKey: 1024.0, RetentionKey: "60000"},
			wantSize:      1024,
			wantSizeOK:    true,
			wantRetention: time.Minute,
			wantRetOK:     true,
		},
		{
			name:          "unrelated keys are ignored",
			props:         map[string]any{SizeKey: 1, "segment.bytes": 99},
			wantSize:      1,
			wantSizeOK:    true,
			wantRetention: DefaultRetention,
			wantRetOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.props, tt.opts...)
			require.NoError(t, err)

			size, ok := cfg.Size()
			assert.Equal(t, tt.wantSizeOK, ok)
			if ok {
				assert.Equal(t, tt.wantSize, size)
			}

			retention, ok := cfg.Retention()
			assert.Equal(t, tt.wantRetOK, ok)
			if ok {
				assert.Equal(t, tt.wantRetention, retention)
			}
		})
	}
}

func TestNewConfig_Errors(t *testing.T) {
	t.Run("size below -1", func(t *testing.T) {
		_, err := NewConfig(map[string]any{SizeKey: -2})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, SizeKey, cfgErr.Key)
		assert.Equal(t, int64(-2), cfgErr.Value)
	})

	t.Run("retention below -1", func(t *testing.T) {
		_, err := NewConfig(map[string]any{SizeKey: 1, RetentionKey: -5})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("invalid default size", func(t *testing.T) {
		_, err := NewConfig(nil, WithDefaultSize(-3))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := NewConfig(map[string]any{SizeKey: "lots"})
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("lossy values", func(t *testing.T) {
		tests := []struct {
			name  string
			key   string
			value any
		}{
			{"negative fractional size", SizeKey, -1.5},
			{"fractional size", SizeKey, 1.9},
			{"boolean size", SizeKey, true},
			{"fractional retention", RetentionKey, 2.5},
			{"boolean retention", RetentionKey, false},
			{"size beyond int64", SizeKey, 1e19},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				props := map[string]any{SizeKey: 1}
				props[tt.key] = tt.value

				_, err := NewConfig(props)
				assert.ErrorIs(t, err, ErrInvalidConfiguration)

				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.key, cfgErr.Key)
				assert.Equal(t, tt.value, cfgErr.Value)
			})
		}
	})

	t.Run("missing size", func(t *testing.T) {
		_, err := NewConfig(map[string]any{RetentionKey: 1000})
		assert.ErrorIs(t, err, ErrMissingRequiredConfiguration)
		assert.NotErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestNewConfig_FromYAML(t *testing.T) {
	doc := `
cache:
  size: 1048576
  retention.ms: -1
`
	var raw struct {
		Cache map[string]any `yaml:"cache"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))

	cfg, err := NewConfig(raw.Cache)
	require.NoError(t, err)

	size, ok := cfg.Size()
	assert.True(t, ok)
	assert.Equal(t, int64(1048576), size)

	_, ok = cfg.Retention()
	assert.False(t, ok)
}

func TestConfig_ZeroValue(t *testing.T) {
	var cfg Config
	_, ok := cfg.Size()
	assert.False(t, ok)
	_, ok = cfg.Retention()
	assert.False(t, ok)
	assert.Equal(t, "size=unbounded retention=infinite", cfg.String())
}
