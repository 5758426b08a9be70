package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikd/orderdesk/internal/common"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadAppliesOverrides(t *testing.T) {
	v := viper.New()
	v.Set("pricing.stability_threshold_pct", 3.5)
	v.Set("pricing.margin_pct", 40.0)
	v.Set("dedup.lookback_days", 14)
	v.Set("matching.fuzzy_threshold", 0.8)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 3.5, cfg.Pricing.StabilityThresholdPct)
	assert.Equal(t, 40.0, cfg.Pricing.MarginPct)
	assert.Equal(t, 14*24*time.Hour, cfg.Dedup.LookbackWindow)
	assert.Equal(t, 0.8, cfg.Matching.FuzzyThreshold)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.Pricing.MinReferenceSales)
	assert.Equal(t, 30*24*time.Hour, Default().Dedup.LookbackWindow)
}

func TestLoadRejectsInvalidOverrides(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"fuzzy threshold above one", "matching.fuzzy_threshold", 1.5},
		{"zero lookback", "dedup.lookback_days", 0},
		{"negative margin", "pricing.margin_pct", -10.0},
		{"zero stability threshold", "pricing.stability_threshold_pct", 0.0},
		{"zero reference sales", "pricing.min_reference_sales", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := Load(v)
			require.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadRejectsEmptyIntlPrefixes(t *testing.T) {
	v := viper.New()
	v.Set("extract.intl_prefixes", []string{})
	_, err := Load(v)
	require.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("ORDERDESK_TEST_DIR", "/tmp/orderdesk")

	assert.Equal(t, "/tmp/orderdesk/data.db", ExpandPath("$ORDERDESK_TEST_DIR/data.db"))
	assert.Equal(t, "", ExpandPath(""))
	assert.NotContains(t, ExpandPath("~/orderdesk.db"), "~")
}
