package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadLayersFlagsOverDefaults(t *testing.T) {
	v := viper.New()
	v.Set("store-policy", "adaptive")
	v.Set("native-addr", ":9999")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, PolicyAdaptive, cfg.StorePolicy)
	assert.Equal(t, ":9999", cfg.NativeAddr)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().CleanupInterval, cfg.CleanupInterval)
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	v := viper.New()
	v.Set("store-policy", "bogus")

	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidateRejectsBadInboxSize(t *testing.T) {
	cfg := Default()
	cfg.InboxSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyNativeAddr(t *testing.T) {
	cfg := Default()
	cfg.NativeAddr = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeCapacityHint(t *testing.T) {
	cfg := Default()
	cfg.CapacityHint = -1
	assert.Error(t, cfg.Validate())
}

func TestDefaultAdaptiveBoundsAreSane(t *testing.T) {
	cfg := Default()
	assert.Less(t, cfg.AdaptiveMin, cfg.AdaptiveMax)
	assert.Greater(t, cfg.AdaptiveMaxOps, 0)
}
