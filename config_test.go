package tiny

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DefaultsAreSetAndReadable(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.GetInt("compiler.optimize"))
	assert.Equal(t, 256, cfg.GetInt("vm.stack_size"))
	assert.Equal(t, 64, cfg.GetInt("vm.max_call_depth"))
	assert.Equal(t, 64, cfg.GetInt("vm.max_objects"))
	assert.Equal(t, 2.0, cfg.GetFloat("vm.gc_growth_factor"))
}

func TestConfig_SetIntThenGetIntRoundTrips(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("vm.stack_size", 4096)
	assert.Equal(t, 4096, cfg.GetInt("vm.stack_size"))
}

func TestConfig_SetBoolAndSetStringRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.SetBool("debug.trace", true)
	cfg.SetString("host.name", "embedder")

	assert.True(t, cfg.GetBool("debug.trace"))
	assert.Equal(t, "embedder", cfg.GetString("host.name"))
}

func TestConfig_GetUndefinedSettingPanics(t *testing.T) {
	cfg := NewConfig()
	assert.Panics(t, func() { cfg.GetInt("no.such.setting") })
}

func TestConfig_GetWrongTypePanics(t *testing.T) {
	cfg := NewConfig()
	cfg.SetInt("vm.stack_size", 256)
	assert.Panics(t, func() { cfg.GetFloat("vm.stack_size") })
}

func TestConfig_ReassigningDifferentTypeToSamePathReplacesValue(t *testing.T) {
	cfg := NewConfig()
	// SetInt always constructs a fresh *cfgVal with cfgValUndefined as its
	// starting type, so re-setting a path under a different type succeeds
	// at the path level; assignType only panics on a single cfgVal reused
	// across two different types, which SetInt/SetFloat/etc. never do.
	cfg.SetInt("x", 1)
	cfg.SetString("x", "now a string")
	assert.Equal(t, "now a string", cfg.GetString("x"))
}
