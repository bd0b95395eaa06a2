package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()
	assert.Greater(t, registry.Size(), 15)
	assert.True(t, registry.HostKnown("www.facebook.com"))
	assert.True(t, registry.HostKnown("www.google-analytics.com"))
	assert.False(t, registry.HostKnown("example.com"))

	ga4, ok := registry.Get(PlatformGA4)
	require.True(t, ok)
	assert.Equal(t, "tid", ga4.PrimaryIDKey)
	assert.Equal(t, "en", ga4.EventNameKey)

	// The first table entry wins ties, so GA4 must come before sGTM.
	platforms := registry.Platforms()
	assert.Equal(t, PlatformGA4, platforms[0].Name)
}

func TestLoadRegistry(t *testing.T) {
	payload := `{
		"platforms": [
			{"name": "First", "hosts": ["first.example.com"], "paths": ["/a"], "pixelIdKey": "id", "eventNameKey": "ev"},
			{"name": "Second", "hosts": ["second.example.com"], "paths": ["/a"], "pixelIdKey": "id", "eventNameKey": "ev"}
		]
	}`
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	registry, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Size())
	assert.Equal(t, "First", registry.Platforms()[0].Name, "file order is preserved")
	assert.True(t, registry.HostKnown("second.example.com"))

	indicators := registry.Indicators()
	assert.NotEmpty(t, indicators.GA4Params, "absent indicators fall back to defaults")
}

func TestLoadRegistryErrors(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"platforms": []}`), 0o644))
	_, err = LoadRegistry(empty)
	assert.ErrorContains(t, err, "no platforms")
}
