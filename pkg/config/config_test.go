package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "venue-booking", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 500.0, cfg.Pricing.KidRate)
	assert.Equal(t, 0.18, cfg.Pricing.TaxRate)
	assert.Equal(t, "NIP", cfg.Booking.NumberPrefix)
}

func TestLoad_MalformedEnvFileFails(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOT A VALID LINE\n"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadWithPath_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT=9090\nPRICING_ADULT_RATE=999\n"), 0o600))

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 999.0, cfg.Pricing.AdultRate)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("bad port", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg := valid()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad tax rate", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg := valid()
		cfg.Pricing.TaxRate = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing data api url", func(t *testing.T) {
		t.Chdir(t.TempDir())
		cfg := valid()
		cfg.DataAPI.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})
}
