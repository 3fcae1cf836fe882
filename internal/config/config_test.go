package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerAppliesDefaults(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, "./catalog", cfg.Catalog.Path)
	assert.Equal(t, "EUCAST", cfg.Catalog.DefaultSource)
	assert.Equal(t, 4096, cfg.Terminology.NormalizationCacheSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestManagerValidateRejectsEmptyCatalogPath(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	m.config.Catalog.Path = ""

	assert.Error(t, m.Validate())
}

func TestManagerValidateRejectsUnknownLogLevel(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	m.config.Logging.Level = "verbose"

	assert.Error(t, m.Validate())
}

func TestManagerValidateRequiresOracleTimeoutWhenOracleConfigured(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	m.config.Terminology.OracleBaseURL = "https://terminology.example.org"
	m.config.Terminology.OracleTimeout = 0

	assert.Error(t, m.Validate())
}

func TestManagerValidatePasses(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)
	assert.NoError(t, m.Validate())
}
