package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/spapi-core/pkg/config"
)

func writeProfile(t *testing.T, dir, code, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "profile_"+code+".yaml"), []byte(body), 0o600))
}

func TestLoadMarketplaceProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "gb", "code: gb\nallowed_hosts:\n  - sellingpartnerapi-eu.amazon.com\npii_retention_days: 30\n")

	p, err := config.LoadMarketplaceProfile(dir, "gb")
	require.NoError(t, err)
	assert.Equal(t, "gb", p.Code)
	assert.Equal(t, 30, p.PIIRetentionDays)
	assert.True(t, p.IsHostAllowed("sellingpartnerapi-eu.amazon.com"))
	assert.False(t, p.IsHostAllowed("evil.example.com"))
}

func TestUnrestrictedProfileAllowsAnyHost(t *testing.T) {
	p := &config.MarketplaceProfile{Code: "us"}
	assert.True(t, p.IsHostAllowed("anything"))
}

func TestLoadAllMarketplaceProfilesEmptyDirIsNotError(t *testing.T) {
	dir := t.TempDir()
	profiles, err := config.LoadAllMarketplaceProfiles(dir)
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadAllMarketplaceProfilesKeyedByUppercaseCode(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "de", "allowed_hosts:\n  - sellingpartnerapi-eu.amazon.com\n")

	profiles, err := config.LoadAllMarketplaceProfiles(dir)
	require.NoError(t, err)
	require.Contains(t, profiles, "DE")
}
