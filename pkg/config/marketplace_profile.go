package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MarketplaceProfile is an operator-editable, marketplace-scoped security
// policy: which upstream hosts a marketplace's outbound calls may reach,
// and how long PII-bearing responses (buyer info) may be retained
// downstream of this service. It is loaded from
// profile_<countryCode>.yaml files rather than compiled in, so operators
// can tighten or extend host allowlists without a rebuild.
type MarketplaceProfile struct {
	Code             string   `yaml:"code" json:"code"`
	AllowedHosts     []string `yaml:"allowed_hosts" json:"allowed_hosts"`
	DataResidency    string   `yaml:"data_residency,omitempty" json:"data_residency,omitempty"`
	PIIRetentionDays int      `yaml:"pii_retention_days,omitempty" json:"pii_retention_days,omitempty"`
}

// IsHostAllowed reports whether host is permitted for this marketplace.
// An empty allowlist means unrestricted, matching the zero-config case
// where no profile file exists for a marketplace.
func (p *MarketplaceProfile) IsHostAllowed(host string) bool {
	if len(p.AllowedHosts) == 0 {
		return true
	}
	for _, h := range p.AllowedHosts {
		if h == host {
			return true
		}
	}
	return false
}

// LoadMarketplaceProfile loads profile_<code>.yaml from profilesDir.
func LoadMarketplaceProfile(profilesDir, code string) (*MarketplaceProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load marketplace profile %q: %w", code, err)
	}

	var profile MarketplaceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse marketplace profile %q: %w", code, err)
	}
	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllMarketplaceProfiles loads every profile_*.yaml file in
// profilesDir, keyed by country code. A missing directory yields an
// empty map, not an error: profiles are optional hardening, not a
// startup requirement.
func LoadAllMarketplaceProfiles(profilesDir string) (map[string]*MarketplaceProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*MarketplaceProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile MarketplaceProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if profile.Code == "" {
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[strings.ToUpper(profile.Code)] = &profile
	}
	return profiles, nil
}
