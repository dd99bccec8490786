package internal

import (
	"encoding/asn1"
	"fmt"
	"math/bits"
	"os"
	"time"

	"github.com/sensiblebit/x509kit"
	"gopkg.in/yaml.v3"
)

// SubjectConfig represents the X.509 subject fields for certificates
type SubjectConfig struct {
	Country            []string `yaml:"country,omitempty"`            // C
	Province           []string `yaml:"province,omitempty"`           // ST
	Locality           []string `yaml:"locality,omitempty"`           // L
	Organization       []string `yaml:"organization,omitempty"`       // O
	OrganizationalUnit []string `yaml:"organizationalUnit,omitempty"` // OU
}

// Profile is one named certificate profile from the YAML file. CommonNames
// and BundleName control the directory a matching certificate is exported
// to; the remaining fields shape certificates created with the profile.
type Profile struct {
	Name         string         `yaml:"name"`
	CommonNames  []string       `yaml:"commonNames,omitempty"`
	BundleName   string         `yaml:"bundleName,omitempty"`
	Subject      *SubjectConfig `yaml:"subject,omitempty"`
	ValidityDays int            `yaml:"validityDays,omitempty"`
	Serial       int64          `yaml:"serial,omitempty"`
	CA           bool           `yaml:"ca,omitempty"`
	KeyUsages    []string       `yaml:"keyUsages,omitempty"`
}

// ProfilesYAML represents the full YAML structure with defaults and profiles
type ProfilesYAML struct {
	DefaultSubject *SubjectConfig `yaml:"defaultSubject,omitempty"`
	Profiles       []Profile      `yaml:"profiles"`
}

// LoadProfiles loads certificate profiles from the specified YAML file.
func LoadProfiles(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc ProfilesYAML
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Profiles) > 0 {
		for i := range doc.Profiles {
			if doc.Profiles[i].Subject == nil && doc.DefaultSubject != nil {
				defaultCopy := *doc.DefaultSubject
				doc.Profiles[i].Subject = &defaultCopy
			}
		}
		return doc.Profiles, nil
	}

	// Fall back to a bare list of profiles
	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing profiles %s: %w", path, err)
	}
	return profiles, nil
}

// FindProfile returns the profile with the given name.
func FindProfile(profiles []Profile, name string) (*Profile, error) {
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", name)
}

// BundleName returns the export directory name for a certificate CN.
// Matching is exact string comparison, so "*.example.com" in a profile only
// matches a certificate whose CN is literally "*.example.com".
func BundleName(cn string, profiles []Profile) string {
	for _, p := range profiles {
		for _, pattern := range p.CommonNames {
			if pattern == cn && p.BundleName != "" {
				return p.BundleName
			}
		}
	}
	return cn
}

// Apply writes the profile's subject, validity, serial, basic constraints
// and key usages into b. The common name is appended after the profile's
// subject fields.
func (p *Profile) Apply(b *x509kit.Builder, cn string) error {
	if p.Subject != nil {
		if err := p.Subject.apply(b.Subject()); err != nil {
			return err
		}
	}
	if cn != "" {
		if err := b.Subject().AppendCommonName(cn); err != nil {
			return fmt.Errorf("setting common name: %w", err)
		}
	}
	if p.Serial != 0 {
		b.SetSerialNumber(p.Serial)
	}
	if p.ValidityDays > 0 {
		b.SetValidityDuration(time.Duration(p.ValidityDays) * 24 * time.Hour)
	}
	if p.CA {
		b.ConstraintCA()
	} else {
		b.ConstraintNotCA()
	}
	if len(p.KeyUsages) > 0 {
		value, err := keyUsageValue(p.KeyUsages)
		if err != nil {
			return fmt.Errorf("profile %q: %w", p.Name, err)
		}
		b.AddExtensionDERData(x509kit.OIDExtensionKeyUsage, true, value)
	}
	return nil
}

func (s *SubjectConfig) apply(n *x509kit.Name) error {
	fields := []struct {
		values []string
		add    func(string) error
	}{
		{s.Country, n.AppendCountry},
		{s.Province, n.AppendProvince},
		{s.Locality, n.AppendLocality},
		{s.Organization, n.AppendOrganization},
		{s.OrganizationalUnit, n.AppendOrganizationalUnit},
	}
	for _, f := range fields {
		for _, v := range f.values {
			if err := f.add(v); err != nil {
				return fmt.Errorf("setting subject field %q: %w", v, err)
			}
		}
	}
	return nil
}

// keyUsageValue encodes every named usage into one key usage BIT STRING.
func keyUsageValue(names []string) ([]byte, error) {
	var flags byte
	for _, name := range names {
		ku, err := x509kit.ParseKeyUsage(name)
		if err != nil {
			return nil, err
		}
		flags |= 0x80 >> ku
	}
	return asn1.Marshal(asn1.BitString{Bytes: []byte{flags}, BitLength: 8 - bits.TrailingZeros8(flags)})
}
