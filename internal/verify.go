package internal

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sensiblebit/x509kit"
)

// VerifyInput holds the parsed certificate data and verification options.
type VerifyInput struct {
	Cert           *x509kit.CapturedCertificate
	Key            *x509kit.KeyPair
	ExtraCerts     []*x509kit.CapturedCertificate
	CheckKeyMatch  bool
	CheckChain     bool
	MozillaRoots   bool
	ExpiryDuration time.Duration
	Now            time.Time
}

// ChainCert holds display information for one certificate in the chain.
type ChainCert struct {
	Subject string `json:"subject"`
	Expiry  string `json:"expiry"`
	SKI     string `json:"ski"`
	IsRoot  bool   `json:"is_root,omitempty"`
}

// VerifyResult holds the results of certificate verification checks.
type VerifyResult struct {
	Subject    string      `json:"subject"`
	NotBefore  string      `json:"not_before"`
	NotAfter   string      `json:"not_after"`
	SKI        string      `json:"ski"`
	Encoding   string      `json:"encoding"`
	Valid      bool        `json:"valid_now"`
	KeyMatch   *bool       `json:"key_match,omitempty"`
	KeyInfo    string      `json:"key_info,omitempty"`
	ChainValid *bool       `json:"chain_valid,omitempty"`
	ChainErr   string      `json:"chain_error,omitempty"`
	Chain      []ChainCert `json:"chain,omitempty"`
	Expiry     *bool       `json:"expires_within,omitempty"`
	ExpiryInfo string      `json:"expiry_info,omitempty"`
	Warnings   []string    `json:"warnings,omitempty"`
	Errors     []string    `json:"errors,omitempty"`

	now time.Time
}

// VerifyCert checks the validity window and, as requested, key match, the
// issuer chain by signature, and upcoming expiry.
func VerifyCert(input *VerifyInput) (*VerifyResult, error) {
	cert := input.Cert
	if cert == nil {
		return nil, fmt.Errorf("no certificate to verify")
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := &VerifyResult{
		Subject:   cert.Subject().String(),
		NotBefore: cert.NotBefore().UTC().Format(time.RFC3339),
		NotAfter:  cert.NotAfter().UTC().Format(time.RFC3339),
		SKI:       x509kit.ColonHex(x509kit.ComputeSKI(cert.PublicKeyData())),
		Encoding:  cert.Encoding().String(),
		Valid:     cert.TimeConstraintsValid(now),
		now:       now,
	}
	if !result.Valid {
		result.Errors = append(result.Errors, fmt.Sprintf("certificate is not valid at %s", now.UTC().Format(time.RFC3339)))
	}

	if input.CheckKeyMatch && input.Key != nil {
		match := keyMatchesCert(input.Key, cert)
		result.KeyMatch = &match
		result.KeyInfo = x509kit.KeyDescription(input.Key)
		if !match {
			result.Errors = append(result.Errors, "key does not match certificate")
		}
	}

	if input.CheckChain {
		bundle, err := x509kit.Bundle(cert, x509kit.BundleOptions{
			Candidates:   input.ExtraCerts,
			MozillaRoots: input.MozillaRoots,
		})
		if err != nil {
			return nil, fmt.Errorf("resolving chain: %w", err)
		}
		valid := bundle.Root != nil || selfSigned(bundle.Leaf)
		result.ChainValid = &valid
		if !valid {
			result.ChainErr = "no root reached by signature verification"
			result.Errors = append(result.Errors, "chain validation: "+result.ChainErr)
		}
		result.Chain = buildChainDisplay(bundle)
		result.Warnings = bundle.Warnings
	}

	if input.ExpiryDuration > 0 {
		expires := now.Add(input.ExpiryDuration).After(cert.NotAfter())
		result.Expiry = &expires
		if expires {
			result.ExpiryInfo = fmt.Sprintf("certificate expires within %s (not after: %s)", input.ExpiryDuration, result.NotAfter)
			result.Errors = append(result.Errors, result.ExpiryInfo)
		} else {
			result.ExpiryInfo = fmt.Sprintf("certificate does not expire within %s", input.ExpiryDuration)
		}
	}

	return result, nil
}

// keyMatchesCert compares the key pair's public key with the certificate's
// subject public key, algorithm included.
func keyMatchesCert(kp *x509kit.KeyPair, cert *x509kit.CapturedCertificate) bool {
	keyAlg, err := kp.KeyAlgorithm()
	if err != nil {
		return false
	}
	certAlg, err := cert.KeyAlgorithm()
	if err != nil || keyAlg.Kind != certAlg.Kind || keyAlg.Curve != certAlg.Curve {
		return false
	}
	return bytes.Equal(kp.PublicKeyData(), cert.PublicKeyData())
}

// selfSigned reports whether cert is self-issued and its signature verifies
// with its own key.
func selfSigned(cert *x509kit.CapturedCertificate) bool {
	return cert.SubjectIsIssuer() && cert.VerifySignedByCertificate(cert) == nil
}

// buildChainDisplay creates the display chain from a BundleResult.
func buildChainDisplay(bundle *x509kit.BundleResult) []ChainCert {
	var chain []ChainCert
	for _, c := range bundle.Chain() {
		chain = append(chain, ChainCert{
			Subject: c.Subject().String(),
			Expiry:  c.NotAfter().UTC().Format(time.DateOnly),
			SKI:     x509kit.ColonHex(x509kit.ComputeSKI(c.PublicKeyData())),
			IsRoot:  c == bundle.Root,
		})
	}
	return chain
}

// daysUntil returns the number of days from now until t, rounded down.
func daysUntil(now, t time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}

// FormatVerifyResult formats a verify result as human-readable text.
func FormatVerifyResult(r *VerifyResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Certificate: %s\n", r.Subject)

	now := r.now
	if now.IsZero() {
		now = time.Now()
	}
	notAfter, err := time.Parse(time.RFC3339, r.NotAfter)
	if err == nil {
		fmt.Fprintf(&sb, "  Not After: %s (%d days)\n", r.NotAfter, daysUntil(now, notAfter))
	} else {
		fmt.Fprintf(&sb, "  Not After: %s\n", r.NotAfter)
	}

	fmt.Fprintf(&sb, "        SKI: %s\n", r.SKI)
	fmt.Fprintf(&sb, "   Encoding: %s\n", r.Encoding)
	if r.Valid {
		sb.WriteString("   Validity: OK\n")
	} else {
		fmt.Fprintf(&sb, "   Validity: OUTSIDE WINDOW (not before %s)\n", r.NotBefore)
	}

	if r.KeyMatch != nil {
		if *r.KeyMatch {
			fmt.Fprintf(&sb, "  Key Match: OK (%s)\n", r.KeyInfo)
		} else {
			fmt.Fprintf(&sb, "  Key Match: MISMATCH (%s)\n", r.KeyInfo)
		}
	}

	if r.ChainValid != nil {
		if *r.ChainValid {
			sb.WriteString("      Chain: VALID\n")
		} else {
			fmt.Fprintf(&sb, "      Chain: INVALID (%s)\n", r.ChainErr)
		}
	}

	if len(r.Chain) > 0 {
		sb.WriteString("\nChain:\n")
		for i, c := range r.Chain {
			tag := ""
			if c.IsRoot {
				tag = "  [root]"
			}
			fmt.Fprintf(&sb, "  %d: %s  (expires %s)%s\n", i, c.Subject, c.Expiry, tag)
			fmt.Fprintf(&sb, "     SKI: %s\n", c.SKI)
		}
	}

	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "  Warning: %s\n", w)
	}

	if r.Expiry != nil {
		fmt.Fprintf(&sb, "\n  Expiry: %s\n", r.ExpiryInfo)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&sb, "\nVerification FAILED (%d error(s))\n", len(r.Errors))
	} else {
		sb.WriteString("\nVerification OK\n")
	}

	return sb.String()
}
