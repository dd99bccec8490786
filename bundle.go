package x509kit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/breml/rootcerts/embedded"
)

// BundleResult holds a leaf and the issuer chain resolved for it.
type BundleResult struct {
	// Leaf is the end-entity certificate.
	Leaf *CapturedCertificate
	// Intermediates are the issuers between the leaf and the root, nearest
	// first.
	Intermediates []*CapturedCertificate
	// Root is the self-issued end of the chain, when one was found.
	Root *CapturedCertificate
	// Warnings are non-fatal issues found while resolving.
	Warnings []string
}

// Chain returns the leaf followed by the intermediates and, if present, the
// root.
func (r *BundleResult) Chain() []*CapturedCertificate {
	chain := append([]*CapturedCertificate{r.Leaf}, r.Intermediates...)
	if r.Root != nil {
		chain = append(chain, r.Root)
	}
	return chain
}

// BundleOptions configures Bundle.
type BundleOptions struct {
	// Candidates are certificates that may issue the leaf or each other.
	Candidates []*CapturedCertificate
	// MozillaRoots adds the embedded Mozilla root set to the candidates.
	// The roots only extend the search; nothing is treated as trusted.
	MozillaRoots bool
	// ExpiryWindow triggers a warning for certificates expiring within it.
	ExpiryWindow time.Duration
}

// DefaultBundleOptions returns options with a 30 day expiry window.
func DefaultBundleOptions() BundleOptions {
	return BundleOptions{ExpiryWindow: 30 * 24 * time.Hour}
}

var mozillaRoots = sync.OnceValues(func() ([]*CapturedCertificate, error) {
	var roots []*CapturedCertificate
	for block := range pemBlocks([]byte(embedded.MozillaCACertificatesPEM()), []string{pemTypeCertificate}) {
		cert, err := ParseCapturedDER(block.Bytes)
		if err != nil {
			slog.Debug("skipping embedded root", "error", err)
			continue
		}
		roots = append(roots, cert)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: no embedded Mozilla roots could be parsed", ErrMalformed)
	}
	return roots, nil
})

// MozillaRoots returns the embedded Mozilla root certificates that decode
// cleanly. The slice is shared; do not modify it.
func MozillaRoots() ([]*CapturedCertificate, error) {
	return mozillaRoots()
}

// Bundle resolves the issuer chain of leaf from the candidate set by
// signature verification. An incomplete chain is reported as a warning, not
// an error.
func Bundle(leaf *CapturedCertificate, opts BundleOptions) (*BundleResult, error) {
	candidates := opts.Candidates
	var warnings []string
	leaf, candidates, warnings = detectAndSwapLeaf(leaf, candidates)

	if opts.MozillaRoots {
		roots, err := MozillaRoots()
		if err != nil {
			return nil, err
		}
		candidates = append(append([]*CapturedCertificate(nil), candidates...), roots...)
	}

	result := &BundleResult{Leaf: leaf, Warnings: warnings}
	chain := leaf.ResolveSigningChain(candidates)
	if n := len(chain); n > 0 && chain[n-1].SubjectIsIssuer() {
		result.Root = chain[n-1]
		chain = chain[:n-1]
	}
	result.Intermediates = chain

	if result.Root == nil && !leaf.SubjectIsIssuer() {
		last := leaf
		if len(chain) > 0 {
			last = chain[len(chain)-1]
		}
		issuer, _ := last.IssuerCommonName()
		result.Warnings = append(result.Warnings, fmt.Sprintf("chain is incomplete: no candidate signed %q (issuer %q)", displayName(last), issuer))
	}

	full := result.Chain()
	result.Warnings = append(result.Warnings, checkSHA1Signatures(full)...)
	result.Warnings = append(result.Warnings, checkExpiryWarnings(full, opts.ExpiryWindow)...)
	return result, nil
}

// detectAndSwapLeaf handles input given root-first: when the supposed leaf
// is a CA and exactly one candidate is not, the two trade places.
func detectAndSwapLeaf(leaf *CapturedCertificate, extras []*CapturedCertificate) (*CapturedCertificate, []*CapturedCertificate, []string) {
	if isCA, _, _ := leaf.BasicConstraints(); !isCA {
		return leaf, extras, nil
	}

	idx := -1
	for i, c := range extras {
		if isCA, _, _ := c.BasicConstraints(); !isCA {
			if idx >= 0 {
				return leaf, extras, nil
			}
			idx = i
		}
	}
	if idx < 0 {
		return leaf, extras, nil
	}

	realLeaf := extras[idx]
	swapped := make([]*CapturedCertificate, 0, len(extras))
	swapped = append(swapped, extras[:idx]...)
	swapped = append(swapped, extras[idx+1:]...)
	swapped = append(swapped, leaf)

	return realLeaf, swapped, []string{
		fmt.Sprintf("reversed chain detected: swapped CA %q with leaf %q", displayName(leaf), displayName(realLeaf)),
	}
}

func checkSHA1Signatures(chain []*CapturedCertificate) []string {
	var warnings []string
	for _, cert := range chain {
		if alg, err := cert.SignatureAlgorithm(); err == nil && alg == SHA1WithRSA {
			warnings = append(warnings, fmt.Sprintf("certificate %q uses deprecated SHA-1 signature algorithm (%s)", displayName(cert), alg))
		}
	}
	return warnings
}

func checkExpiryWarnings(chain []*CapturedCertificate, window time.Duration) []string {
	var warnings []string
	now := time.Now()
	for _, cert := range chain {
		notAfter := cert.NotAfter()
		switch {
		case now.After(notAfter):
			warnings = append(warnings, fmt.Sprintf("certificate %q has expired (not after: %s)", displayName(cert), notAfter.UTC().Format(time.DateOnly)))
		case window > 0 && now.Add(window).After(notAfter):
			warnings = append(warnings, fmt.Sprintf("certificate %q expires within %s (not after: %s)", displayName(cert), window, notAfter.UTC().Format(time.DateOnly)))
		}
	}
	return warnings
}

// displayName returns the subject common name, or the full subject when
// there is none.
func displayName(c *CapturedCertificate) string {
	if cn, ok := c.SubjectCommonName(); ok {
		return cn
	}
	return c.cert.TBSCertificate.Subject.String()
}
