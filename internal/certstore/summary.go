package certstore

import (
	"time"

	"github.com/sensiblebit/x509kit"
)

// ScanSummaryInput holds parameters for ScanSummary.
type ScanSummaryInput struct {
	// Now is the reference time for expiry; zero means time.Now().
	Now time.Time

	// ExtraIssuers are consulted alongside the catalogue when deciding
	// whether a certificate chains, typically MozillaRoots.
	ExtraIssuers []*x509kit.CapturedCertificate
}

// ScanSummary holds aggregate counts from a scan operation. A certificate is
// unchained when no catalogued or extra certificate verifiably signed it.
type ScanSummary struct {
	Roots                  int `json:"roots"`
	Intermediates          int `json:"intermediates"`
	Leaves                 int `json:"leaves"`
	Keys                   int `json:"keys"`
	Matched                int `json:"key_cert_pairs"`
	ExpiredRoots           int `json:"expired_roots"`
	ExpiredIntermediates   int `json:"expired_intermediates"`
	ExpiredLeaves          int `json:"expired_leaves"`
	UnchainedIntermediates int `json:"unchained_intermediates"`
	UnchainedLeaves        int `json:"unchained_leaves"`
}
