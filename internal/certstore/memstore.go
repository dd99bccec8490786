package certstore

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sensiblebit/x509kit"
)

// CertRecord holds a captured certificate and its computed metadata.
type CertRecord struct {
	Cert      *x509kit.CapturedCertificate
	SKI       string // hex-encoded RFC 7093 SKI of the subject key
	CertType  string // CertTypeRoot, CertTypeIntermediate or CertTypeLeaf
	KeyType   string // e.g. "RSA 2048 bits", "ECDSA P-256"
	NotAfter  time.Time
	NotBefore time.Time
	Source    string // file or virtual path that contributed this cert
}

// KeyRecord holds a key pair and its computed metadata.
type KeyRecord struct {
	Key       *x509kit.KeyPair
	SKI       string // hex-encoded RFC 7093 SKI
	KeyType   string // "RSA", "ECDSA", "ED25519"
	BitLength int
	Source    string
}

// MemStore is an in-memory catalogue of certificates and key pairs that
// implements Handler. Certificates are deduplicated by their captured bytes
// and kept in insertion order; keys are deduplicated by SKI.
type MemStore struct {
	certs      []*CertRecord
	certsByKey map[string]*CertRecord   // captured bytes → cert
	certsBySKI map[string][]*CertRecord // SKI → all certs with that key
	keys       map[string]*KeyRecord    // SKI → key
	keyOrder   []string
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		certsByKey: make(map[string]*CertRecord),
		certsBySKI: make(map[string][]*CertRecord),
		keys:       make(map[string]*KeyRecord),
	}
}

func skiHex(publicKey []byte) string {
	return hex.EncodeToString(x509kit.ComputeSKI(publicKey))
}

// HandleCertificate stores the certificate unless identical bytes are
// already catalogued. Certificates that share a key (renewals) are all
// retained.
func (s *MemStore) HandleCertificate(cert *x509kit.CapturedCertificate, source string) error {
	if cert == nil {
		return errors.New("certificate is nil")
	}
	if _, exists := s.certsByKey[cert.Key()]; exists {
		return nil
	}

	ski := skiHex(cert.PublicKeyData())
	rec := &CertRecord{
		Cert:      cert,
		SKI:       ski,
		CertType:  CertificateType(cert),
		KeyType:   x509kit.KeyDescription(cert),
		NotAfter:  cert.NotAfter(),
		NotBefore: cert.NotBefore(),
		Source:    source,
	}
	s.certs = append(s.certs, rec)
	s.certsByKey[cert.Key()] = rec
	s.certsBySKI[ski] = append(s.certsBySKI[ski], rec)
	return nil
}

// HandleKey stores the key pair under its SKI. The first key seen for a SKI
// wins; later duplicates are ignored.
func (s *MemStore) HandleKey(kp *x509kit.KeyPair, source string) error {
	if kp == nil {
		return errors.New("key pair is nil")
	}
	alg, err := kp.KeyAlgorithm()
	if err != nil {
		return fmt.Errorf("key algorithm: %w", err)
	}
	ski := skiHex(kp.PublicKeyData())
	if _, exists := s.keys[ski]; exists {
		return nil
	}

	rec := &KeyRecord{
		Key:       kp,
		SKI:       ski,
		KeyType:   alg.String(),
		BitLength: keyBitLength(kp, alg),
		Source:    source,
	}
	s.keys[ski] = rec
	s.keyOrder = append(s.keyOrder, ski)
	return nil
}

func keyBitLength(kp *x509kit.KeyPair, alg x509kit.KeyAlgorithm) int {
	switch alg.Kind {
	case x509kit.KeyKindRSA:
		if signer := kp.Signer(); signer != nil {
			if pub, ok := signer.Public().(*rsa.PublicKey); ok {
				return pub.N.BitLen()
			}
		}
	case x509kit.KeyKindECDSA:
		if signer := kp.Signer(); signer != nil {
			if pub, ok := signer.Public().(*ecdsa.PublicKey); ok {
				return pub.Curve.Params().BitSize
			}
		}
	case x509kit.KeyKindEd25519:
		return 256
	}
	return 0
}

// GetCert returns the certificate with the latest NotAfter for the given
// SKI, or nil if not found.
func (s *MemStore) GetCert(ski string) *CertRecord {
	certs := s.certsBySKI[ski]
	if len(certs) == 0 {
		return nil
	}
	latest := certs[0]
	for _, c := range certs[1:] {
		if c.NotAfter.After(latest.NotAfter) {
			latest = c
		}
	}
	return latest
}

// CertsBySKI returns every certificate for the given key, newest first.
func (s *MemStore) CertsBySKI(ski string) []*CertRecord {
	result := slices.Clone(s.certsBySKI[ski])
	slices.SortStableFunc(result, func(a, b *CertRecord) int {
		return b.NotAfter.Compare(a.NotAfter)
	})
	return result
}

// GetKey returns the key record for the given SKI, or nil.
func (s *MemStore) GetKey(ski string) *KeyRecord {
	return s.keys[ski]
}

// AllCertsFlat returns all certificate records in insertion order.
func (s *MemStore) AllCertsFlat() []*CertRecord {
	return slices.Clone(s.certs)
}

// AllKeysFlat returns all key records in insertion order.
func (s *MemStore) AllKeysFlat() []*KeyRecord {
	result := make([]*KeyRecord, 0, len(s.keyOrder))
	for _, ski := range s.keyOrder {
		result = append(result, s.keys[ski])
	}
	return result
}

// Certificates returns the captured certificates in insertion order, ready
// to be used as chain resolution candidates.
func (s *MemStore) Certificates() []*x509kit.CapturedCertificate {
	result := make([]*x509kit.CapturedCertificate, 0, len(s.certs))
	for _, rec := range s.certs {
		result = append(result, rec.Cert)
	}
	return result
}

// MatchedPairs returns SKIs that have both a leaf certificate and a key.
func (s *MemStore) MatchedPairs() []string {
	var matched []string
	for _, ski := range s.keyOrder {
		hasLeaf := slices.ContainsFunc(s.certsBySKI[ski], func(c *CertRecord) bool {
			return c.CertType == CertTypeLeaf
		})
		if hasLeaf {
			matched = append(matched, ski)
		}
	}
	return matched
}

// Intermediates returns all intermediate certificates in the store.
func (s *MemStore) Intermediates() []*x509kit.CapturedCertificate {
	var result []*x509kit.CapturedCertificate
	for _, rec := range s.certs {
		if rec.CertType == CertTypeIntermediate {
			result = append(result, rec.Cert)
		}
	}
	return result
}

// ResolveChain returns the signing chain of cert built from the catalogue
// and extra, nearest issuer first. Both pools are searched together.
func (s *MemStore) ResolveChain(cert *x509kit.CapturedCertificate, extra ...*x509kit.CapturedCertificate) []*x509kit.CapturedCertificate {
	return cert.ResolveSigningChain(slices.Concat(s.Certificates(), extra))
}

// HasIssuer reports whether a certificate other than cert in the catalogue
// or extra verifiably signed cert.
func (s *MemStore) HasIssuer(cert *x509kit.CapturedCertificate, extra ...*x509kit.CapturedCertificate) bool {
	candidates := slices.DeleteFunc(slices.Concat(s.Certificates(), extra), func(c *x509kit.CapturedCertificate) bool {
		return c.Equal(cert)
	})
	return cert.FindSigningCertificate(candidates) != nil
}

// ScanSummary returns aggregate counts of stored certificates and keys.
// Roots are never counted as unchained; self-signed trust is a policy
// decision left to the caller.
func (s *MemStore) ScanSummary(input ScanSummaryInput) ScanSummary {
	summary := ScanSummary{Keys: len(s.keys)}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	for _, rec := range s.certs {
		expired := now.After(rec.NotAfter)
		switch rec.CertType {
		case CertTypeRoot:
			summary.Roots++
			if expired {
				summary.ExpiredRoots++
			}
		case CertTypeIntermediate:
			summary.Intermediates++
			if expired {
				summary.ExpiredIntermediates++
			}
			if !s.HasIssuer(rec.Cert, input.ExtraIssuers...) {
				summary.UnchainedIntermediates++
			}
		case CertTypeLeaf:
			summary.Leaves++
			if expired {
				summary.ExpiredLeaves++
			}
			if !rec.Cert.SubjectIsIssuer() && !s.HasIssuer(rec.Cert, input.ExtraIssuers...) {
				summary.UnchainedLeaves++
			}
		}
	}
	summary.Matched = len(s.MatchedPairs())
	return summary
}

// DumpDebug logs all certificates and keys at debug level.
func (s *MemStore) DumpDebug() {
	for _, rec := range s.certs {
		slog.Debug("certificate details",
			"ski", rec.SKI,
			"subject", rec.Cert.Subject().String(),
			"serial", rec.Cert.SerialNumber().String(),
			"type", rec.CertType,
			"key_type", rec.KeyType,
			"encoding", rec.Cert.Encoding().String(),
			"not_before", rec.NotBefore.Format(time.RFC3339),
			"expiry", rec.NotAfter.Format(time.RFC3339),
			"source", rec.Source)
	}
	slog.Debug("total certificates", "count", len(s.certs))

	for _, ski := range s.keyOrder {
		rec := s.keys[ski]
		slog.Debug("key record", "ski", ski, "type", strings.ToLower(rec.KeyType), "bits", rec.BitLength)
	}
	slog.Debug("total keys", "count", len(s.keys))
}

// Reset clears all stored certificates and keys.
func (s *MemStore) Reset() {
	s.certs = nil
	s.certsByKey = make(map[string]*CertRecord)
	s.certsBySKI = make(map[string][]*CertRecord)
	s.keys = make(map[string]*KeyRecord)
	s.keyOrder = nil
}
