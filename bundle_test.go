package x509kit

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"
)

// sha1Signer signs like an RSA KeyPair but with SHA-1, which the builder
// never chooses on its own.
type sha1Signer struct {
	*KeyPair
	key *rsa.PrivateKey
}

func (s sha1Signer) SignatureAlgorithm() (SignatureAlgorithm, error) { return SHA1WithRSA, nil }

func (s sha1Signer) Sign(message []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, SHA1.Digest(message))
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestBundle_CompleteChain(t *testing.T) {
	// WHY: With every issuer available the bundle must split the chain into
	// intermediates and root and report no warnings.
	t.Parallel()

	p := newTestPKI(t)
	result, err := Bundle(p.leaf, BundleOptions{Candidates: []*CapturedCertificate{p.root, p.intermediate}})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Leaf.Equal(p.leaf) {
		t.Error("leaf changed")
	}
	if len(result.Intermediates) != 1 || !result.Intermediates[0].Equal(p.intermediate) {
		t.Errorf("intermediates = %d", len(result.Intermediates))
	}
	if result.Root == nil || !result.Root.Equal(p.root) {
		t.Error("root not found")
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if len(result.Chain()) != 3 {
		t.Errorf("Chain has %d certificates", len(result.Chain()))
	}
}

func TestBundle_IncompleteChain(t *testing.T) {
	// WHY: A missing issuer is reported as a warning, never an error.
	t.Parallel()

	p := newTestPKI(t)
	result, err := Bundle(p.leaf, BundleOptions{Candidates: []*CapturedCertificate{p.root}})
	if err != nil {
		t.Fatal(err)
	}
	if result.Root != nil || len(result.Intermediates) != 0 {
		t.Error("resolved issuers that were not provided")
	}
	if !hasWarning(result.Warnings, "chain is incomplete") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestBundle_ReversedInput(t *testing.T) {
	// WHY: Input given CA first must be detected and the real leaf used.
	t.Parallel()

	caKP := newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256))
	cb := NewBuilder()
	if err := cb.Subject().AppendCommonName("Reversed CA"); err != nil {
		t.Fatal(err)
	}
	cb.AddExtensionDERData(OIDExtensionBasicConstraints, true, []byte{0x30, 0x03, 0x01, 0x01, 0xff})
	ca, err := cb.CreateWithKeyPair(caKP)
	if err != nil {
		t.Fatal(err)
	}

	lb := NewBuilder()
	if err := lb.Subject().AppendCommonName("reversed.example.com"); err != nil {
		t.Fatal(err)
	}
	*lb.Issuer() = ca.Subject()
	lb.ConstraintNotCA()
	leaf, err := lb.CreateSignedBy(newTestKeyPair(t, KeyAlgorithmEd25519), caKP)
	if err != nil {
		t.Fatal(err)
	}

	result, err := Bundle(ca, BundleOptions{Candidates: []*CapturedCertificate{leaf}})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Leaf.Equal(leaf) {
		t.Fatal("leaf was not swapped in")
	}
	if result.Root == nil || !result.Root.Equal(ca) {
		t.Error("CA not resolved as root")
	}
	if !hasWarning(result.Warnings, "reversed chain detected") {
		t.Errorf("warnings = %v", result.Warnings)
	}
}

func TestBundle_Warnings(t *testing.T) {
	// WHY: SHA-1 signatures and near expiry are flagged so callers can act
	// before a client rejects the chain.
	t.Parallel()

	rsaKey, err := testRSAKey()
	if err != nil {
		t.Fatal(err)
	}
	signer := sha1Signer{KeyPair: newTestKeyPair(t, KeyAlgorithmRSA), key: rsaKey}

	b := NewBuilder()
	if err := b.Subject().AppendCommonName("legacy.example.com"); err != nil {
		t.Fatal(err)
	}
	cert, err := b.CreateWithKeyPair(signer)
	if err != nil {
		t.Fatal(err)
	}
	if sig, _ := cert.SignatureAlgorithm(); sig != SHA1WithRSA {
		t.Fatalf("signature algorithm = %s", sig)
	}
	if err := cert.VerifySignedByCertificate(cert); err != nil {
		t.Fatalf("SHA-1 certificate does not verify: %v", err)
	}

	result, err := Bundle(cert, DefaultBundleOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !hasWarning(result.Warnings, "deprecated SHA-1") {
		t.Errorf("no SHA-1 warning in %v", result.Warnings)
	}
	if !hasWarning(result.Warnings, "expires within") {
		t.Errorf("no expiry warning in %v", result.Warnings)
	}

	eb := NewBuilder()
	if err := eb.Subject().AppendCommonName("expired.example.com"); err != nil {
		t.Fatal(err)
	}
	eb.SetNotBefore(time.Now().Add(-48 * time.Hour))
	eb.SetValidityDuration(time.Hour)
	expired, err := eb.CreateWithKeyPair(newTestKeyPair(t, KeyAlgorithmEd25519))
	if err != nil {
		t.Fatal(err)
	}
	result, err = Bundle(expired, BundleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !hasWarning(result.Warnings, "has expired") {
		t.Errorf("no expired warning in %v", result.Warnings)
	}
}

func TestMozillaRoots(t *testing.T) {
	// WHY: The embedded root set is the default trust pool for chain
	// completion and must decode.
	t.Parallel()

	roots, err := MozillaRoots()
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) < 100 {
		t.Errorf("only %d roots decoded", len(roots))
	}

	p := newTestPKI(t)
	result, err := Bundle(p.leaf, BundleOptions{Candidates: []*CapturedCertificate{p.intermediate}, MozillaRoots: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.Root != nil {
		t.Error("a Mozilla root claimed to sign a test certificate")
	}
	if len(result.Intermediates) != 1 {
		t.Errorf("intermediates = %d", len(result.Intermediates))
	}
}
