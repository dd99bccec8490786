package x509kit

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"
)

// RSA key generation is slow; share one key across the package's tests.
var testRSAKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
})

// testKeyAlgorithms lists one of each key kind a KeyPair can hold.
var testKeyAlgorithms = []struct {
	name string
	alg  KeyAlgorithm
}{
	{"RSA", KeyAlgorithmRSA},
	{"P-256", KeyAlgorithmECDSA(CurveP256)},
	{"P-384", KeyAlgorithmECDSA(CurveP384)},
	{"Ed25519", KeyAlgorithmEd25519},
}

// newTestKeyPair returns a key pair for alg. RSA pairs wrap the shared key.
func newTestKeyPair(t *testing.T, alg KeyAlgorithm) *KeyPair {
	t.Helper()
	if alg.Kind == KeyKindRSA {
		key, err := testRSAKey()
		if err != nil {
			t.Fatal(err)
		}
		kp, err := KeyPairFromPrivateKey(key)
		if err != nil {
			t.Fatal(err)
		}
		return kp
	}
	kp, err := GenerateKeyPair(alg)
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

// newSelfSigned creates a self-signed certificate for kp with the given CN.
func newSelfSigned(t *testing.T, kp *KeyPair, cn string) *CapturedCertificate {
	t.Helper()
	b := NewBuilder()
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	cert, err := b.CreateWithKeyPair(kp)
	if err != nil {
		t.Fatalf("creating %q: %v", cn, err)
	}
	return cert
}

// newIssued creates a certificate for subjectKey named cn, signed by issuer
// whose certificate is issuerCert.
func newIssued(t *testing.T, subjectKey PublicKeyInfo, cn string, issuer *KeyPair, issuerCert *CapturedCertificate, serial int64) *CapturedCertificate {
	t.Helper()
	b := NewBuilder()
	b.SetSerialNumber(serial)
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	*b.Issuer() = issuerCert.Subject()
	cert, err := b.CreateSignedBy(subjectKey, issuer)
	if err != nil {
		t.Fatalf("issuing %q: %v", cn, err)
	}
	return cert
}

type testPKI struct {
	root, intermediate, leaf          *CapturedCertificate
	rootKey, intermediateKey, leafKey *KeyPair
}

// newTestPKI builds root -> intermediate -> leaf on P-256 keys.
func newTestPKI(t *testing.T) testPKI {
	t.Helper()
	var p testPKI
	p.rootKey = newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256))
	p.intermediateKey = newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256))
	p.leafKey = newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256))

	rb := NewBuilder()
	if err := rb.Subject().AppendCommonName("Test Root"); err != nil {
		t.Fatal(err)
	}
	rb.SetValidityDuration(24 * time.Hour)
	var err error
	if p.root, err = rb.CreateWithKeyPair(p.rootKey); err != nil {
		t.Fatal(err)
	}
	p.intermediate = newIssued(t, p.intermediateKey, "Test Intermediate", p.rootKey, p.root, 2)
	p.leaf = newIssued(t, p.leafKey, "leaf.example.com", p.intermediateKey, p.intermediate, 3)
	return p
}

// newP521SelfSigned creates a certificate on a curve the engine does not
// support, using crypto/x509.
func newP521SelfSigned(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(521),
		Subject:      pkix.Name{CommonName: "p521.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	return der
}

// toIndefiniteLength re-encodes the outer SEQUENCE of der with an
// indefinite length, producing BER that DER decoders reject.
func toIndefiniteLength(t *testing.T, der []byte) []byte {
	t.Helper()
	if len(der) < 2 || der[0] != 0x30 {
		t.Fatal("not a DER SEQUENCE")
	}
	header := 2
	if der[1]&0x80 != 0 {
		header += int(der[1] & 0x7f)
	}
	out := []byte{0x30, 0x80}
	out = append(out, der[header:]...)
	return append(out, 0, 0)
}
