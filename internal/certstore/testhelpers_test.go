package certstore

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/sensiblebit/x509kit"
)

var testRSAKey = sync.OnceValues(func() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
})

// newKeyPair returns a fresh key pair; RSA pairs wrap one shared key.
func newKeyPair(t *testing.T, alg x509kit.KeyAlgorithm) *x509kit.KeyPair {
	t.Helper()
	if alg.Kind == x509kit.KeyKindRSA {
		key, err := testRSAKey()
		if err != nil {
			t.Fatal(err)
		}
		kp, err := x509kit.KeyPairFromPrivateKey(key)
		if err != nil {
			t.Fatal(err)
		}
		return kp
	}
	kp, err := x509kit.GenerateKeyPair(alg)
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

// testPKI is a root CA, an intermediate CA and a leaf with its key.
type testPKI struct {
	root, intermediate, leaf          *x509kit.CapturedCertificate
	rootKey, intermediateKey, leafKey *x509kit.KeyPair
}

func newCA(t *testing.T, cn string, key *x509kit.KeyPair, issuer *x509kit.KeyPair, issuerCert *x509kit.CapturedCertificate, serial int64) *x509kit.CapturedCertificate {
	t.Helper()
	b := x509kit.NewBuilder()
	b.SetSerialNumber(serial)
	b.SetNotBefore(time.Now().Add(-time.Hour))
	b.SetValidityDuration(10 * 365 * 24 * time.Hour)
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	b.ConstraintCA()
	if issuer == nil {
		cert, err := b.CreateWithKeyPair(key)
		if err != nil {
			t.Fatalf("creating %q: %v", cn, err)
		}
		return cert
	}
	*b.Issuer() = issuerCert.Subject()
	cert, err := b.CreateSignedBy(key, issuer)
	if err != nil {
		t.Fatalf("issuing %q: %v", cn, err)
	}
	return cert
}

// newLeaf issues a non-CA certificate for key valid until notAfter.
func newLeaf(t *testing.T, cn string, key *x509kit.KeyPair, issuer *x509kit.KeyPair, issuerCert *x509kit.CapturedCertificate, serial int64, notAfter time.Time) *x509kit.CapturedCertificate {
	t.Helper()
	b := x509kit.NewBuilder()
	b.SetSerialNumber(serial)
	b.SetNotBefore(time.Now().Add(-48 * time.Hour))
	b.SetNotAfter(notAfter)
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	*b.Issuer() = issuerCert.Subject()
	b.ConstraintNotCA()
	cert, err := b.CreateSignedBy(key, issuer)
	if err != nil {
		t.Fatalf("issuing %q: %v", cn, err)
	}
	return cert
}

// newTestPKI builds root -> intermediate -> leaf. The leaf key uses alg.
func newTestPKI(t *testing.T, alg x509kit.KeyAlgorithm) testPKI {
	t.Helper()
	var p testPKI
	p.rootKey = newKeyPair(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP384))
	p.intermediateKey = newKeyPair(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	p.leafKey = newKeyPair(t, alg)
	p.root = newCA(t, "Test Root CA", p.rootKey, nil, nil, 1)
	p.intermediate = newCA(t, "Test Intermediate CA", p.intermediateKey, p.rootKey, p.root, 2)
	p.leaf = newLeaf(t, "leaf.example.com", p.leafKey, p.intermediateKey, p.intermediate, 3, time.Now().Add(90*24*time.Hour))
	return p
}

// pkcs8PEM encodes kp as a PRIVATE KEY block.
func pkcs8PEM(t *testing.T, kp *x509kit.KeyPair) []byte {
	t.Helper()
	der := kp.PKCS8DER()
	defer der.Destroy()
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der.Bytes()})
}

// newJKS stores the leaf key entry with its chain under password.
func newJKS(t *testing.T, p testPKI, password string) []byte {
	t.Helper()
	data, err := x509kit.EncodeJKS(p.leafKey, p.leaf, []*x509kit.CapturedCertificate{p.intermediate, p.root}, password)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// newTrustedJKS stores cert as a trusted certificate entry only.
func newTrustedJKS(t *testing.T, cert *x509kit.CapturedCertificate, password string) []byte {
	t.Helper()
	ks := keystore.New()
	if err := ks.SetTrustedCertificateEntry("ca", keystore.TrustedCertificateEntry{
		CreationTime: time.Now(),
		Certificate:  keystore.Certificate{Type: "X.509", Content: cert.ConstructedData()},
	}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// recordingHandler collects everything ProcessData dispatches.
type recordingHandler struct {
	certs []*x509kit.CapturedCertificate
	keys  []*x509kit.KeyPair
}

func (h *recordingHandler) HandleCertificate(cert *x509kit.CapturedCertificate, _ string) error {
	h.certs = append(h.certs, cert)
	return nil
}

func (h *recordingHandler) HandleKey(kp *x509kit.KeyPair, _ string) error {
	h.keys = append(h.keys, kp)
	return nil
}
