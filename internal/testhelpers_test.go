package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

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

func issue(t *testing.T, cn string, ca bool, key, issuer *x509kit.KeyPair, issuerCert *x509kit.CapturedCertificate, serial int64, notAfter time.Time) *x509kit.CapturedCertificate {
	t.Helper()
	b := x509kit.NewBuilder()
	b.SetSerialNumber(serial)
	b.SetNotBefore(time.Now().Add(-48 * time.Hour))
	b.SetNotAfter(notAfter)
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	if ca {
		b.ConstraintCA()
	} else {
		b.ConstraintNotCA()
	}
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

// newTestPKI builds root -> intermediate -> leaf; the leaf key uses alg.
func newTestPKI(t *testing.T, alg x509kit.KeyAlgorithm) testPKI {
	t.Helper()
	var p testPKI
	year := time.Now().Add(365 * 24 * time.Hour)
	p.rootKey = newKeyPair(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP384))
	p.intermediateKey = newKeyPair(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	p.leafKey = newKeyPair(t, alg)
	p.root = issue(t, "Test Root CA", true, p.rootKey, nil, nil, 1, year.Add(24*time.Hour))
	p.intermediate = issue(t, "Test Intermediate CA", true, p.intermediateKey, p.rootKey, p.root, 2, year)
	p.leaf = issue(t, "leaf.example.com", false, p.leafKey, p.intermediateKey, p.intermediate, 3, time.Now().Add(90*24*time.Hour))
	return p
}

// pkcs8PEM encodes kp as a PRIVATE KEY block.
func pkcs8PEM(t *testing.T, kp *x509kit.KeyPair) []byte {
	t.Helper()
	der := kp.PKCS8DER()
	defer der.Destroy()
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der.Bytes()})
}

// writeFile writes data under dir and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func createTestZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeTar(t *testing.T, w *tar.Writer, files map[string][]byte) {
	t.Helper()
	for _, name := range sortedNames(files) {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(files[name])), Typeflag: tar.TypeReg}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(files[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func createTestTar(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeTar(t, tar.NewWriter(&buf), files)
	return buf.Bytes()
}

func createTestTarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	writeTar(t, tar.NewWriter(gw), files)
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
