package x509kit

import (
	"bytes"
	"testing"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

func TestJKS_RoundTrip(t *testing.T) {
	// WHY: A keystore written here must load back with the same key and the
	// leaf followed by its chain.
	t.Parallel()

	p := newTestPKI(t)
	data, err := EncodeJKS(p.leafKey, p.leaf, []*CapturedCertificate{p.intermediate, p.root}, "changeit")
	if err != nil {
		t.Fatal(err)
	}

	certs, keys, err := DecodeJKS(data, "changeit")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || !bytes.Equal(keys[0].PublicKeyData(), p.leafKey.PublicKeyData()) {
		t.Fatalf("got %d keys", len(keys))
	}
	want := []*CapturedCertificate{p.leaf, p.intermediate, p.root}
	if len(certs) != len(want) {
		t.Fatalf("got %d certificates, want %d", len(certs), len(want))
	}
	for i := range want {
		if !certs[i].Equal(want[i]) {
			t.Errorf("certificate %d changed", i)
		}
	}

	if _, _, err := DecodeJKS(data, "wrongpass"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestDecodeJKS_TrustedCertificates(t *testing.T) {
	// WHY: Trusted certificate entries carry no key and must still be
	// returned as certificates.
	t.Parallel()

	cert := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256)), "trusted")
	ks := keystore.New()
	if err := ks.SetTrustedCertificateEntry("ca", keystore.TrustedCertificateEntry{
		CreationTime: time.Now(),
		Certificate:  keystore.Certificate{Type: "X.509", Content: cert.ConstructedData()},
	}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte("changeit")); err != nil {
		t.Fatal(err)
	}

	certs, keys, err := DecodeJKS(buf.Bytes(), "changeit")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 0 || len(certs) != 1 || !certs[0].Equal(cert) {
		t.Errorf("got %d certificates and %d keys", len(certs), len(keys))
	}
}

func TestDecodeJKS_Empty(t *testing.T) {
	// WHY: A keystore with nothing usable is an error, not an empty result.
	t.Parallel()

	var buf bytes.Buffer
	if err := keystore.New().Store(&buf, []byte("changeit")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeJKS(buf.Bytes(), "changeit"); err == nil {
		t.Error("empty keystore accepted")
	}
}
