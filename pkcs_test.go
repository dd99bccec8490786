package x509kit

import (
	"bytes"
	"testing"
)

func TestPKCS7_RoundTrip(t *testing.T) {
	// WHY: A certs-only PKCS#7 bundle must carry the exact certificate bytes
	// in order.
	t.Parallel()

	p := newTestPKI(t)
	in := []*CapturedCertificate{p.leaf, p.intermediate, p.root}
	der, err := EncodePKCS7(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := DecodePKCS7(der)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d certificates, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Equal(in[i]) {
			t.Errorf("certificate %d changed", i)
		}
	}

	if _, err := EncodePKCS7(nil); err == nil {
		t.Error("empty bundle accepted")
	}
	if _, err := DecodePKCS7([]byte{0x30, 0x00}); err == nil {
		t.Error("garbage PKCS#7 accepted")
	}
}

func TestParseCapturedAny(t *testing.T) {
	// WHY: Input of unknown format must be recognized as DER, BER, PEM or
	// PKCS#7 and captured without altering the certificate bytes.
	t.Parallel()

	p := newTestPKI(t)
	der := p.leaf.ConstructedData()
	p7, err := EncodePKCS7([]*CapturedCertificate{p.leaf, p.intermediate})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     []byte
		count    int
		encoding Encoding
	}{
		{"der", der, 1, EncodingDER},
		{"ber", toIndefiniteLength(t, der), 1, EncodingBER},
		{"pem", []byte(p.leaf.EncodePEM() + p.root.EncodePEM()), 2, EncodingDER},
		{"pkcs7", p7, 2, EncodingDER},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			certs, err := ParseCapturedAny(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if len(certs) != tt.count {
				t.Fatalf("got %d certificates, want %d", len(certs), tt.count)
			}
			if certs[0].Encoding() != tt.encoding {
				t.Errorf("Encoding = %s, want %s", certs[0].Encoding(), tt.encoding)
			}
			if cn, _ := certs[0].SubjectCommonName(); cn != "leaf.example.com" {
				t.Errorf("first CN = %q", cn)
			}
		})
	}

	for _, bad := range [][]byte{nil, []byte("hello"), []byte("-----BEGIN NOTHING-----\n-----END NOTHING-----\n")} {
		if _, err := ParseCapturedAny(bad); err == nil {
			t.Errorf("ParseCapturedAny(%q) succeeded", bad)
		}
	}
}

func TestPKCS12_RoundTrip(t *testing.T) {
	// WHY: A PKCS#12 bundle must return the same key, leaf and chain it was
	// built from, and refuse the wrong password.
	t.Parallel()

	for _, alg := range []KeyAlgorithm{KeyAlgorithmRSA, KeyAlgorithmECDSA(CurveP256)} {
		t.Run(alg.String(), func(t *testing.T) {
			t.Parallel()
			caKP := newTestKeyPair(t, KeyAlgorithmECDSA(CurveP384))
			ca := newSelfSigned(t, caKP, "PKCS12 CA")
			leafKP := newTestKeyPair(t, alg)
			leaf := newIssued(t, leafKP, "pkcs12.example.com", caKP, ca, 12)

			pfx, err := EncodePKCS12(leafKP, leaf, []*CapturedCertificate{ca}, "password")
			if err != nil {
				t.Fatal(err)
			}
			kp, gotLeaf, chain, err := DecodePKCS12(pfx, "password")
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(kp.PublicKeyData(), leafKP.PublicKeyData()) {
				t.Error("key changed")
			}
			if !gotLeaf.Equal(leaf) {
				t.Error("leaf changed")
			}
			if len(chain) != 1 || !chain[0].Equal(ca) {
				t.Errorf("chain = %d certificates", len(chain))
			}
			if err := gotLeaf.VerifySignedByCertificate(chain[0]); err != nil {
				t.Errorf("decoded leaf does not verify: %v", err)
			}

			if _, _, _, err := DecodePKCS12(pfx, "wrong"); err == nil {
				t.Error("wrong password accepted")
			}
		})
	}
}

func TestEncodePKCS12_DestroyedKey(t *testing.T) {
	// WHY: A destroyed key pair has no private key left to export.
	t.Parallel()

	kp := newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256))
	cert := newSelfSigned(t, kp, "destroyed")
	kp.Destroy()
	if _, err := EncodePKCS12(kp, cert, nil, "password"); err == nil {
		t.Error("destroyed key pair exported")
	}
}
