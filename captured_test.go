package x509kit

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

func TestCapturedCertificate_SelfSignedVerify(t *testing.T) {
	// WHY: A self-signed certificate must verify against itself, both via
	// its certificate and via its raw public key bytes.
	t.Parallel()

	for _, tt := range testKeyAlgorithms {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cert := newSelfSigned(t, newTestKeyPair(t, tt.alg), "self")
			if err := cert.VerifySignedByCertificate(cert); err != nil {
				t.Errorf("VerifySignedByCertificate: %v", err)
			}
			if err := cert.VerifySignedByPublicKey(cert.PublicKeyData()); err != nil {
				t.Errorf("VerifySignedByPublicKey: %v", err)
			}
			if cert.Encoding() != EncodingDER {
				t.Errorf("Encoding = %s", cert.Encoding())
			}
		})
	}
}

func TestCapturedCertificate_VerifyFailures(t *testing.T) {
	// WHY: A wrong key of the same algorithm is a verification failure, while
	// a key of another family cannot be paired with the signature at all.
	t.Parallel()

	p256a := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256)), "a")
	p256b := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256)), "b")
	ed := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmEd25519), "ed")
	rsaCert := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmRSA), "rsa")

	tests := []struct {
		name    string
		cert    *CapturedCertificate
		issuer  PublicKeyInfo
		wantErr error
	}{
		{"wrong ecdsa key", p256a, p256b, ErrSignatureVerificationFailed},
		{"ecdsa cert with ed25519 key", p256a, ed, ErrUnsupportedSignatureVerification},
		{"rsa cert with ed25519 key", rsaCert, ed, ErrUnsupportedSignatureVerification},
		{"ed25519 cert with rsa key", ed, rsaCert, ErrUnsupportedSignatureVerification},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.cert.VerifySignedByCertificate(tt.issuer); !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := ed.VerifySignedByPublicKey(make([]byte, 31)); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("short Ed25519 key: got %v", err)
	}
}

func TestCapturedCertificate_TamperedSignature(t *testing.T) {
	// WHY: Verification runs over the captured bytes, so flipping a bit in
	// the signature must be detected.
	t.Parallel()

	cert := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmEd25519), "tamper")
	der := cert.ConstructedData()
	der[len(der)-1] ^= 0x01

	tampered, err := ParseCapturedDER(der)
	if err != nil {
		t.Fatal(err)
	}
	if err := tampered.VerifySignedByCertificate(cert); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("got %v, want ErrSignatureVerificationFailed", err)
	}
}

func TestCapturedCertificate_BERVerify(t *testing.T) {
	// WHY: A BER capture keeps its original bytes; when only the outer
	// framing is BER the signed TBS is still DER and must verify.
	t.Parallel()

	cert := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP384)), "ber")
	berData := toIndefiniteLength(t, cert.ConstructedData())

	captured, err := ParseCapturedBER(berData)
	if err != nil {
		t.Fatal(err)
	}
	if captured.Encoding() != EncodingBER {
		t.Errorf("Encoding = %s, want BER", captured.Encoding())
	}
	if !bytes.Equal(captured.ConstructedData(), berData) {
		t.Error("ConstructedData is not the BER input")
	}
	if err := captured.VerifySignedByCertificate(cert); err != nil {
		t.Errorf("verify: %v", err)
	}
	if captured.Equal(cert) {
		t.Error("BER and DER captures of one certificate compare equal")
	}
	der, err := captured.DERBytes()
	if err != nil || !bytes.Equal(der, cert.ConstructedData()) {
		t.Errorf("DERBytes does not normalize to the DER form: %v", err)
	}
}

// berSignedCertificate re-signs cert with kp so that the signed TBS itself
// uses an indefinite length, and frames the result in BER.
func berSignedCertificate(t *testing.T, cert *CapturedCertificate, kp *KeyPair) (certBER, tbsBER []byte) {
	t.Helper()
	var outer, tbs, sigAlg cryptobyte.String
	input := cryptobyte.String(cert.ConstructedData())
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) ||
		!outer.ReadASN1Element(&tbs, cbasn1.SEQUENCE) ||
		!outer.ReadASN1Element(&sigAlg, cbasn1.SEQUENCE) {
		t.Fatal("splitting certificate")
	}
	tbsBER = toIndefiniteLength(t, tbs)
	sig, err := kp.Sign(tbsBER)
	if err != nil {
		t.Fatal(err)
	}

	var b cryptobyte.Builder
	b.AddASN1BitString(sig)
	sigBits, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	certBER = []byte{0x30, 0x80}
	certBER = append(certBER, tbsBER...)
	certBER = append(certBER, sigAlg...)
	certBER = append(certBER, sigBits...)
	certBER = append(certBER, 0, 0)
	return certBER, tbsBER
}

func TestCapturedCertificate_VerifyCrossAlgorithmIssuer(t *testing.T) {
	// WHY: The issuer's key algorithm comes from the issuer's SPKI, so an
	// RSA issuer verifies an Ed25519 leaf by certificate; raw key bytes are
	// read with the leaf's own algorithm and cannot verify it.
	t.Parallel()

	caKP := newTestKeyPair(t, KeyAlgorithmRSA)
	ca := newSelfSigned(t, caKP, "rsa-ca")
	leaf := newIssued(t, newTestKeyPair(t, KeyAlgorithmEd25519), "ed25519-leaf", caKP, ca, 2)

	if err := leaf.VerifySignedByCertificate(ca); err != nil {
		t.Errorf("VerifySignedByCertificate: %v", err)
	}
	if err := leaf.VerifySignedByPublicKey(caKP.PublicKeyData()); !errors.Is(err, ErrUnsupportedSignatureVerification) {
		t.Errorf("VerifySignedByPublicKey = %v, want ErrUnsupportedSignatureVerification", err)
	}
}

func TestCapturedCertificate_BERSignedTBS(t *testing.T) {
	// WHY: A signature is checked over the TBS bytes exactly as captured; a
	// TBS signed in indefinite-length form must verify, and its DER
	// normalization must not be what gets checked.
	t.Parallel()

	for _, tt := range testKeyAlgorithms {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kp := newTestKeyPair(t, tt.alg)
			certBER, tbsBER := berSignedCertificate(t, newSelfSigned(t, kp, "ber-tbs"), kp)

			captured, err := ParseCapturedBER(certBER)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(captured.TBSRaw(), tbsBER) {
				t.Error("TBSRaw is not the original BER TBS")
			}
			if err := captured.VerifySignedByCertificate(kp); err != nil {
				t.Errorf("VerifySignedByCertificate: %v", err)
			}
			if err := captured.VerifySignedByPublicKey(kp.PublicKeyData()); err != nil {
				t.Errorf("VerifySignedByPublicKey: %v", err)
			}

			plain, err := ParseCertificateBER(certBER)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(plain.TBSRaw(), tbsBER) {
				t.Error("ParseCertificateBER TBSRaw is not the original BER TBS")
			}

			certBER[len(certBER)-3] ^= 0x01
			if tampered, err := ParseCapturedBER(certBER); err == nil {
				if err := tampered.VerifySignedByCertificate(kp); !errors.Is(err, ErrSignatureVerificationFailed) {
					t.Errorf("tampered signature: got %v", err)
				}
			}
		})
	}
}

func TestResolveSigningChain(t *testing.T) {
	// WHY: Chain resolution must order issuers nearest first, ignore
	// duplicates and the certificate itself, and stop quietly at a gap.
	t.Parallel()

	p := newTestPKI(t)
	unrelated := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmEd25519), "unrelated")

	tests := []struct {
		name       string
		candidates []*CapturedCertificate
		want       []*CapturedCertificate
	}{
		{"full chain", []*CapturedCertificate{p.root, p.intermediate}, []*CapturedCertificate{p.intermediate, p.root}},
		{"duplicates and self", []*CapturedCertificate{p.leaf, p.root, p.intermediate, p.intermediate, unrelated}, []*CapturedCertificate{p.intermediate, p.root}},
		{"missing intermediate", []*CapturedCertificate{p.root, unrelated}, nil},
		{"missing root", []*CapturedCertificate{p.intermediate}, []*CapturedCertificate{p.intermediate}},
		{"no candidates", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.leaf.ResolveSigningChain(tt.candidates)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d certificates, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !got[i].Equal(tt.want[i]) {
					gotCN, _ := got[i].SubjectCommonName()
					wantCN, _ := tt.want[i].SubjectCommonName()
					t.Errorf("chain[%d] = %q, want %q", i, gotCN, wantCN)
				}
			}
		})
	}

	if got := p.root.ResolveSigningChain([]*CapturedCertificate{p.root}); len(got) != 0 {
		t.Errorf("self-signed root resolved a chain of %d", len(got))
	}
}

func TestFindSigningCertificate(t *testing.T) {
	// WHY: The first candidate whose key verifies the signature wins.
	t.Parallel()

	p := newTestPKI(t)
	if got := p.leaf.FindSigningCertificate([]*CapturedCertificate{p.root, p.intermediate}); got != p.intermediate {
		t.Error("did not find the intermediate")
	}
	if got := p.leaf.FindSigningCertificate([]*CapturedCertificate{p.root}); got != nil {
		t.Error("found a signer that did not sign")
	}
}

func TestCapturedCertificate_Mutable(t *testing.T) {
	// WHY: Editing a mutable copy must never change the captured original or
	// its verification result, while the edited copy no longer verifies.
	t.Parallel()

	p := newTestPKI(t)
	before := p.leaf.ConstructedData()

	m := p.leaf.Mutable()
	var renamed Name
	if err := renamed.AppendCommonName("evil.example.com"); err != nil {
		t.Fatal(err)
	}
	m.SetSubject(renamed)
	m.SetSerialNumber(big.NewInt(99))

	if !bytes.Equal(p.leaf.ConstructedData(), before) {
		t.Fatal("original bytes changed")
	}
	if cn, _ := p.leaf.SubjectCommonName(); cn != "leaf.example.com" {
		t.Errorf("original CN = %q", cn)
	}
	if err := p.leaf.VerifySignedByCertificate(p.intermediate); err != nil {
		t.Errorf("original no longer verifies: %v", err)
	}

	edited, err := m.Capture()
	if err != nil {
		t.Fatal(err)
	}
	if cn, _ := edited.SubjectCommonName(); cn != "evil.example.com" {
		t.Errorf("edited CN = %q", cn)
	}
	if edited.SerialNumber().Int64() != 99 {
		t.Errorf("edited serial = %s", edited.SerialNumber())
	}
	if err := edited.VerifySignedByCertificate(p.intermediate); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("edited certificate: got %v, want ErrSignatureVerificationFailed", err)
	}
	if m.TBSRaw() != nil {
		t.Error("mutable certificate kept the captured TBS bytes")
	}
}

func TestCapturedCertificate_ResignAfterEdit(t *testing.T) {
	// WHY: Re-signing an edited copy with SetSignature produces a certificate
	// that verifies again, which shows the signed bytes follow the edit.
	t.Parallel()

	kp := newTestKeyPair(t, KeyAlgorithmEd25519)
	cert := newSelfSigned(t, kp, "resign")

	m := cert.Mutable()
	m.SetSerialNumber(big.NewInt(7))
	tbs, err := m.TBSDER()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := kp.Sign(tbs)
	if err != nil {
		t.Fatal(err)
	}
	m.SetSignature(sig)
	resigned, err := m.Capture()
	if err != nil {
		t.Fatal(err)
	}
	if err := resigned.VerifySignedByCertificate(kp); err != nil {
		t.Errorf("re-signed certificate does not verify: %v", err)
	}
}

func TestCapturedCertificate_VerifySignedData(t *testing.T) {
	// WHY: Arbitrary data signed by the certificate's key must verify with
	// the certificate's own algorithms, and altered data must not.
	t.Parallel()

	for _, tt := range testKeyAlgorithms {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			kp := newTestKeyPair(t, tt.alg)
			cert := newSelfSigned(t, kp, "data")
			data := []byte("payload to sign")
			sig, err := kp.Sign(data)
			if err != nil {
				t.Fatal(err)
			}
			if err := cert.VerifySignedData(data, sig); err != nil {
				t.Errorf("VerifySignedData: %v", err)
			}
			if err := cert.VerifySignedData([]byte("other payload"), sig); !errors.Is(err, ErrSignatureVerificationFailed) {
				t.Errorf("altered data: got %v", err)
			}
			verifier, err := kp.VerificationAlgorithm()
			if err != nil {
				t.Fatal(err)
			}
			if err := cert.VerifySignedDataWithAlgorithm(data, sig, verifier); err != nil {
				t.Errorf("VerifySignedDataWithAlgorithm: %v", err)
			}
		})
	}
}

func TestCapturedCertificate_PEMAndEquality(t *testing.T) {
	// WHY: PEM output wraps the original bytes, and equality and map keys
	// are defined by those bytes.
	t.Parallel()

	cert := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256)), "pem")
	back, err := ParseCapturedPEM([]byte(cert.EncodePEM()))
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(cert) || back.Key() != cert.Key() {
		t.Error("PEM round trip changed the certificate")
	}
	if back == cert {
		t.Error("expected a distinct value")
	}

	data := cert.ConstructedData()
	data[0] = 0
	if cert.ConstructedData()[0] != 0x30 {
		t.Error("ConstructedData exposed internal storage")
	}

	other := newSelfSigned(t, newTestKeyPair(t, KeyAlgorithmECDSA(CurveP256)), "pem")
	if other.Equal(cert) {
		t.Error("different certificates compare equal")
	}
	if cert.Equal(nil) {
		t.Error("Equal(nil) = true")
	}

	multi, err := ParseCapturedPEMMultiple([]byte(cert.EncodePEM() + other.EncodePEM()))
	if err != nil || len(multi) != 2 {
		t.Fatalf("ParseCapturedPEMMultiple = %d, %v", len(multi), err)
	}
	if !multi[1].Equal(other) {
		t.Error("second block is not the second certificate")
	}
}
