package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sensiblebit/x509kit"
)

// writeCSR creates a CSR for kp with the given CN and writes it as PEM.
func writeCSR(t *testing.T, dir, cn string, kp *x509kit.KeyPair) string {
	t.Helper()
	b := x509kit.NewBuilder()
	if err := b.Subject().AppendOrganization("Example Org"); err != nil {
		t.Fatal(err)
	}
	if err := b.Subject().AppendCommonName(cn); err != nil {
		t.Fatal(err)
	}
	csr, err := b.CreateCertificateSigningRequest(kp)
	if err != nil {
		t.Fatal(err)
	}
	data, err := csr.EncodePEM()
	if err != nil {
		t.Fatal(err)
	}
	return writeFile(t, dir, "request.csr", []byte(data))
}

func TestGenerateCSRFiles(t *testing.T) {
	// WHY: Each subject source must produce a verifiable CSR carrying that
	// subject, and a key file only when the key was generated here.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	dir := t.TempDir()
	certPath := writeFile(t, dir, "existing.pem", []byte(p.leaf.EncodePEM()))
	keyPath := writeFile(t, dir, "existing.key", pkcs8PEM(t, p.leafKey))
	csrPath := writeCSR(t, dir, "renew.example.com", p.leafKey)

	tests := []struct {
		name        string
		opts        CSROptions
		wantSubject string
		wantKeyFile bool
	}{
		{
			name:        "from cn with profile subject",
			opts:        CSROptions{CN: "new.example.com", Algorithm: "ed25519", Profile: &Profile{Subject: &SubjectConfig{Country: []string{"US"}}}},
			wantSubject: "CN=new.example.com,C=US",
			wantKeyFile: true,
		},
		{
			name:        "from certificate with existing key",
			opts:        CSROptions{CertPath: certPath, KeyPath: keyPath},
			wantSubject: "CN=leaf.example.com",
		},
		{
			name:        "from csr with new key",
			opts:        CSROptions{CSRPath: csrPath, Algorithm: "ecdsa", Curve: "P-384"},
			wantSubject: "CN=renew.example.com,O=Example Org",
			wantKeyFile: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := tt.opts
			opts.OutPath = t.TempDir()
			result, err := GenerateCSRFiles(opts)
			if err != nil {
				t.Fatal(err)
			}
			csr, err := LoadCSRFile(result.CSRFile)
			if err != nil {
				t.Fatal(err)
			}
			if got := csr.Subject().String(); got != tt.wantSubject {
				t.Errorf("subject = %q, want %q", got, tt.wantSubject)
			}
			_, statErr := os.Stat(filepath.Join(opts.OutPath, "key.pem"))
			if (statErr == nil) != tt.wantKeyFile {
				t.Errorf("key.pem exists = %v, want %v", statErr == nil, tt.wantKeyFile)
			}
			if opts.KeyPath != "" && !bytes.Equal(csr.PublicKeyData(), p.leafKey.PublicKeyData()) {
				t.Error("CSR not signed with the supplied key")
			}
		})
	}
}

func TestGenerateCSRFiles_Errors(t *testing.T) {
	// WHY: Ambiguous or missing subject sources and unusable inputs must be
	// rejected before anything is written.
	t.Parallel()

	dir := t.TempDir()
	junk := writeFile(t, dir, "junk.csr", []byte("-----BEGIN CERTIFICATE REQUEST-----\nAAAA\n-----END CERTIFICATE REQUEST-----\n"))
	tests := []struct {
		name string
		opts CSROptions
	}{
		{"no source", CSROptions{Algorithm: "ed25519"}},
		{"two sources", CSROptions{CN: "a", CertPath: "b", Algorithm: "ed25519"}},
		{"missing key file", CSROptions{CN: "a", KeyPath: filepath.Join(dir, "missing.pem")}},
		{"malformed csr", CSROptions{CSRPath: junk, Algorithm: "ed25519"}},
		{"bad algorithm", CSROptions{CN: "a", Algorithm: "dsa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := GenerateCSRFiles(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
