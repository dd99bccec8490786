package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal/certstore"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExportBundles(t *testing.T) {
	// WHY: Every leaf with its key must land in its own folder with the
	// full chain and a private key only the owner can read.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	store := certstore.NewMemStore()
	for _, c := range []*x509kit.CapturedCertificate{p.leaf, p.intermediate, p.root} {
		if err := store.HandleCertificate(c, "test"); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.HandleKey(p.leafKey, "test"); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	n, err := ExportBundles(store, ExportOptions{
		OutDir:   out,
		Profiles: []Profile{{CommonNames: []string{"leaf.example.com"}, BundleName: "web"}},
		Formats:  BundleFormats{PKCS7: true, PKCS12: true, JKS: true, Password: "changeit"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("wrote %d bundles, want 1", n)
	}

	dir := filepath.Join(out, "web")
	full, err := x509kit.ParseCapturedPEMMultiple(readFile(t, filepath.Join(dir, "fullchain.pem")))
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 2 || !full[0].Equal(p.leaf) || !full[1].Equal(p.intermediate) {
		t.Errorf("fullchain has %d certificates", len(full))
	}
	chain, err := x509kit.ParseCapturedPEMMultiple(readFile(t, filepath.Join(dir, "chain.pem")))
	if err != nil || len(chain) != 1 {
		t.Errorf("chain.pem = %d certificates, %v", len(chain), err)
	}

	info, err := os.Stat(filepath.Join(dir, "key.pem"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key.pem mode = %o", info.Mode().Perm())
	}
	kp, err := x509kit.KeyPairFromPKCS8PEM(readFile(t, filepath.Join(dir, "key.pem")))
	if err != nil || !bytes.Equal(kp.PublicKeyData(), p.leafKey.PublicKeyData()) {
		t.Errorf("key.pem does not hold the leaf key: %v", err)
	}

	p7, err := x509kit.DecodePKCS7(readFile(t, filepath.Join(dir, "bundle.p7b")))
	if err != nil || len(p7) != 3 {
		t.Errorf("bundle.p7b = %d certificates, %v", len(p7), err)
	}
	if _, _, chain, err := x509kit.DecodePKCS12(readFile(t, filepath.Join(dir, "bundle.p12")), "changeit"); err != nil || len(chain) != 2 {
		t.Errorf("bundle.p12 chain = %d, %v", len(chain), err)
	}
	if certs, keys, err := x509kit.DecodeJKS(readFile(t, filepath.Join(dir, "bundle.jks")), "changeit"); err != nil || len(certs) != 3 || len(keys) != 1 {
		t.Errorf("bundle.jks = %d certs, %d keys, %v", len(certs), len(keys), err)
	}
}

func TestExportBundles_DuplicatesAndRoots(t *testing.T) {
	// WHY: Older certificates for the same key are exported only on request,
	// and RequireRoot withholds bundles whose chain never reaches a root.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmEd25519)
	older := issue(t, "leaf.example.com", false, p.leafKey, p.intermediateKey, p.intermediate, 99, time.Now().Add(10*24*time.Hour))

	newStore := func(withRoot bool) *certstore.MemStore {
		store := certstore.NewMemStore()
		certs := []*x509kit.CapturedCertificate{p.leaf, older, p.intermediate}
		if withRoot {
			certs = append(certs, p.root)
		}
		for _, c := range certs {
			if err := store.HandleCertificate(c, "test"); err != nil {
				t.Fatal(err)
			}
		}
		if err := store.HandleKey(p.leafKey, "test"); err != nil {
			t.Fatal(err)
		}
		return store
	}

	tests := []struct {
		name     string
		withRoot bool
		opts     ExportOptions
		want     int
	}{
		{"newest only", true, ExportOptions{}, 1},
		{"duplicates", true, ExportOptions{Duplicates: true}, 2},
		{"root required but missing", false, ExportOptions{RequireRoot: true}, 0},
		{"root not required", false, ExportOptions{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := tt.opts
			opts.OutDir = t.TempDir()
			n, err := ExportBundles(newStore(tt.withRoot), opts)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Errorf("wrote %d bundles, want %d", n, tt.want)
			}
			entries, err := os.ReadDir(opts.OutDir)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d folders, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestEncodeContainer(t *testing.T) {
	// WHY: The export command's single-file formats must round-trip through
	// the matching decoder, and key-bearing formats need a key.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	contents := &certstore.ContainerContents{Leaf: p.leaf, Key: p.leafKey, ExtraCerts: []*x509kit.CapturedCertificate{p.intermediate}}

	for _, format := range []string{"pem", "der", "pkcs7", "pkcs12", "jks"} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			data, err := EncodeContainer(contents, format, "changeit")
			if err != nil {
				t.Fatal(err)
			}
			back, err := certstore.ParseContainerData(data, []string{"changeit"})
			if err != nil {
				t.Fatal(err)
			}
			if !back.Leaf.Equal(p.leaf) {
				t.Error("leaf changed")
			}
		})
	}

	noKey := &certstore.ContainerContents{Leaf: p.leaf}
	if _, err := EncodeContainer(noKey, "pkcs12", "x"); err == nil {
		t.Error("pkcs12 without key accepted")
	}
	if _, err := EncodeContainer(contents, "zip", ""); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := EncodeContainer(&certstore.ContainerContents{}, "pem", ""); err == nil {
		t.Error("empty contents accepted")
	}
}

func TestWriteBundle(t *testing.T) {
	// WHY: A bundle written for an explicit key must refuse a key that does
	// not belong to the leaf.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	bundle, err := x509kit.Bundle(p.leaf, x509kit.BundleOptions{Candidates: []*x509kit.CapturedCertificate{p.intermediate, p.root}})
	if err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	dir, err := WriteBundle(out, "my/site", bundle, p.leafKey, BundleFormats{})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(dir) != out {
		t.Errorf("bundle written to %s, outside %s", dir, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "fullchain.pem")); err != nil {
		t.Error(err)
	}

	if _, err := WriteBundle(out, "other", bundle, p.intermediateKey, BundleFormats{}); err == nil {
		t.Error("mismatched key accepted")
	}
}
