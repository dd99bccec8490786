package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal/certstore"
)

// BundleFile is one file of an exported bundle.
type BundleFile struct {
	Name      string
	Data      []byte
	Sensitive bool
}

// BundleFormats selects the container files written next to the PEM files.
type BundleFormats struct {
	PKCS7    bool
	PKCS12   bool
	JKS      bool
	Password string
}

// GenerateBundleFiles renders a resolved bundle and its key as files:
// cert.pem, chain.pem, fullchain.pem and key.pem, plus the selected
// containers. chain.pem holds the intermediates only.
func GenerateBundleFiles(bundle *x509kit.BundleResult, key *x509kit.KeyPair, formats BundleFormats) ([]BundleFile, error) {
	keyPEM, err := KeyPEM(key)
	if err != nil {
		return nil, err
	}

	var chainPEM, fullPEM strings.Builder
	fullPEM.WriteString(bundle.Leaf.EncodePEM())
	for _, c := range bundle.Intermediates {
		chainPEM.WriteString(c.EncodePEM())
		fullPEM.WriteString(c.EncodePEM())
	}

	files := []BundleFile{
		{Name: "cert.pem", Data: []byte(bundle.Leaf.EncodePEM())},
		{Name: "chain.pem", Data: []byte(chainPEM.String())},
		{Name: "fullchain.pem", Data: []byte(fullPEM.String())},
		{Name: "key.pem", Data: keyPEM, Sensitive: true},
	}

	issuers := bundle.Chain()[1:]
	if formats.PKCS7 {
		der, err := x509kit.EncodePKCS7(bundle.Chain())
		if err != nil {
			return nil, fmt.Errorf("encoding PKCS#7: %w", err)
		}
		files = append(files, BundleFile{Name: "bundle.p7b", Data: der})
	}
	if formats.PKCS12 {
		pfx, err := x509kit.EncodePKCS12(key, bundle.Leaf, issuers, formats.Password)
		if err != nil {
			return nil, fmt.Errorf("encoding PKCS#12: %w", err)
		}
		files = append(files, BundleFile{Name: "bundle.p12", Data: pfx, Sensitive: true})
	}
	if formats.JKS {
		ks, err := x509kit.EncodeJKS(key, bundle.Leaf, issuers, formats.Password)
		if err != nil {
			return nil, fmt.Errorf("encoding JKS: %w", err)
		}
		files = append(files, BundleFile{Name: "bundle.jks", Data: ks, Sensitive: true})
	}
	return files, nil
}

// filesystemWriter writes bundle files to the local filesystem under outDir.
type filesystemWriter struct {
	outDir string
}

// WriteBundleFiles creates the folder and writes each file with appropriate permissions.
func (w *filesystemWriter) WriteBundleFiles(folder string, files []BundleFile) error {
	folderPath := filepath.Join(w.outDir, folder)
	if err := os.MkdirAll(folderPath, 0755); err != nil {
		return fmt.Errorf("creating bundle directory %s: %w", folderPath, err)
	}

	for _, f := range files {
		mode := os.FileMode(0644)
		if f.Sensitive {
			mode = 0600
		}
		if err := os.WriteFile(filepath.Join(folderPath, f.Name), f.Data, mode); err != nil {
			return fmt.Errorf("writing %s: %w", f.Name, err)
		}
	}
	return nil
}

// WriteBundle writes the files for one resolved bundle into
// outDir/<name> and returns the folder path. The key must belong to the
// bundle's leaf.
func WriteBundle(outDir, name string, bundle *x509kit.BundleResult, key *x509kit.KeyPair, formats BundleFormats) (string, error) {
	if !keyMatchesCert(key, bundle.Leaf) {
		return "", fmt.Errorf("private key does not match %s", bundle.Leaf.Subject())
	}
	files, err := GenerateBundleFiles(bundle, key, formats)
	if err != nil {
		return "", err
	}
	folder := certstore.SanitizeFileName(name)
	w := &filesystemWriter{outDir: outDir}
	if err := w.WriteBundleFiles(folder, files); err != nil {
		return "", err
	}
	return filepath.Join(outDir, folder), nil
}

// ExportOptions configures ExportBundles.
type ExportOptions struct {
	OutDir       string
	Profiles     []Profile
	Duplicates   bool
	MozillaRoots bool
	RequireRoot  bool
	Formats      BundleFormats
}

// ExportBundles writes one folder per leaf certificate that has a matching
// key. The newest certificate for a key gets the bundle name; older ones
// are written only with Duplicates, suffixed with expiry and serial. It
// returns the number of bundles written.
func ExportBundles(store *certstore.MemStore, opts ExportOptions) (int, error) {
	w := &filesystemWriter{outDir: opts.OutDir}
	candidates := store.Certificates()
	written := 0

	for _, ski := range store.MatchedPairs() {
		keyRec := store.GetKey(ski)
		if keyRec == nil {
			continue
		}
		var leaves []*certstore.CertRecord
		for _, rec := range store.CertsBySKI(ski) {
			if rec.CertType == certstore.CertTypeLeaf {
				leaves = append(leaves, rec)
			}
		}

		for i, certRec := range leaves {
			cn := certstore.FormatCN(certRec.Cert)
			folder := certstore.SanitizeFileName(BundleName(cn, opts.Profiles))
			if i > 0 {
				if !opts.Duplicates {
					slog.Debug("skipping older certificate (use --duplicates to export)",
						"bundle", folder, "serial", certRec.Cert.SerialNumber(), "expiry", certRec.NotAfter.Format(time.RFC3339))
					continue
				}
				folder = fmt.Sprintf("%s_%s_%s", folder, certRec.NotAfter.UTC().Format("2006-01-02"), certRec.Cert.SerialNumber())
			}

			bundle, err := x509kit.Bundle(certRec.Cert, x509kit.BundleOptions{
				Candidates:   candidates,
				MozillaRoots: opts.MozillaRoots,
				ExpiryWindow: 30 * 24 * time.Hour,
			})
			if err != nil {
				return written, fmt.Errorf("resolving chain for %s: %w", cn, err)
			}
			for _, warning := range bundle.Warnings {
				slog.Warn("bundle warning", "cn", cn, "warning", warning)
			}
			if opts.RequireRoot && bundle.Root == nil {
				slog.Warn("skipping bundle without a root (use --force to export anyway)", "cn", cn)
				continue
			}

			files, err := GenerateBundleFiles(bundle, keyRec.Key, opts.Formats)
			if err != nil {
				slog.Warn("exporting bundle", "cn", cn, "error", err)
				continue
			}
			if err := w.WriteBundleFiles(folder, files); err != nil {
				return written, err
			}
			slog.Info("exported bundle", "folder", folder, "cn", cn, "intermediates", len(bundle.Intermediates), "root", bundle.Root != nil)
			written++
		}
	}
	return written, nil
}

// EncodeContainer converts a leaf, optional key and chain to a single
// output format: pem, der, pkcs7, pkcs12 or jks.
func EncodeContainer(contents *certstore.ContainerContents, format, password string) ([]byte, error) {
	if contents.Leaf == nil {
		return nil, fmt.Errorf("no certificate to export")
	}
	certs := append([]*x509kit.CapturedCertificate{contents.Leaf}, contents.ExtraCerts...)

	switch format {
	case "pem":
		var sb strings.Builder
		for _, c := range certs {
			sb.WriteString(c.EncodePEM())
		}
		if contents.Key != nil {
			keyPEM, err := KeyPEM(contents.Key)
			if err != nil {
				return nil, err
			}
			sb.Write(keyPEM)
		}
		return []byte(sb.String()), nil
	case "der":
		return contents.Leaf.DERBytes()
	case "pkcs7":
		return x509kit.EncodePKCS7(certs)
	case "pkcs12", "jks":
		if contents.Key == nil {
			return nil, fmt.Errorf("%s export needs a private key", format)
		}
		if format == "pkcs12" {
			return x509kit.EncodePKCS12(contents.Key, contents.Leaf, contents.ExtraCerts, password)
		}
		return x509kit.EncodeJKS(contents.Key, contents.Leaf, contents.ExtraCerts, password)
	}
	return nil, fmt.Errorf("unsupported export format %q (use pem, der, pkcs7, pkcs12, or jks)", format)
}
