package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"
	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal/certstore"
)

// InspectResult holds the inspection details for one object in a file.
type InspectResult struct {
	Type       string          `json:"type"`
	Subject    string          `json:"subject,omitempty"`
	Issuer     string          `json:"issuer,omitempty"`
	Serial     string          `json:"serial,omitempty"`
	NotBefore  string          `json:"not_before,omitempty"`
	NotAfter   string          `json:"not_after,omitempty"`
	CertType   string          `json:"cert_type,omitempty"`
	Encoding   string          `json:"encoding,omitempty"`
	Key        string          `json:"key,omitempty"`
	KeyUsages  []string        `json:"key_usages,omitempty"`
	SHA256     string          `json:"sha256_fingerprint,omitempty"`
	SHA1       string          `json:"sha1_fingerprint,omitempty"`
	SKI        string          `json:"subject_key_id,omitempty"`
	SigAlg     string          `json:"signature_algorithm,omitempty"`
	CSRSubject string          `json:"csr_subject,omitempty"`
	JWK        json.RawMessage `json:"jwk,omitempty"`

	cert *x509kit.CapturedCertificate
}

// inspectCollector keeps everything the pipeline finds, in order.
type inspectCollector struct {
	results []InspectResult
}

func (c *inspectCollector) HandleCertificate(cert *x509kit.CapturedCertificate, _ string) error {
	c.results = append(c.results, inspectCert(cert))
	return nil
}

func (c *inspectCollector) HandleKey(kp *x509kit.KeyPair, _ string) error {
	r, err := inspectKey(kp)
	if err != nil {
		return err
	}
	c.results = append(c.results, r)
	return nil
}

// InspectFile reads a file (or stdin for "-") and returns inspection
// results for all objects found.
func InspectFile(path string, passwords []string) ([]InspectResult, error) {
	data, err := ReadInput(path, DefaultMaxInputSize)
	if err != nil {
		return nil, err
	}
	results, err := InspectData(data, path, passwords)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	return results, nil
}

// InspectData returns inspection results for the certificates, keys and
// certification requests in data.
func InspectData(data []byte, name string, passwords []string) ([]InspectResult, error) {
	collector := &inspectCollector{}
	if err := certstore.ProcessData(certstore.ProcessInput{
		Data:        data,
		Path:        name,
		Passwords:   passwords,
		Handler:     collector,
		ForceBinary: true,
	}); err != nil {
		return nil, err
	}
	results := collector.results

	var csr *x509kit.CertificationRequest
	if x509kit.IsPEM(data) {
		csr, _ = x509kit.ParseCertificationRequestPEM(data)
	} else if len(results) == 0 {
		csr, _ = x509kit.ParseCertificationRequestDER(data)
	}
	if csr != nil {
		results = append(results, inspectCSR(csr))
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("no certificates, keys, or CSRs found")
	}
	return results, nil
}

func inspectCert(cert *x509kit.CapturedCertificate) InspectResult {
	r := InspectResult{
		Type:      "certificate",
		Subject:   cert.Subject().String(),
		Issuer:    cert.Issuer().String(),
		Serial:    cert.SerialNumber().String(),
		NotBefore: cert.NotBefore().UTC().Format(time.RFC3339),
		NotAfter:  cert.NotAfter().UTC().Format(time.RFC3339),
		CertType:  certstore.CertificateType(cert),
		Encoding:  cert.Encoding().String(),
		Key:       x509kit.KeyDescription(cert),
		SKI:       x509kit.ColonHex(x509kit.ComputeSKI(cert.PublicKeyData())),
		cert:      cert,
	}
	for _, ku := range cert.KeyUsages() {
		r.KeyUsages = append(r.KeyUsages, ku.String())
	}
	if fp, err := cert.SHA256Fingerprint(); err == nil {
		r.SHA256 = x509kit.ColonHex(fp)
	}
	if fp, err := cert.SHA1Fingerprint(); err == nil {
		r.SHA1 = x509kit.ColonHex(fp)
	}
	if sig, err := cert.SignatureAlgorithm(); err == nil {
		r.SigAlg = sig.String()
	} else {
		r.SigAlg = cert.SignatureAlgorithmOID().String()
	}
	return r
}

func inspectCSR(csr *x509kit.CertificationRequest) InspectResult {
	r := InspectResult{
		Type:       "csr",
		CSRSubject: csr.Subject().String(),
		Key:        x509kit.KeyDescription(csr),
		SKI:        x509kit.ColonHex(x509kit.ComputeSKI(csr.PublicKeyData())),
	}
	if sig, err := csr.SignatureAlgorithm(); err == nil {
		r.SigAlg = sig.String()
	}
	return r
}

func inspectKey(kp *x509kit.KeyPair) (InspectResult, error) {
	r := InspectResult{
		Type: "private_key",
		Key:  x509kit.KeyDescription(kp),
		SKI:  x509kit.ColonHex(x509kit.ComputeSKI(kp.PublicKeyData())),
	}
	if signer := kp.Signer(); signer != nil {
		jwk, err := PublicJWK(signer.Public())
		if err != nil {
			return r, err
		}
		data, err := json.Marshal(jwk)
		if err != nil {
			return r, fmt.Errorf("marshaling JWK: %w", err)
		}
		r.JWK = data
	}
	return r, nil
}

// FormatInspectResults formats inspection results as text, JSON, or the
// OpenSSL-style certificate dump.
func FormatInspectResults(results []InspectResult, format string) (string, error) {
	switch format {
	case "text":
		return formatInspectText(results), nil
	case "json":
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "openssl":
		return formatInspectOpenSSL(results)
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json or openssl)", format)
	}
}

// formatInspectOpenSSL renders certificates the way "openssl x509 -text"
// does. Keys and requests fall back to the text form.
func formatInspectOpenSSL(results []InspectResult) (string, error) {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		if r.cert == nil {
			sb.WriteString(formatInspectText([]InspectResult{r}))
			continue
		}
		der, err := r.cert.DERBytes()
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", r.Subject, err)
		}
		cert, err := ctx509.ParseCertificate(der)
		if ctx509.IsFatal(err) {
			return "", fmt.Errorf("parsing %s: %w", r.Subject, err)
		}
		sb.WriteString(x509util.CertificateToString(cert))
	}
	return sb.String(), nil
}

func formatInspectText(results []InspectResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch r.Type {
		case "certificate":
			fmt.Fprintf(&sb, "Certificate:\n")
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.Subject)
			fmt.Fprintf(&sb, "  Issuer:      %s\n", r.Issuer)
			fmt.Fprintf(&sb, "  Serial:      %s\n", r.Serial)
			fmt.Fprintf(&sb, "  Type:        %s\n", r.CertType)
			fmt.Fprintf(&sb, "  Encoding:    %s\n", r.Encoding)
			fmt.Fprintf(&sb, "  Not Before:  %s\n", r.NotBefore)
			fmt.Fprintf(&sb, "  Not After:   %s\n", r.NotAfter)
			fmt.Fprintf(&sb, "  Key:         %s\n", r.Key)
			if len(r.KeyUsages) > 0 {
				fmt.Fprintf(&sb, "  Key Usage:   %s\n", strings.Join(r.KeyUsages, ", "))
			}
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			fmt.Fprintf(&sb, "  SHA-256:     %s\n", r.SHA256)
			fmt.Fprintf(&sb, "  SHA-1:       %s\n", r.SHA1)
			fmt.Fprintf(&sb, "  SKI:         %s\n", r.SKI)
		case "csr":
			fmt.Fprintf(&sb, "Certificate Signing Request:\n")
			fmt.Fprintf(&sb, "  Subject:     %s\n", r.CSRSubject)
			fmt.Fprintf(&sb, "  Key:         %s\n", r.Key)
			fmt.Fprintf(&sb, "  Signature:   %s\n", r.SigAlg)
			fmt.Fprintf(&sb, "  SKI:         %s\n", r.SKI)
		case "private_key":
			fmt.Fprintf(&sb, "Private Key:\n")
			fmt.Fprintf(&sb, "  Key:         %s\n", r.Key)
			fmt.Fprintf(&sb, "  SKI:         %s\n", r.SKI)
		}
	}
	return sb.String()
}
