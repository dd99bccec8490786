package certstore

import (
	"path/filepath"
	"strings"

	"github.com/sensiblebit/x509kit"
)

// Certificate roles as recorded in CertRecord.CertType.
const (
	CertTypeRoot         = "root"
	CertTypeIntermediate = "intermediate"
	CertTypeLeaf         = "leaf"
)

// binaryExtensions lists extensions that may hold DER or BER certificates,
// PKCS#7, PKCS#8, PKCS#12 or JKS data. Only these are fed to the binary
// parsers so arbitrary files are never treated as ASN.1.
var binaryExtensions = map[string]bool{
	".der": true, ".cer": true, ".crt": true, ".cert": true, ".ca": true,
	".pem": true, // sometimes DER despite the name
	".key": true, ".priv": true, ".p8": true,
	".p12": true, ".pfx": true,
	".p7b": true, ".p7c": true, ".p7": true, ".spc": true,
	".x509": true, ".chain": true, ".bundle": true,
	".jks": true, ".keystore": true, ".truststore": true,
}

// HasBinaryExtension reports whether path has a recognized binary
// certificate or key extension, case-insensitively. For virtual archive
// paths such as "certs.zip:server.der" only the part after the last ":"
// is considered.
func HasBinaryExtension(path string) bool {
	if idx := strings.LastIndex(path, ":"); idx >= 0 {
		path = path[idx+1:]
	}
	return binaryExtensions[strings.ToLower(filepath.Ext(path))]
}

// CertificateType classifies a certificate as root, intermediate or leaf.
// Only certificates whose basic constraints mark them as a CA are roots or
// intermediates; a self-signed end-entity certificate is a leaf.
func CertificateType(cert *x509kit.CapturedCertificate) string {
	if isCA, _, ok := cert.BasicConstraints(); ok && isCA {
		if cert.SubjectIsIssuer() {
			return CertTypeRoot
		}
		return CertTypeIntermediate
	}
	return CertTypeLeaf
}

// FormatCN returns the subject common name for display, falling back to
// "serial:<decimal>" when the subject has none.
func FormatCN(cert *x509kit.CapturedCertificate) string {
	if cn, ok := cert.SubjectCommonName(); ok && cn != "" {
		return cn
	}
	return "serial:" + cert.SerialNumber().String()
}

// SanitizeFileName replaces wildcards and path separators so a common name
// can be used as a file name.
func SanitizeFileName(name string) string {
	return strings.NewReplacer("*", "_", "/", "_", `\`, "_").Replace(name)
}
