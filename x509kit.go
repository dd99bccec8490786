// Package x509kit decodes, verifies and builds X.509 certificates and
// certification requests.
//
// Certificates are decoded into a Certificate view; a CapturedCertificate
// additionally keeps the exact bytes it was decoded from so signatures are
// always checked over the original signed bytes. Builder creates new
// certificates and requests from a KeyPair, and the container helpers move
// captured certificates and key pairs in and out of PKCS#7, PKCS#12 and JKS.
package x509kit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ColonHex formats b as lowercase colon-separated hex pairs.
func ColonHex(b []byte) string {
	h := hex.EncodeToString(b)
	parts := make([]string, 0, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		parts = append(parts, h[i:i+2])
	}
	return strings.Join(parts, ":")
}

// ComputeSKI computes a subject key identifier from public key bit string
// contents using RFC 7093 method 1 (leftmost 160 bits of SHA-256).
func ComputeSKI(publicKey []byte) []byte {
	sum := sha256.Sum256(publicKey)
	return sum[:20]
}

// KeyDescription describes a public key, for example "RSA 2048 bits",
// "ECDSA P-256" or "ED25519".
func KeyDescription(key PublicKeyInfo) string {
	alg, err := key.KeyAlgorithm()
	if err != nil {
		return "unknown"
	}
	switch alg.Kind {
	case KeyKindRSA:
		pub, err := parseRSAPublicKey(key.PublicKeyData())
		if err != nil {
			return alg.String()
		}
		return fmt.Sprintf("%s %d bits", alg, modulusBits(pub.Modulus))
	case KeyKindECDSA:
		return fmt.Sprintf("%s %s", alg, alg.Curve)
	}
	return alg.String()
}

func modulusBits(m []byte) int {
	for len(m) > 0 && m[0] == 0 {
		m = m[1:]
	}
	if len(m) == 0 {
		return 0
	}
	bits := 8 * (len(m) - 1)
	for b := m[0]; b != 0; b >>= 1 {
		bits++
	}
	return bits
}
