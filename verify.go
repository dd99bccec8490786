package x509kit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"math/big"
)

// RSA moduli outside this range are rejected by verification.
const (
	minRSAVerifyBits = 2048
	maxRSAVerifyBits = 8192
)

// VerificationAlgorithm is a concrete signature verification primitive: a
// key family (and curve for ECDSA) combined with a digest. Values are
// comparable with ==.
type VerificationAlgorithm struct {
	kind  KeyKind
	curve EcdsaCurve
	hash  DigestAlgorithm
}

// Verification primitives.
var (
	VerifyRSAPKCS1SHA1   = VerificationAlgorithm{kind: KeyKindRSA, hash: SHA1}
	VerifyRSAPKCS1SHA256 = VerificationAlgorithm{kind: KeyKindRSA, hash: SHA256}
	VerifyRSAPKCS1SHA384 = VerificationAlgorithm{kind: KeyKindRSA, hash: SHA384}
	VerifyRSAPKCS1SHA512 = VerificationAlgorithm{kind: KeyKindRSA, hash: SHA512}

	VerifyECDSAP256SHA256 = VerificationAlgorithm{kind: KeyKindECDSA, curve: CurveP256, hash: SHA256}
	VerifyECDSAP256SHA384 = VerificationAlgorithm{kind: KeyKindECDSA, curve: CurveP256, hash: SHA384}
	VerifyECDSAP384SHA256 = VerificationAlgorithm{kind: KeyKindECDSA, curve: CurveP384, hash: SHA256}
	VerifyECDSAP384SHA384 = VerificationAlgorithm{kind: KeyKindECDSA, curve: CurveP384, hash: SHA384}

	VerifyEd25519 = VerificationAlgorithm{kind: KeyKindEd25519}
)

// VerificationAlgorithm pairs s with a key algorithm. Legal pairings are the
// RSA variants with RSA keys, PureEd25519 with Ed25519 keys, and the ECDSA
// variants with P-256 or P-384 keys (either digest on either curve).
func (s SignatureAlgorithm) VerificationAlgorithm(key KeyAlgorithm) (VerificationAlgorithm, error) {
	switch key.Kind {
	case KeyKindRSA:
		switch s {
		case SHA1WithRSA:
			return VerifyRSAPKCS1SHA1, nil
		case SHA256WithRSA:
			return VerifyRSAPKCS1SHA256, nil
		case SHA384WithRSA:
			return VerifyRSAPKCS1SHA384, nil
		case SHA512WithRSA:
			return VerifyRSAPKCS1SHA512, nil
		}
	case KeyKindEd25519:
		if s == PureEd25519 {
			return VerifyEd25519, nil
		}
	case KeyKindECDSA:
		if key.Curve == CurveP256 || key.Curve == CurveP384 {
			switch s {
			case ECDSAWithSHA256:
				return VerificationAlgorithm{kind: KeyKindECDSA, curve: key.Curve, hash: SHA256}, nil
			case ECDSAWithSHA384:
				return VerificationAlgorithm{kind: KeyKindECDSA, curve: key.Curve, hash: SHA384}, nil
			}
		}
	}
	return VerificationAlgorithm{}, fmt.Errorf("%w: key algorithm %s with signature algorithm %s",
		ErrUnsupportedSignatureVerification, key, s)
}

// Verify checks signature over message with the raw public key bytes: a
// PKCS#1 RSAPublicKey for RSA, an uncompressed point for ECDSA, and the
// 32-byte key for Ed25519. Every failure is ErrSignatureVerificationFailed.
func (v VerificationAlgorithm) Verify(publicKey, message, signature []byte) error {
	var ok bool
	switch v.kind {
	case KeyKindRSA:
		ok = verifyRSA(v.hash, publicKey, message, signature)
	case KeyKindECDSA:
		ok = verifyECDSA(v.curve, v.hash, publicKey, message, signature)
	case KeyKindEd25519:
		ok = len(publicKey) == ed25519.PublicKeySize &&
			ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
	}
	if !ok {
		return ErrSignatureVerificationFailed
	}
	return nil
}

func (v VerificationAlgorithm) String() string {
	switch v.kind {
	case KeyKindRSA:
		return "RSA_PKCS1_" + v.hash.String()
	case KeyKindECDSA:
		return "ECDSA_" + v.curve.String() + "_" + v.hash.String()
	case KeyKindEd25519:
		return "ED25519"
	}
	return "unknown verification algorithm"
}

func verifyRSA(d DigestAlgorithm, publicKey, message, signature []byte) bool {
	pub, err := x509.ParsePKCS1PublicKey(publicKey)
	if err != nil {
		return false
	}
	if bits := pub.N.BitLen(); bits < minRSAVerifyBits || bits > maxRSAVerifyBits {
		return false
	}
	return rsa.VerifyPKCS1v15(pub, d.Hash(), digest(d.Hash(), message), signature) == nil
}

func verifyECDSA(curve EcdsaCurve, d DigestAlgorithm, publicKey, message, signature []byte) bool {
	pub, err := parseUncompressedPoint(curve, publicKey)
	if err != nil {
		return false
	}
	return ecdsa.VerifyASN1(pub, digest(d.Hash(), message), signature)
}

// parseUncompressedPoint decodes an SEC 1 uncompressed point and checks it
// lies on the curve.
func parseUncompressedPoint(curve EcdsaCurve, data []byte) (*ecdsa.PublicKey, error) {
	c := curve.Curve()
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEllipticCurve, curve)
	}
	size := (c.Params().BitSize + 7) / 8
	if len(data) != 1+2*size || data[0] != 4 {
		return nil, fmt.Errorf("%w: not an uncompressed %s point", ErrMalformed, curve)
	}
	pub := &ecdsa.PublicKey{
		Curve: c,
		X:     new(big.Int).SetBytes(data[1 : 1+size]),
		Y:     new(big.Int).SetBytes(data[1+size:]),
	}
	if _, err := pub.ECDH(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return pub, nil
}

func digest(h crypto.Hash, message []byte) []byte {
	if !h.Available() {
		return nil
	}
	hh := h.New()
	hh.Write(message)
	return hh.Sum(nil)
}
