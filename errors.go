package x509kit

import "errors"

// Sentinel errors returned by the package. Failures wrap one of these with
// context, so callers match them with errors.Is.
var (
	// ErrMalformed reports a structural decode failure of an encoded object.
	ErrMalformed = errors.New("x509kit: malformed data")

	// ErrNoPEMBlock reports input that contained no usable PEM block.
	ErrNoPEMBlock = errors.New("x509kit: no PEM block found")

	ErrUnknownDigestAlgorithm    = errors.New("x509kit: unknown digest algorithm")
	ErrUnknownSignatureAlgorithm = errors.New("x509kit: unknown signature algorithm")
	ErrUnknownKeyAlgorithm       = errors.New("x509kit: unknown key algorithm")
	ErrUnknownEllipticCurve      = errors.New("x509kit: unknown elliptic curve")

	// ErrUnsupportedSignatureVerification reports a key algorithm and
	// signature algorithm that cannot be paired for verification.
	ErrUnsupportedSignatureVerification = errors.New("x509kit: unsupported signature verification")

	// ErrPKCSEncodeTooShort reports an EMSA-PKCS1-v1_5 target length that
	// cannot hold the encoded DigestInfo.
	ErrPKCSEncodeTooShort = errors.New("x509kit: PKCS#1 encoding target too short")

	// ErrUnhandledKeyAlgorithmParameters reports algorithm parameters on a
	// key algorithm that must have none (or NULL).
	ErrUnhandledKeyAlgorithmParameters = errors.New("x509kit: unhandled key algorithm parameters")

	// ErrSignatureVerificationFailed is the single opaque verification
	// failure. It does not distinguish wrong key from corrupted data.
	ErrSignatureVerificationFailed = errors.New("x509kit: certificate signature verification failed")

	ErrKeyPairGeneration            = errors.New("x509kit: key pair generation failed")
	ErrRSAKeyGenerationNotSupported = errors.New("x509kit: RSA key generation is not supported")
)
