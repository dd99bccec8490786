package x509kit

import (
	"crypto"
	"crypto/elliptic"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// DigestAlgorithm is a message digest algorithm.
type DigestAlgorithm int

// Supported digest algorithms.
const (
	SHA1 DigestAlgorithm = iota + 1
	SHA256
	SHA384
	SHA512
)

// DigestAlgorithmFromOID resolves a digest algorithm OID.
func DigestAlgorithmFromOID(oid asn1.ObjectIdentifier) (DigestAlgorithm, error) {
	switch {
	case oid.Equal(OIDSHA1):
		return SHA1, nil
	case oid.Equal(OIDSHA256):
		return SHA256, nil
	case oid.Equal(OIDSHA384):
		return SHA384, nil
	case oid.Equal(OIDSHA512):
		return SHA512, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownDigestAlgorithm, oid)
}

// OID returns the algorithm's object identifier, or nil for an invalid value.
func (d DigestAlgorithm) OID() asn1.ObjectIdentifier {
	switch d {
	case SHA1:
		return OIDSHA1
	case SHA256:
		return OIDSHA256
	case SHA384:
		return OIDSHA384
	case SHA512:
		return OIDSHA512
	}
	return nil
}

// AlgorithmIdentifier returns the identifier with absent parameters.
func (d DigestAlgorithm) AlgorithmIdentifier() pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{Algorithm: d.OID()}
}

// Hash returns the crypto.Hash implementing d.
func (d DigestAlgorithm) Hash() crypto.Hash {
	switch d {
	case SHA1:
		return crypto.SHA1
	case SHA256:
		return crypto.SHA256
	case SHA384:
		return crypto.SHA384
	case SHA512:
		return crypto.SHA512
	}
	return 0
}

func (d DigestAlgorithm) String() string {
	switch d {
	case SHA1:
		return "SHA-1"
	case SHA256:
		return "SHA-256"
	case SHA384:
		return "SHA-384"
	case SHA512:
		return "SHA-512"
	}
	return fmt.Sprintf("DigestAlgorithm(%d)", int(d))
}

// EcdsaCurve is a named elliptic curve usable for ECDSA keys.
type EcdsaCurve int

// Supported curves.
const (
	CurveP256 EcdsaCurve = iota + 1
	CurveP384
)

// AllCurves returns every supported curve.
func AllCurves() []EcdsaCurve {
	return []EcdsaCurve{CurveP256, CurveP384}
}

// EcdsaCurveFromOID resolves a named curve OID.
func EcdsaCurveFromOID(oid asn1.ObjectIdentifier) (EcdsaCurve, error) {
	switch {
	case oid.Equal(OIDCurveP256):
		return CurveP256, nil
	case oid.Equal(OIDCurveP384):
		return CurveP384, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownEllipticCurve, oid)
}

// OID returns the named curve OID.
func (c EcdsaCurve) OID() asn1.ObjectIdentifier {
	switch c {
	case CurveP256:
		return OIDCurveP256
	case CurveP384:
		return OIDCurveP384
	}
	return nil
}

// Curve returns the crypto/elliptic implementation of c.
func (c EcdsaCurve) Curve() elliptic.Curve {
	switch c {
	case CurveP256:
		return elliptic.P256()
	case CurveP384:
		return elliptic.P384()
	}
	return nil
}

// SignatureAlgorithm returns the signature algorithm a key on this curve
// signs with.
func (c EcdsaCurve) SignatureAlgorithm() SignatureAlgorithm {
	if c == CurveP384 {
		return ECDSAWithSHA384
	}
	return ECDSAWithSHA256
}

func (c EcdsaCurve) String() string {
	switch c {
	case CurveP256:
		return "P-256"
	case CurveP384:
		return "P-384"
	}
	return fmt.Sprintf("EcdsaCurve(%d)", int(c))
}

// KeyKind is the family of a public key algorithm.
type KeyKind int

// Key algorithm families.
const (
	KeyKindRSA KeyKind = iota + 1
	KeyKindECDSA
	KeyKindEd25519
)

// KeyAlgorithm is a public key algorithm. For ECDSA the curve is part of the
// value; it is zero for the other kinds.
type KeyAlgorithm struct {
	Kind  KeyKind
	Curve EcdsaCurve
}

var (
	KeyAlgorithmRSA     = KeyAlgorithm{Kind: KeyKindRSA}
	KeyAlgorithmEd25519 = KeyAlgorithm{Kind: KeyKindEd25519}
)

// KeyAlgorithmECDSA returns the ECDSA key algorithm on curve.
func KeyAlgorithmECDSA(curve EcdsaCurve) KeyAlgorithm {
	return KeyAlgorithm{Kind: KeyKindECDSA, Curve: curve}
}

// KeyAlgorithmFromOID resolves a bare key algorithm OID. Because the curve of
// an ECDSA key lives in the algorithm parameters, the EC public key OID
// resolves to a P-384 placeholder; use KeyAlgorithmFromIdentifier when the
// parameters are available.
func KeyAlgorithmFromOID(oid asn1.ObjectIdentifier) (KeyAlgorithm, error) {
	switch {
	case oid.Equal(OIDRSAEncryption):
		return KeyAlgorithmRSA, nil
	case oid.Equal(OIDECPublicKey):
		return KeyAlgorithmECDSA(CurveP384), nil
	case oid.Equal(OIDEd25519KeyAgreement), oid.Equal(OIDEd25519Signature):
		return KeyAlgorithmEd25519, nil
	}
	return KeyAlgorithm{}, fmt.Errorf("%w: %s", ErrUnknownKeyAlgorithm, oid)
}

// KeyAlgorithmFromIdentifier resolves a key algorithm together with its
// parameters. ECDSA parameters must name a supported curve; RSA and Ed25519
// parameters must be absent or NULL.
func KeyAlgorithmFromIdentifier(ai pkix.AlgorithmIdentifier) (KeyAlgorithm, error) {
	alg, err := KeyAlgorithmFromOID(ai.Algorithm)
	if err != nil {
		return KeyAlgorithm{}, err
	}
	params := ai.Parameters.FullBytes

	switch alg.Kind {
	case KeyKindECDSA:
		if len(params) == 0 {
			return alg, nil
		}
		var curveOID asn1.ObjectIdentifier
		rest, err := asn1.Unmarshal(params, &curveOID)
		if err != nil {
			return KeyAlgorithm{}, fmt.Errorf("%w: decoding curve parameters: %w", ErrMalformed, err)
		}
		if len(rest) > 0 {
			return KeyAlgorithm{}, fmt.Errorf("%w: trailing data after curve parameters", ErrMalformed)
		}
		curve, err := EcdsaCurveFromOID(curveOID)
		if err != nil {
			return KeyAlgorithm{}, err
		}
		return KeyAlgorithmECDSA(curve), nil
	default:
		if len(params) == 0 || isNull(params) {
			return alg, nil
		}
		return KeyAlgorithm{}, fmt.Errorf("%w on %s", ErrUnhandledKeyAlgorithmParameters, alg)
	}
}

// OID returns the key algorithm OID. Ed25519 maps to the key agreement OID.
func (k KeyAlgorithm) OID() asn1.ObjectIdentifier {
	switch k.Kind {
	case KeyKindRSA:
		return OIDRSAEncryption
	case KeyKindECDSA:
		return OIDECPublicKey
	case KeyKindEd25519:
		return OIDEd25519KeyAgreement
	}
	return nil
}

// AlgorithmIdentifier returns the subject public key algorithm identifier.
// ECDSA carries the curve OID, RSA carries NULL and Ed25519 has no
// parameters.
func (k KeyAlgorithm) AlgorithmIdentifier() pkix.AlgorithmIdentifier {
	ai := pkix.AlgorithmIdentifier{Algorithm: k.OID()}
	switch k.Kind {
	case KeyKindECDSA:
		// Marshaling a known OID cannot fail.
		params, _ := asn1.Marshal(k.Curve.OID())
		ai.Parameters = asn1.RawValue{FullBytes: params}
	case KeyKindRSA:
		ai.Parameters = asn1.NullRawValue
	}
	return ai
}

func (k KeyAlgorithm) String() string {
	switch k.Kind {
	case KeyKindRSA:
		return "RSA"
	case KeyKindECDSA:
		return "ECDSA"
	case KeyKindEd25519:
		return "ED25519"
	}
	return fmt.Sprintf("KeyAlgorithm(%d)", int(k.Kind))
}

type signatureScheme int

const (
	schemeSHA1WithRSA signatureScheme = iota + 1
	schemeSHA256WithRSA
	schemeSHA384WithRSA
	schemeSHA512WithRSA
	schemeECDSAWithSHA256
	schemeECDSAWithSHA384
	schemeEd25519
	schemeNoSignature
)

// SignatureAlgorithm is a signature algorithm. Values are comparable with ==.
// NoSignature carries the digest it was paired with.
type SignatureAlgorithm struct {
	scheme signatureScheme
	digest DigestAlgorithm
}

// Supported signature algorithms.
var (
	SHA1WithRSA     = SignatureAlgorithm{scheme: schemeSHA1WithRSA}
	SHA256WithRSA   = SignatureAlgorithm{scheme: schemeSHA256WithRSA}
	SHA384WithRSA   = SignatureAlgorithm{scheme: schemeSHA384WithRSA}
	SHA512WithRSA   = SignatureAlgorithm{scheme: schemeSHA512WithRSA}
	ECDSAWithSHA256 = SignatureAlgorithm{scheme: schemeECDSAWithSHA256}
	ECDSAWithSHA384 = SignatureAlgorithm{scheme: schemeECDSAWithSHA384}
	PureEd25519     = SignatureAlgorithm{scheme: schemeEd25519}
)

// NoSignature returns the unsigned algorithm paired with digest d.
func NoSignature(d DigestAlgorithm) SignatureAlgorithm {
	return SignatureAlgorithm{scheme: schemeNoSignature, digest: d}
}

// SignatureAlgorithmFromOID resolves a signature algorithm OID. The
// no-signature OID is rejected here because it does not identify a digest;
// see ResolveSignatureAlgorithm.
func SignatureAlgorithmFromOID(oid asn1.ObjectIdentifier) (SignatureAlgorithm, error) {
	switch {
	case oid.Equal(OIDSHA1WithRSA):
		return SHA1WithRSA, nil
	case oid.Equal(OIDSHA256WithRSA):
		return SHA256WithRSA, nil
	case oid.Equal(OIDSHA384WithRSA):
		return SHA384WithRSA, nil
	case oid.Equal(OIDSHA512WithRSA):
		return SHA512WithRSA, nil
	case oid.Equal(OIDECDSAWithSHA256):
		return ECDSAWithSHA256, nil
	case oid.Equal(OIDECDSAWithSHA384):
		return ECDSAWithSHA384, nil
	case oid.Equal(OIDEd25519Signature):
		return PureEd25519, nil
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: %s", ErrUnknownSignatureAlgorithm, oid)
}

// SignatureAlgorithmFromIdentifier resolves the algorithm of an identifier,
// ignoring its parameters.
func SignatureAlgorithmFromIdentifier(ai pkix.AlgorithmIdentifier) (SignatureAlgorithm, error) {
	return SignatureAlgorithmFromOID(ai.Algorithm)
}

// ResolveSignatureAlgorithm resolves oid leniently. Signers commonly place a
// bare key algorithm OID, or the no-signature OID, where a signature
// algorithm belongs, and state the digest separately; fallback supplies
// that digest. Resolution order is: signature OID, key OID combined with
// fallback, no-signature OID wrapping fallback.
func ResolveSignatureAlgorithm(oid asn1.ObjectIdentifier, fallback DigestAlgorithm) (SignatureAlgorithm, error) {
	if alg, err := SignatureAlgorithmFromOID(oid); err == nil {
		return alg, nil
	}

	if key, err := KeyAlgorithmFromOID(oid); err == nil {
		switch key.Kind {
		case KeyKindRSA:
			switch fallback {
			case SHA1:
				return SHA1WithRSA, nil
			case SHA256:
				return SHA256WithRSA, nil
			case SHA384:
				return SHA384WithRSA, nil
			case SHA512:
				return SHA512WithRSA, nil
			}
		case KeyKindECDSA:
			switch fallback {
			case SHA256:
				return ECDSAWithSHA256, nil
			case SHA384:
				return ECDSAWithSHA384, nil
			}
			return SignatureAlgorithm{}, fmt.Errorf("%w: cannot use digest %s with ECDSA", ErrUnknownSignatureAlgorithm, fallback)
		case KeyKindEd25519:
			return PureEd25519, nil
		}
	}

	if oid.Equal(OIDNoSignature) {
		return NoSignature(fallback), nil
	}

	return SignatureAlgorithm{}, fmt.Errorf("%w: do not know how to resolve %s to a signature algorithm", ErrUnknownSignatureAlgorithm, oid)
}

// OID returns the signature algorithm OID. Every NoSignature variant maps to
// OIDNoSignature.
func (s SignatureAlgorithm) OID() asn1.ObjectIdentifier {
	switch s.scheme {
	case schemeSHA1WithRSA:
		return OIDSHA1WithRSA
	case schemeSHA256WithRSA:
		return OIDSHA256WithRSA
	case schemeSHA384WithRSA:
		return OIDSHA384WithRSA
	case schemeSHA512WithRSA:
		return OIDSHA512WithRSA
	case schemeECDSAWithSHA256:
		return OIDECDSAWithSHA256
	case schemeECDSAWithSHA384:
		return OIDECDSAWithSHA384
	case schemeEd25519:
		return OIDEd25519Signature
	case schemeNoSignature:
		return OIDNoSignature
	}
	return nil
}

// AlgorithmIdentifier returns the identifier used in certificates and
// requests. RSA variants carry NULL parameters (RFC 4055); the others have
// none.
func (s SignatureAlgorithm) AlgorithmIdentifier() pkix.AlgorithmIdentifier {
	ai := pkix.AlgorithmIdentifier{Algorithm: s.OID()}
	if s.isRSA() {
		ai.Parameters = asn1.NullRawValue
	}
	return ai
}

// DigestAlgorithm returns the digest the algorithm hashes with. PureEd25519
// has none and reports false.
func (s SignatureAlgorithm) DigestAlgorithm() (DigestAlgorithm, bool) {
	switch s.scheme {
	case schemeSHA1WithRSA:
		return SHA1, true
	case schemeSHA256WithRSA, schemeECDSAWithSHA256:
		return SHA256, true
	case schemeSHA384WithRSA, schemeECDSAWithSHA384:
		return SHA384, true
	case schemeSHA512WithRSA:
		return SHA512, true
	case schemeNoSignature:
		return s.digest, true
	}
	return 0, false
}

func (s SignatureAlgorithm) isRSA() bool {
	switch s.scheme {
	case schemeSHA1WithRSA, schemeSHA256WithRSA, schemeSHA384WithRSA, schemeSHA512WithRSA:
		return true
	}
	return false
}

func (s SignatureAlgorithm) String() string {
	switch s.scheme {
	case schemeSHA1WithRSA, schemeSHA256WithRSA, schemeSHA384WithRSA, schemeSHA512WithRSA:
		d, _ := s.DigestAlgorithm()
		return d.String() + " with RSA encryption"
	case schemeECDSAWithSHA256, schemeECDSAWithSHA384:
		d, _ := s.DigestAlgorithm()
		return "ECDSA with " + d.String()
	case schemeEd25519:
		return "ED25519"
	case schemeNoSignature:
		return "No signature with " + s.digest.String()
	}
	return "unknown signature algorithm"
}

// isNull reports whether der is the ASN.1 NULL encoding.
func isNull(der []byte) bool {
	return len(der) == 2 && der[0] == asn1.TagNull && der[1] == 0
}
