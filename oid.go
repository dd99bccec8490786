package x509kit

import "encoding/asn1"

// Digest algorithm OIDs (NIST / OIW).
var (
	// OIDSHA1 identifies SHA-1.
	OIDSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

	// OIDSHA256 identifies SHA-256.
	OIDSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}

	// OIDSHA384 identifies SHA-384.
	OIDSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}

	// OIDSHA512 identifies SHA-512.
	OIDSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Signature algorithm OIDs (RFC 3279, RFC 4055, RFC 5758, RFC 8410).
var (
	OIDSHA1WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	OIDSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDSHA384WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	OIDSHA512WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}

	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	OIDECDSAWithSHA384 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}

	// OIDEd25519Signature is id-Ed25519 from RFC 8410.
	OIDEd25519Signature = asn1.ObjectIdentifier{1, 3, 101, 112}

	// OIDNoSignature is id-alg-noSignature (RFC 6955). It does not name a
	// digest, so every NoSignature variant shares it.
	OIDNoSignature = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 6, 2}
)

// Public key algorithm OIDs.
var (
	// OIDRSAEncryption identifies an RSA subject public key.
	OIDRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}

	// OIDECPublicKey identifies an elliptic curve subject public key. The
	// curve is carried in the algorithm parameters.
	OIDECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

	// OIDEd25519KeyAgreement is the OID emitted for Ed25519 subject keys.
	// Both it and OIDEd25519Signature are accepted when decoding.
	OIDEd25519KeyAgreement = asn1.ObjectIdentifier{1, 3, 101, 110}
)

// Named curve OIDs.
var (
	OIDCurveP256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	OIDCurveP384 = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
)

// Extension OIDs.
var (
	OIDExtensionKeyUsage         = asn1.ObjectIdentifier{2, 5, 29, 15}
	OIDExtensionBasicConstraints = asn1.ObjectIdentifier{2, 5, 29, 19}
)

// Distinguished name attribute OIDs (X.520).
var (
	OIDCommonName         = asn1.ObjectIdentifier{2, 5, 4, 3}
	OIDSerialNumber       = asn1.ObjectIdentifier{2, 5, 4, 5}
	OIDCountry            = asn1.ObjectIdentifier{2, 5, 4, 6}
	OIDLocality           = asn1.ObjectIdentifier{2, 5, 4, 7}
	OIDProvince           = asn1.ObjectIdentifier{2, 5, 4, 8}
	OIDOrganization       = asn1.ObjectIdentifier{2, 5, 4, 10}
	OIDOrganizationalUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
)

// attributeShortNames maps name attribute OIDs to their RFC 4514 labels.
var attributeShortNames = []struct {
	oid  asn1.ObjectIdentifier
	name string
}{
	{OIDCommonName, "CN"},
	{OIDSerialNumber, "SERIALNUMBER"},
	{OIDCountry, "C"},
	{OIDLocality, "L"},
	{OIDProvince, "ST"},
	{OIDOrganization, "O"},
	{OIDOrganizationalUnit, "OU"},
}
