package x509kit

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"time"
)

// Wire structures for RFC 5280 certificates and RFC 2986 requests. Names,
// validity times and algorithm parameters are held as raw values so that
// re-encoding an unmodified field reproduces its original bytes.

type certificateASN1 struct {
	TBSCertificate     tbsCertificate
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

type tbsCertificate struct {
	Raw                  asn1.RawContent
	Version              int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber         *big.Int
	Signature            pkix.AlgorithmIdentifier
	Issuer               Name
	Validity             validity
	Subject              Name
	SubjectPublicKeyInfo subjectPublicKeyInfo
	IssuerUniqueID       asn1.BitString   `asn1:"optional,tag:1"`
	SubjectUniqueID      asn1.BitString   `asn1:"optional,tag:2"`
	Extensions           []pkix.Extension `asn1:"omitempty,optional,explicit,tag:3"`
}

type validity struct {
	NotBefore asn1.RawValue
	NotAfter  asn1.RawValue
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type certificationRequestASN1 struct {
	Info               certificationRequestInfo
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

type certificationRequestInfo struct {
	Raw                  asn1.RawContent
	Version              int
	Subject              Name
	SubjectPublicKeyInfo subjectPublicKeyInfo
	Attributes           []asn1.RawValue `asn1:"tag:0"`
}

// Attribute is a PKCS#9 attribute carried in a certification request.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// oneAsymmetricKey is the PKCS#8 / RFC 5958 private key container.
type oneAsymmetricKey struct {
	Version    int
	Algorithm  pkix.AlgorithmIdentifier
	PrivateKey []byte
	Attributes asn1.RawValue  `asn1:"optional,tag:0"`
	PublicKey  asn1.BitString `asn1:"optional,tag:1"`
}

// unmarshalDER decodes der into out and rejects trailing bytes.
func unmarshalDER(der []byte, out any, what string) error {
	rest, err := asn1.Unmarshal(der, out)
	if err != nil {
		return fmt.Errorf("%w: decoding %s: %w", ErrMalformed, what, err)
	}
	if len(rest) > 0 {
		return fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, len(rest), what)
	}
	return nil
}

// encodeTime encodes t as UTCTime for years 1950 through 2049 and as
// GeneralizedTime otherwise (RFC 5280 section 4.1.2.5).
func encodeTime(t time.Time) (asn1.RawValue, error) {
	der, err := asn1.Marshal(t.UTC().Truncate(time.Second))
	if err != nil {
		return asn1.RawValue{}, fmt.Errorf("encoding time %s: %w", t, err)
	}
	return asn1.RawValue{FullBytes: der}, nil
}

func decodeTime(v asn1.RawValue) (time.Time, error) {
	var t time.Time
	if err := unmarshalDER(v.FullBytes, &t, "time"); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func bitString(b []byte) asn1.BitString {
	return asn1.BitString{Bytes: b, BitLength: 8 * len(b)}
}
