package x509kit

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"slices"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/sensiblebit/x509kit/internal/ber"
)

const pemTypeCertificate = "CERTIFICATE"

// PublicKeyInfo is implemented by values that carry a subject public key:
// certificates, certification requests and key pairs.
type PublicKeyInfo interface {
	KeyAlgorithm() (KeyAlgorithm, error)
	PublicKeyData() []byte
}

// Certificate is a decoded X.509 certificate. It is not modified after
// decoding; use CapturedCertificate.Mutable to edit a copy.
type Certificate struct {
	cert   certificateASN1
	tbsRaw []byte
}

// ParseCertificateDER decodes a DER certificate. der is copied.
func ParseCertificateDER(der []byte) (*Certificate, error) {
	return parseCertificate(bytes.Clone(der))
}

// ParseCertificateBER decodes a BER certificate. Fields are read from a DER
// normalization of the input; TBSRaw returns the TBS bytes exactly as they
// appear in data.
func ParseCertificateBER(data []byte) (*Certificate, error) {
	return parseBERCertificate(bytes.Clone(data))
}

// parseBERCertificate decodes data, which the returned Certificate then
// owns through its TBS span.
func parseBERCertificate(data []byte) (*Certificate, error) {
	der, err := ber.ToDER(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	cert, err := parseCertificate(der)
	if err != nil {
		return nil, err
	}
	members, err := ber.Children(data)
	if err != nil || len(members) == 0 {
		return nil, fmt.Errorf("%w: locating TBSCertificate in BER input: %v", ErrMalformed, err)
	}
	cert.tbsRaw = members[0]
	return cert, nil
}

// ParseCertificatePEM decodes the first PEM block of data as a DER
// certificate.
func ParseCertificatePEM(data []byte) (*Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	return parseCertificate(block.Bytes)
}

// ParseCertificatesPEM decodes every CERTIFICATE block of data.
func ParseCertificatesPEM(data []byte) ([]*Certificate, error) {
	return ParseCertificatesPEMTags(data, pemTypeCertificate)
}

// ParseCertificatesPEMTags decodes every PEM block whose type is one of
// tags. Other blocks are skipped. A block that fails to decode fails the
// whole call.
func ParseCertificatesPEMTags(data []byte, tags ...string) ([]*Certificate, error) {
	var certs []*Certificate
	for block := range pemBlocks(data, tags) {
		cert, err := parseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing %s block: %w", block.Type, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// parseCertificate decodes der, which the returned Certificate then owns.
func parseCertificate(der []byte) (*Certificate, error) {
	var c certificateASN1
	if err := unmarshalDER(der, &c, "certificate"); err != nil {
		return nil, err
	}
	if _, err := decodeTime(c.TBSCertificate.Validity.NotBefore); err != nil {
		return nil, fmt.Errorf("notBefore: %w", err)
	}
	if _, err := decodeTime(c.TBSCertificate.Validity.NotAfter); err != nil {
		return nil, fmt.Errorf("notAfter: %w", err)
	}
	tbsRaw := []byte(c.TBSCertificate.Raw)
	c.TBSCertificate.Raw = nil
	return &Certificate{cert: c, tbsRaw: tbsRaw}, nil
}

// EncodeDER serializes the certificate as currently held. For a certificate
// that was never modified this usually, but not always, equals the decoded
// input; CapturedCertificate keeps the exact input.
func (c *Certificate) EncodeDER() ([]byte, error) {
	der, err := asn1.Marshal(c.cert)
	if err != nil {
		return nil, fmt.Errorf("encoding certificate: %w", err)
	}
	return der, nil
}

// EncodeBER serializes the certificate. DER is a subset of BER, so this is
// the DER encoding.
func (c *Certificate) EncodeBER() ([]byte, error) {
	return c.EncodeDER()
}

// EncodePEM returns the DER encoding wrapped in a CERTIFICATE block.
func (c *Certificate) EncodePEM() (string, error) {
	der, err := c.EncodeDER()
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der})), nil
}

// WritePEM writes the PEM encoding to w.
func (c *Certificate) WritePEM(w io.Writer) error {
	der, err := c.EncodeDER()
	if err != nil {
		return err
	}
	return pem.Encode(w, &pem.Block{Type: pemTypeCertificate, Bytes: der})
}

// Version returns the X.509 version number (1, 2 or 3).
func (c *Certificate) Version() int { return c.cert.TBSCertificate.Version + 1 }

// SerialNumber returns a copy of the serial number.
func (c *Certificate) SerialNumber() *big.Int {
	if c.cert.TBSCertificate.SerialNumber == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.cert.TBSCertificate.SerialNumber)
}

func (c *Certificate) Subject() Name { return c.cert.TBSCertificate.Subject.Clone() }
func (c *Certificate) Issuer() Name  { return c.cert.TBSCertificate.Issuer.Clone() }

// SubjectCommonName returns the first common name of the subject.
func (c *Certificate) SubjectCommonName() (string, bool) {
	return c.cert.TBSCertificate.Subject.CommonName()
}

// IssuerCommonName returns the first common name of the issuer.
func (c *Certificate) IssuerCommonName() (string, bool) {
	return c.cert.TBSCertificate.Issuer.CommonName()
}

// SubjectIsIssuer reports whether subject and issuer are byte-identical.
func (c *Certificate) SubjectIsIssuer() bool {
	return c.cert.TBSCertificate.Subject.Equal(c.cert.TBSCertificate.Issuer)
}

// NotBefore returns the start of the validity window.
func (c *Certificate) NotBefore() time.Time {
	// Both times were checked when the certificate was decoded or set.
	t, _ := decodeTime(c.cert.TBSCertificate.Validity.NotBefore)
	return t
}

// NotAfter returns the end of the validity window.
func (c *Certificate) NotAfter() time.Time {
	t, _ := decodeTime(c.cert.TBSCertificate.Validity.NotAfter)
	return t
}

// TimeConstraintsValid reports whether at lies within the validity window,
// bounds included. A zero at means now.
func (c *Certificate) TimeConstraintsValid(at time.Time) bool {
	if at.IsZero() {
		at = time.Now()
	}
	return !at.Before(c.NotBefore()) && !at.After(c.NotAfter())
}

// Extensions returns a copy of the extension list.
func (c *Certificate) Extensions() []pkix.Extension {
	return cloneExtensions(c.cert.TBSCertificate.Extensions)
}

// Extension returns the first extension with the given OID.
func (c *Certificate) Extension(oid asn1.ObjectIdentifier) (pkix.Extension, bool) {
	for _, ext := range c.cert.TBSCertificate.Extensions {
		if ext.Id.Equal(oid) {
			return cloneExtensions([]pkix.Extension{ext})[0], true
		}
	}
	return pkix.Extension{}, false
}

// PublicKeyData returns the subject public key bit string contents.
func (c *Certificate) PublicKeyData() []byte {
	return bytes.Clone(c.cert.TBSCertificate.SubjectPublicKeyInfo.PublicKey.Bytes)
}

// PublicKeyInfoDER returns the DER SubjectPublicKeyInfo.
func (c *Certificate) PublicKeyInfoDER() ([]byte, error) {
	der, err := asn1.Marshal(c.cert.TBSCertificate.SubjectPublicKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("encoding subject public key info: %w", err)
	}
	return der, nil
}

// KeyAlgorithm resolves the subject key algorithm including its parameters.
func (c *Certificate) KeyAlgorithm() (KeyAlgorithm, error) {
	return KeyAlgorithmFromIdentifier(c.cert.TBSCertificate.SubjectPublicKeyInfo.Algorithm)
}

func (c *Certificate) KeyAlgorithmOID() asn1.ObjectIdentifier {
	return slices.Clone(c.cert.TBSCertificate.SubjectPublicKeyInfo.Algorithm.Algorithm)
}

// SignatureAlgorithm resolves the outer signature algorithm, the one the
// signature was actually produced with.
func (c *Certificate) SignatureAlgorithm() (SignatureAlgorithm, error) {
	return SignatureAlgorithmFromIdentifier(c.cert.SignatureAlgorithm)
}

func (c *Certificate) SignatureAlgorithmOID() asn1.ObjectIdentifier {
	return slices.Clone(c.cert.SignatureAlgorithm.Algorithm)
}

// TBSSignatureAlgorithm resolves the signature field inside the signed
// portion. It is not reconciled with SignatureAlgorithm.
func (c *Certificate) TBSSignatureAlgorithm() (SignatureAlgorithm, error) {
	return SignatureAlgorithmFromIdentifier(c.cert.TBSCertificate.Signature)
}

func (c *Certificate) TBSSignatureAlgorithmOID() asn1.ObjectIdentifier {
	return slices.Clone(c.cert.TBSCertificate.Signature.Algorithm)
}

// Signature returns the outer signature value.
func (c *Certificate) Signature() []byte {
	return bytes.Clone(c.cert.SignatureValue.Bytes)
}

// TBSRaw returns the encoded signed portion as it was decoded, or nil for a
// certificate that was not decoded from bytes.
func (c *Certificate) TBSRaw() []byte {
	return bytes.Clone(c.tbsRaw)
}

// Fingerprint digests the DER encoding of the certificate.
func (c *Certificate) Fingerprint(d DigestAlgorithm) ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	der, err := c.EncodeDER()
	if err != nil {
		return nil, err
	}
	return d.Digest(der), nil
}

func (c *Certificate) SHA1Fingerprint() ([]byte, error)   { return c.Fingerprint(SHA1) }
func (c *Certificate) SHA256Fingerprint() ([]byte, error) { return c.Fingerprint(SHA256) }

// Equal reports whether c and other have the same DER encoding.
func (c *Certificate) Equal(other *Certificate) bool {
	a, errA := c.EncodeDER()
	b, errB := other.EncodeDER()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// RSAPublicKey holds the raw integer contents of an RSA public key. The
// modulus keeps its leading zero byte when the high bit is set, so a
// 2048-bit modulus is 257 bytes.
type RSAPublicKey struct {
	Modulus        []byte
	PublicExponent []byte
}

// RSAPublicKey decodes the subject public key as a PKCS#1 RSAPublicKey.
func (c *Certificate) RSAPublicKey() (*RSAPublicKey, error) {
	return parseRSAPublicKey(c.cert.TBSCertificate.SubjectPublicKeyInfo.PublicKey.Bytes)
}

func parseRSAPublicKey(data []byte) (*RSAPublicKey, error) {
	var seq, n, e cryptobyte.String
	input := cryptobyte.String(data)
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() ||
		!seq.ReadASN1(&n, cbasn1.INTEGER) ||
		!seq.ReadASN1(&e, cbasn1.INTEGER) || !seq.Empty() {
		return nil, fmt.Errorf("%w: invalid RSA public key", ErrMalformed)
	}
	return &RSAPublicKey{Modulus: bytes.Clone(n), PublicExponent: bytes.Clone(e)}, nil
}

// CompareIssuer orders certificates so that a certificate sorts before its
// issuer. It returns -1 when a was issued by b, +1 when b was issued by a,
// and 0 when a is self-issued or the two are unrelated.
func CompareIssuer(a, b *Certificate) int {
	switch {
	case a.SubjectIsIssuer():
		return 0
	case a.cert.TBSCertificate.Issuer.Equal(b.cert.TBSCertificate.Subject):
		return -1
	case b.cert.TBSCertificate.Issuer.Equal(a.cert.TBSCertificate.Subject):
		return 1
	}
	return 0
}

// CertificateIsSubsetOf reports whether the certificate identified by
// (aSerial, aName) is covered by (bSerial, bName): the serials are equal and
// every RDN of aName appears in bName.
func CertificateIsSubsetOf(aSerial *big.Int, aName Name, bSerial *big.Int, bName Name) bool {
	if aSerial == nil || bSerial == nil || aSerial.Cmp(bSerial) != 0 {
		return false
	}
	for _, rdn := range aName {
		if !bName.ContainsRDN(rdn) {
			return false
		}
	}
	return true
}

func cloneExtensions(exts []pkix.Extension) []pkix.Extension {
	if exts == nil {
		return nil
	}
	out := make([]pkix.Extension, len(exts))
	for i, ext := range exts {
		out[i] = pkix.Extension{
			Id:       slices.Clone(ext.Id),
			Critical: ext.Critical,
			Value:    bytes.Clone(ext.Value),
		}
	}
	return out
}

type basicConstraints struct {
	IsCA       bool `asn1:"optional"`
	MaxPathLen int  `asn1:"optional,default:-1"`
}

// BasicConstraints decodes the basic constraints extension. ok is false when
// the extension is absent or malformed; maxPathLen is -1 when unset.
func (c *Certificate) BasicConstraints() (isCA bool, maxPathLen int, ok bool) {
	ext, found := c.Extension(OIDExtensionBasicConstraints)
	if !found {
		return false, -1, false
	}
	bc := basicConstraints{MaxPathLen: -1}
	if err := unmarshalDER(ext.Value, &bc, "basic constraints"); err != nil {
		return false, -1, false
	}
	return bc.IsCA, bc.MaxPathLen, true
}

// KeyUsages decodes the key usage extension. It returns nil when the
// extension is absent or malformed.
func (c *Certificate) KeyUsages() []KeyUsage {
	ext, found := c.Extension(OIDExtensionKeyUsage)
	if !found {
		return nil
	}
	var bits asn1.BitString
	if err := unmarshalDER(ext.Value, &bits, "key usage"); err != nil {
		return nil
	}
	var usages []KeyUsage
	for ku := KeyUsageDigitalSignature; ku <= KeyUsageCRLSign; ku++ {
		if bits.At(int(ku)) != 0 {
			usages = append(usages, ku)
		}
	}
	return usages
}
