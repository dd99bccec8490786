package x509kit

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"slices"
	"time"
)

// KeyUsage is one bit of the key usage extension (RFC 5280 4.2.1.3).
type KeyUsage int

const (
	KeyUsageDigitalSignature KeyUsage = iota
	KeyUsageNonRepudiation
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageKeyCertSign
	KeyUsageCRLSign
)

var keyUsageNames = map[KeyUsage]string{
	KeyUsageDigitalSignature: "digitalSignature",
	KeyUsageNonRepudiation:   "nonRepudiation",
	KeyUsageKeyEncipherment:  "keyEncipherment",
	KeyUsageDataEncipherment: "dataEncipherment",
	KeyUsageKeyAgreement:     "keyAgreement",
	KeyUsageKeyCertSign:      "keyCertSign",
	KeyUsageCRLSign:          "cRLSign",
}

// ParseKeyUsage resolves an RFC 5280 key usage name such as "keyCertSign".
func ParseKeyUsage(name string) (KeyUsage, error) {
	for ku, n := range keyUsageNames {
		if n == name {
			return ku, nil
		}
	}
	return 0, fmt.Errorf("unknown key usage %q", name)
}

func (ku KeyUsage) String() string {
	if n, ok := keyUsageNames[ku]; ok {
		return n
	}
	return fmt.Sprintf("KeyUsage(%d)", int(ku))
}

// extensionValue encodes a BIT STRING with only bit ku set.
func (ku KeyUsage) extensionValue() []byte {
	return []byte{asn1.TagBitString, 2, byte(7 - ku), 0x80 >> ku}
}

// Builder assembles certificates and certification requests. A zero
// Builder is not usable; start from NewBuilder.
type Builder struct {
	subject       Name
	issuer        *Name
	extensions    []pkix.Extension
	serial        int64
	notBefore     time.Time
	notAfter      time.Time
	csrAttributes []Attribute
}

// NewBuilder returns a builder with serial number 1, an empty subject, and a
// validity window from now to one hour from now.
func NewBuilder() *Builder {
	now := time.Now()
	return &Builder{
		serial:    1,
		notBefore: now,
		notAfter:  now.Add(time.Hour),
	}
}

// Subject returns the subject name for editing.
func (b *Builder) Subject() *Name { return &b.subject }

// Issuer returns the issuer name for editing. Until Issuer is called the
// issuer is a copy of the subject.
func (b *Builder) Issuer() *Name {
	if b.issuer == nil {
		b.issuer = &Name{}
	}
	return b.issuer
}

func (b *Builder) SetSerialNumber(serial int64) { b.serial = serial }
func (b *Builder) SetNotBefore(t time.Time)     { b.notBefore = t }
func (b *Builder) SetNotAfter(t time.Time)      { b.notAfter = t }

// SetValidityDuration sets not-after to not-before plus d.
func (b *Builder) SetValidityDuration(d time.Duration) {
	b.notAfter = b.notBefore.Add(d)
}

// Extensions returns the extensions added so far.
func (b *Builder) Extensions() []pkix.Extension { return cloneExtensions(b.extensions) }

// AddExtensionDERData appends an extension whose value is already encoded.
func (b *Builder) AddExtensionDERData(oid asn1.ObjectIdentifier, critical bool, data []byte) {
	b.extensions = append(b.extensions, pkix.Extension{
		Id:       slices.Clone(oid),
		Critical: critical,
		Value:    bytes.Clone(data),
	})
}

// ConstraintNotCA appends a critical basic constraints extension with cA
// false.
func (b *Builder) ConstraintNotCA() {
	b.AddExtensionDERData(OIDExtensionBasicConstraints, true, []byte{asn1.TagSequence | 0x20, 0})
}

// ConstraintCA appends a critical basic constraints extension with cA true
// and no path length limit.
func (b *Builder) ConstraintCA() {
	b.AddExtensionDERData(OIDExtensionBasicConstraints, true, []byte{asn1.TagSequence | 0x20, 3, asn1.TagBoolean, 1, 0xff})
}

// KeyUsage appends a critical key usage extension asserting ku.
func (b *Builder) KeyUsage(ku KeyUsage) {
	b.AddExtensionDERData(OIDExtensionKeyUsage, true, ku.extensionValue())
}

// AddCSRAttribute appends an attribute to requests created by the builder.
func (b *Builder) AddCSRAttribute(attr Attribute) {
	b.csrAttributes = append(b.csrAttributes, attr)
}

// CreateWithKeyPair creates a certificate for signer's key, signed by
// signer.
func (b *Builder) CreateWithKeyPair(signer KeyInfoSigner) (*CapturedCertificate, error) {
	return b.CreateSignedBy(signer, signer)
}

// CreateWithRandomKeyPair generates a key pair and creates a certificate
// signed by it. The returned key pair is the only copy of the private key.
func (b *Builder) CreateWithRandomKeyPair(alg KeyAlgorithm) (*CapturedCertificate, *KeyPair, error) {
	kp, err := GenerateKeyPair(alg)
	if err != nil {
		return nil, nil, err
	}
	cert, err := b.CreateWithKeyPair(kp)
	if err != nil {
		kp.Destroy()
		return nil, nil, err
	}
	return cert, kp, nil
}

// CreateSignedBy creates a certificate for subjectKey signed by issuer. The
// issuer name is still taken from the builder.
func (b *Builder) CreateSignedBy(subjectKey PublicKeyInfo, issuer KeyInfoSigner) (*CapturedCertificate, error) {
	sigAlg, err := issuer.SignatureAlgorithm()
	if err != nil {
		return nil, fmt.Errorf("resolving signature algorithm: %w", err)
	}
	spki, err := publicKeyInfoOf(subjectKey)
	if err != nil {
		return nil, err
	}
	nb, err := encodeTime(b.notBefore)
	if err != nil {
		return nil, err
	}
	na, err := encodeTime(b.notAfter)
	if err != nil {
		return nil, err
	}
	issuerName := b.subject
	if b.issuer != nil {
		issuerName = *b.issuer
	}

	tbs := tbsCertificate{
		Version:              2,
		SerialNumber:         big.NewInt(b.serial),
		Signature:            sigAlg.AlgorithmIdentifier(),
		Issuer:               issuerName.Clone(),
		Validity:             validity{NotBefore: nb, NotAfter: na},
		Subject:              b.subject.Clone(),
		SubjectPublicKeyInfo: spki,
		Extensions:           cloneExtensions(b.extensions),
	}
	tbsDER, err := asn1.Marshal(tbs)
	if err != nil {
		return nil, fmt.Errorf("encoding TBS certificate: %w", err)
	}
	sig, err := issuer.Sign(tbsDER)
	if err != nil {
		return nil, err
	}

	tbs.Raw = tbsDER
	der, err := asn1.Marshal(certificateASN1{
		TBSCertificate:     tbs,
		SignatureAlgorithm: sigAlg.AlgorithmIdentifier(),
		SignatureValue:     bitString(sig),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding certificate: %w", err)
	}
	return ParseCapturedDER(der)
}

// CreateCertificateSigningRequest creates a request for signer's key with
// the builder's subject and CSR attributes.
func (b *Builder) CreateCertificateSigningRequest(signer KeyInfoSigner) (*CertificationRequest, error) {
	sigAlg, err := signer.SignatureAlgorithm()
	if err != nil {
		return nil, fmt.Errorf("resolving signature algorithm: %w", err)
	}
	spki, err := publicKeyInfoOf(signer)
	if err != nil {
		return nil, err
	}
	attrs := make([]asn1.RawValue, 0, len(b.csrAttributes))
	for _, attr := range b.csrAttributes {
		der, err := asn1.Marshal(attr)
		if err != nil {
			return nil, fmt.Errorf("encoding attribute %s: %w", attr.Type, err)
		}
		attrs = append(attrs, asn1.RawValue{FullBytes: der})
	}

	info := certificationRequestInfo{
		Version:              0,
		Subject:              b.subject.Clone(),
		SubjectPublicKeyInfo: spki,
		Attributes:           attrs,
	}
	infoDER, err := asn1.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encoding certification request info: %w", err)
	}
	sig, err := signer.Sign(infoDER)
	if err != nil {
		return nil, err
	}

	info.Raw = infoDER
	der, err := asn1.Marshal(certificationRequestASN1{
		Info:               info,
		SignatureAlgorithm: sigAlg.AlgorithmIdentifier(),
		SignatureValue:     bitString(sig),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding certification request: %w", err)
	}
	return ParseCertificationRequestDER(der)
}

func publicKeyInfoOf(key PublicKeyInfo) (subjectPublicKeyInfo, error) {
	alg, err := key.KeyAlgorithm()
	if err != nil {
		return subjectPublicKeyInfo{}, fmt.Errorf("resolving key algorithm: %w", err)
	}
	return subjectPublicKeyInfo{
		Algorithm: alg.AlgorithmIdentifier(),
		PublicKey: bitString(key.PublicKeyData()),
	}, nil
}
