package x509kit

import (
	"bytes"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"time"
)

// Encoding records how a captured certificate's original bytes are encoded.
type Encoding int

const (
	EncodingDER Encoding = iota + 1
	EncodingBER
)

func (e Encoding) String() string {
	switch e {
	case EncodingDER:
		return "DER"
	case EncodingBER:
		return "BER"
	}
	return "unknown"
}

// CapturedCertificate is a certificate together with the exact bytes it was
// decoded from. Signature verification always runs over those bytes, never
// over a re-encoding. Accessors of the embedded Certificate are available
// directly.
type CapturedCertificate struct {
	Certificate
	original []byte
	encoding Encoding
}

// ParseCapturedDER decodes a DER certificate, keeping a copy of data.
func ParseCapturedDER(data []byte) (*CapturedCertificate, error) {
	original := bytes.Clone(data)
	cert, err := parseCertificate(original)
	if err != nil {
		return nil, err
	}
	return &CapturedCertificate{Certificate: *cert, original: original, encoding: EncodingDER}, nil
}

// ParseCapturedBER decodes a BER certificate, keeping a copy of data. The
// parsed fields come from a DER normalization of the input; the signed TBS
// bytes are taken from the input unchanged.
func ParseCapturedBER(data []byte) (*CapturedCertificate, error) {
	original := bytes.Clone(data)
	cert, err := parseBERCertificate(original)
	if err != nil {
		return nil, err
	}
	return &CapturedCertificate{Certificate: *cert, original: original, encoding: EncodingBER}, nil
}

// ParseCapturedPEM decodes the first PEM block of data. The captured bytes
// are the block's DER contents.
func ParseCapturedPEM(data []byte) (*CapturedCertificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	return ParseCapturedDER(block.Bytes)
}

// ParseCapturedPEMMultiple decodes every CERTIFICATE block of data.
func ParseCapturedPEMMultiple(data []byte) ([]*CapturedCertificate, error) {
	return ParseCapturedPEMMultipleTags(data, pemTypeCertificate)
}

// ParseCapturedPEMMultipleTags decodes every PEM block whose type is one of
// tags. Any block that fails to decode fails the whole call.
func ParseCapturedPEMMultipleTags(data []byte, tags ...string) ([]*CapturedCertificate, error) {
	var certs []*CapturedCertificate
	for block := range pemBlocks(data, tags) {
		cert, err := ParseCapturedDER(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing %s block: %w", block.Type, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// CaptureCertificate encodes c to DER and captures the result.
func CaptureCertificate(c *Certificate) (*CapturedCertificate, error) {
	der, err := c.EncodeDER()
	if err != nil {
		return nil, err
	}
	return ParseCapturedDER(der)
}

// ConstructedData returns a copy of the original bytes.
func (c *CapturedCertificate) ConstructedData() []byte {
	return bytes.Clone(c.original)
}

// Encoding reports whether the original bytes are DER or BER.
func (c *CapturedCertificate) Encoding() Encoding { return c.encoding }

// EncodePEM wraps the original bytes in a CERTIFICATE block.
func (c *CapturedCertificate) EncodePEM() string {
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: c.original}))
}

// Equal reports whether both certificates were captured from identical
// bytes.
func (c *CapturedCertificate) Equal(other *CapturedCertificate) bool {
	return other != nil && bytes.Equal(c.original, other.original)
}

// Key returns a comparable identity derived from the original bytes, for
// use as a map key.
func (c *CapturedCertificate) Key() string { return string(c.original) }

// reparse decodes the original bytes again. They decoded successfully at
// construction, so failure here is a bug.
func (c *CapturedCertificate) reparse() *Certificate {
	var (
		cert *Certificate
		err  error
	)
	if c.encoding == EncodingBER {
		cert, err = parseBERCertificate(bytes.Clone(c.original))
	} else {
		cert, err = parseCertificate(bytes.Clone(c.original))
	}
	if err != nil {
		panic(fmt.Sprintf("x509kit: re-parsing captured certificate: %v", err))
	}
	return cert
}

// VerifySignedByCertificate verifies that issuer's key produced this
// certificate's signature.
func (c *CapturedCertificate) VerifySignedByCertificate(issuer PublicKeyInfo) error {
	keyAlg, err := issuer.KeyAlgorithm()
	if err != nil {
		return err
	}
	return c.verifySignedBy(keyAlg, issuer.PublicKeyData())
}

// VerifySignedByPublicKey verifies the signature with raw public key bytes.
// The bytes carry no algorithm, so unlike VerifySignedByCertificate the key
// is taken to be of the same algorithm as this certificate's own subject
// key.
func (c *CapturedCertificate) VerifySignedByPublicKey(publicKey []byte) error {
	keyAlg, err := c.KeyAlgorithm()
	if err != nil {
		return err
	}
	return c.verifySignedBy(keyAlg, publicKey)
}

func (c *CapturedCertificate) verifySignedBy(keyAlg KeyAlgorithm, publicKey []byte) error {
	this := c.reparse()
	sigAlg, err := this.SignatureAlgorithm()
	if err != nil {
		return err
	}
	verifier, err := sigAlg.VerificationAlgorithm(keyAlg)
	if err != nil {
		return err
	}
	return verifier.Verify(publicKey, this.tbsRaw, this.cert.SignatureValue.Bytes)
}

// VerifySignedData verifies signature over data with this certificate's
// subject key, using the certificate's own signature algorithm.
func (c *CapturedCertificate) VerifySignedData(data, signature []byte) error {
	keyAlg, err := c.KeyAlgorithm()
	if err != nil {
		return err
	}
	sigAlg, err := c.TBSSignatureAlgorithm()
	if err != nil {
		return err
	}
	verifier, err := sigAlg.VerificationAlgorithm(keyAlg)
	if err != nil {
		return err
	}
	return c.VerifySignedDataWithAlgorithm(data, signature, verifier)
}

// VerifySignedDataWithAlgorithm verifies signature over data with this
// certificate's subject key and an explicit primitive.
func (c *CapturedCertificate) VerifySignedDataWithAlgorithm(data, signature []byte, verifier VerificationAlgorithm) error {
	return verifier.Verify(c.cert.TBSCertificate.SubjectPublicKeyInfo.PublicKey.Bytes, data, signature)
}

// FindSigningCertificate returns the first candidate whose key verifies this
// certificate's signature, or nil.
func (c *CapturedCertificate) FindSigningCertificate(candidates []*CapturedCertificate) *CapturedCertificate {
	for _, candidate := range candidates {
		if c.VerifySignedByCertificate(candidate) == nil {
			return candidate
		}
	}
	return nil
}

// ResolveSigningChain walks issuers from this certificate through
// candidates and returns them in order, nearest issuer first. Candidates
// are deduplicated by bytes and this certificate is excluded. The walk
// stops at the first certificate whose issuer is not among the remaining
// candidates, so the result may be incomplete; with several valid issuers
// the earliest candidate wins.
func (c *CapturedCertificate) ResolveSigningChain(candidates []*CapturedCertificate) []*CapturedCertificate {
	seen := map[string]bool{c.Key(): true}
	var pool []*CapturedCertificate
	for _, candidate := range candidates {
		if candidate == nil || seen[candidate.Key()] {
			continue
		}
		seen[candidate.Key()] = true
		pool = append(pool, candidate)
	}

	var chain []*CapturedCertificate
	current := c
	for {
		issuer := current.FindSigningCertificate(pool)
		if issuer == nil {
			return chain
		}
		if cn, ok := issuer.SubjectCommonName(); ok {
			slog.Debug("resolved issuer", "depth", len(chain), "issuer", cn)
		}
		chain = append(chain, issuer)
		pool = slices.DeleteFunc(pool, func(p *CapturedCertificate) bool { return p == issuer })
		current = issuer
	}
}

// Mutable returns an editable copy decoded from a fresh copy of the
// original bytes.
func (c *CapturedCertificate) Mutable() *MutableCertificate {
	cert := c.reparse()
	cert.tbsRaw = nil
	return &MutableCertificate{Certificate: *cert}
}

// MutableCertificate is an editable certificate detached from any captured
// bytes. Edits change what EncodeDER produces; they never affect the
// CapturedCertificate it came from.
type MutableCertificate struct {
	Certificate
}

func (m *MutableCertificate) SetSerialNumber(serial *big.Int) {
	m.cert.TBSCertificate.SerialNumber = new(big.Int).Set(serial)
}

func (m *MutableCertificate) SetSubject(n Name) { m.cert.TBSCertificate.Subject = n.Clone() }
func (m *MutableCertificate) SetIssuer(n Name)  { m.cert.TBSCertificate.Issuer = n.Clone() }

// SetValidity replaces the validity window.
func (m *MutableCertificate) SetValidity(notBefore, notAfter time.Time) error {
	nb, err := encodeTime(notBefore)
	if err != nil {
		return err
	}
	na, err := encodeTime(notAfter)
	if err != nil {
		return err
	}
	m.cert.TBSCertificate.Validity = validity{NotBefore: nb, NotAfter: na}
	return nil
}

func (m *MutableCertificate) SetExtensions(exts []pkix.Extension) {
	m.cert.TBSCertificate.Extensions = cloneExtensions(exts)
}

// SetSignatureAlgorithm sets the outer signature algorithm only.
func (m *MutableCertificate) SetSignatureAlgorithm(alg SignatureAlgorithm) {
	m.cert.SignatureAlgorithm = alg.AlgorithmIdentifier()
}

// SetTBSSignatureAlgorithm sets the signature field of the signed portion.
func (m *MutableCertificate) SetTBSSignatureAlgorithm(alg SignatureAlgorithm) {
	m.cert.TBSCertificate.Signature = alg.AlgorithmIdentifier()
}

// SetSignature replaces the outer signature value.
func (m *MutableCertificate) SetSignature(sig []byte) {
	m.cert.SignatureValue = bitString(bytes.Clone(sig))
}

// TBSDER encodes the signed portion as currently edited, ready to be
// signed and passed to SetSignature.
func (m *MutableCertificate) TBSDER() ([]byte, error) {
	der, err := asn1.Marshal(m.cert.TBSCertificate)
	if err != nil {
		return nil, fmt.Errorf("encoding TBS certificate: %w", err)
	}
	return der, nil
}

// Capture encodes the edited certificate to DER and captures it.
func (m *MutableCertificate) Capture() (*CapturedCertificate, error) {
	return CaptureCertificate(&m.Certificate)
}
