package x509kit

import (
	"bytes"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"slices"
)

const pemTypeCertificateRequest = "CERTIFICATE REQUEST"

// CertificationRequest is a decoded PKCS#10 certification request.
type CertificationRequest struct {
	req     certificationRequestASN1
	infoRaw []byte
}

// ParseCertificationRequestDER decodes a DER request. der is copied.
func ParseCertificationRequestDER(der []byte) (*CertificationRequest, error) {
	der = bytes.Clone(der)
	var req certificationRequestASN1
	if err := unmarshalDER(der, &req, "certification request"); err != nil {
		return nil, err
	}
	infoRaw := []byte(req.Info.Raw)
	req.Info.Raw = nil
	return &CertificationRequest{req: req, infoRaw: infoRaw}, nil
}

// ParseCertificationRequestPEM decodes the first CERTIFICATE REQUEST (or
// NEW CERTIFICATE REQUEST) block of data.
func ParseCertificationRequestPEM(data []byte) (*CertificationRequest, error) {
	block := firstPEMBlock(data, pemTypeCertificateRequest, "NEW "+pemTypeCertificateRequest)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	return ParseCertificationRequestDER(block.Bytes)
}

func (r *CertificationRequest) EncodeDER() ([]byte, error) {
	der, err := asn1.Marshal(r.req)
	if err != nil {
		return nil, fmt.Errorf("encoding certification request: %w", err)
	}
	return der, nil
}

func (r *CertificationRequest) EncodePEM() (string, error) {
	der, err := r.EncodeDER()
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificateRequest, Bytes: der})), nil
}

func (r *CertificationRequest) Subject() Name { return r.req.Info.Subject.Clone() }

func (r *CertificationRequest) KeyAlgorithm() (KeyAlgorithm, error) {
	return KeyAlgorithmFromIdentifier(r.req.Info.SubjectPublicKeyInfo.Algorithm)
}

func (r *CertificationRequest) PublicKeyData() []byte {
	return bytes.Clone(r.req.Info.SubjectPublicKeyInfo.PublicKey.Bytes)
}

func (r *CertificationRequest) SignatureAlgorithm() (SignatureAlgorithm, error) {
	return SignatureAlgorithmFromIdentifier(r.req.SignatureAlgorithm)
}

// Attributes decodes the request attributes.
func (r *CertificationRequest) Attributes() ([]Attribute, error) {
	attrs := make([]Attribute, 0, len(r.req.Info.Attributes))
	for _, raw := range r.req.Info.Attributes {
		var attr Attribute
		if err := unmarshalDER(rawFullBytes(raw), &attr, "attribute"); err != nil {
			return nil, err
		}
		attr.Type = slices.Clone(attr.Type)
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

// Verify checks the request's signature with its own public key.
func (r *CertificationRequest) Verify() error {
	if r.infoRaw == nil {
		return fmt.Errorf("%w: request has no encoded info", ErrMalformed)
	}
	keyAlg, err := r.KeyAlgorithm()
	if err != nil {
		return err
	}
	sigAlg, err := r.SignatureAlgorithm()
	if err != nil {
		return err
	}
	verifier, err := sigAlg.VerificationAlgorithm(keyAlg)
	if err != nil {
		return err
	}
	return verifier.Verify(r.req.Info.SubjectPublicKeyInfo.PublicKey.Bytes, r.infoRaw, r.req.SignatureValue.Bytes)
}
