package x509kit

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ParseCapturedAny captures certificates from raw bytes, trying a single DER
// certificate first, then BER, then PEM (possibly several), then a PKCS#7
// certs-only bundle.
func ParseCapturedAny(data []byte) ([]*CapturedCertificate, error) {
	cert, derErr := ParseCapturedDER(data)
	if derErr == nil {
		return []*CapturedCertificate{cert}, nil
	}
	if cert, err := ParseCapturedBER(data); err == nil {
		return []*CapturedCertificate{cert}, nil
	}
	certs, pemErr := ParseCapturedPEMMultiple(data)
	if pemErr == nil && len(certs) > 0 {
		return certs, nil
	}
	if pemErr == nil {
		pemErr = ErrNoPEMBlock
	}
	certs, p7Err := DecodePKCS7(data)
	if p7Err == nil {
		return certs, nil
	}
	return nil, fmt.Errorf("not DER (%v) or PEM (%v) or PKCS#7 (%v)", derErr, pemErr, p7Err)
}

// DERBytes returns the original bytes when they are DER, and a DER
// re-encoding of a BER capture otherwise.
func (c *CapturedCertificate) DERBytes() ([]byte, error) {
	if c.encoding == EncodingDER {
		return c.ConstructedData(), nil
	}
	return c.EncodeDER()
}

// X509 parses the certificate with crypto/x509 for use with APIs that need
// it, such as container encoders.
func (c *CapturedCertificate) X509() (*x509.Certificate, error) {
	der, err := c.DERBytes()
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing with crypto/x509: %w", err)
	}
	return cert, nil
}

// EncodePKCS7 creates a certs-only PKCS#7 bundle from certs, in order.
func EncodePKCS7(certs []*CapturedCertificate) ([]byte, error) {
	if len(certs) == 0 {
		return nil, errors.New("no certificates to encode")
	}
	var der []byte
	for _, cert := range certs {
		b, err := cert.DERBytes()
		if err != nil {
			return nil, err
		}
		der = append(der, b...)
	}
	return pkcs7.DegenerateCertificate(der)
}

// DecodePKCS7 captures the certificates of a DER PKCS#7 bundle.
func DecodePKCS7(der []byte) ([]*CapturedCertificate, error) {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return captureX509(p7.Certificates)
}

// EncodePKCS12 creates a PKCS#12 bundle holding kp, its certificate leaf and
// the chain certificates.
func EncodePKCS12(kp *KeyPair, leaf *CapturedCertificate, chain []*CapturedCertificate, password string) ([]byte, error) {
	if kp.Signer() == nil {
		return nil, errKeyPairDestroyed
	}
	leafX509, err := leaf.X509()
	if err != nil {
		return nil, err
	}
	caCerts := make([]*x509.Certificate, 0, len(chain))
	for _, c := range chain {
		x, err := c.X509()
		if err != nil {
			return nil, err
		}
		caCerts = append(caCerts, x)
	}
	pfx, err := gopkcs12.Modern.Encode(kp.Signer(), leafX509, caCerts, password)
	if err != nil {
		return nil, fmt.Errorf("encoding PKCS#12: %w", err)
	}
	return pfx, nil
}

// DecodePKCS12 decodes a PKCS#12 bundle into its key pair, leaf and chain.
func DecodePKCS12(pfx []byte, password string) (*KeyPair, *CapturedCertificate, []*CapturedCertificate, error) {
	key, leaf, caCerts, err := gopkcs12.DecodeChain(pfx, password)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	kp, err := KeyPairFromPrivateKey(key)
	if err != nil {
		return nil, nil, nil, err
	}
	capturedLeaf, err := ParseCapturedDER(leaf.Raw)
	if err != nil {
		kp.Destroy()
		return nil, nil, nil, fmt.Errorf("capturing PKCS#12 leaf: %w", err)
	}
	chain, err := captureX509(caCerts)
	if err != nil {
		kp.Destroy()
		return nil, nil, nil, err
	}
	return kp, capturedLeaf, chain, nil
}

func captureX509(certs []*x509.Certificate) ([]*CapturedCertificate, error) {
	out := make([]*CapturedCertificate, 0, len(certs))
	for _, cert := range certs {
		c, err := ParseCapturedDER(cert.Raw)
		if err != nil {
			return nil, fmt.Errorf("capturing %q: %w", cert.Subject.CommonName, err)
		}
		out = append(out, c)
	}
	return out, nil
}
