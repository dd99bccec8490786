package internal

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"path/filepath"

	"github.com/sensiblebit/x509kit"
)

// IssueOptions holds parameters for creating a certificate. Without a CA
// the certificate is self-signed with a new key; with CSRPath the subject
// and key come from the request and a CA is required.
type IssueOptions struct {
	CN         string
	CSRPath    string
	CACertPath string
	CAKeyPath  string
	Algorithm  string
	Curve      string
	Profile    *Profile
	OutPath    string
	Passwords  []string
}

// IssueResult holds the created certificate and, for self-generated keys,
// the private key.
type IssueResult struct {
	Cert     *x509kit.CapturedCertificate
	CertPEM  string
	KeyPEM   string
	CertFile string
	KeyFile  string
}

// randomSerial returns a positive serial number below 2^63.
func randomSerial() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, fmt.Errorf("generating serial number: %w", err)
	}
	return n.Int64() + 1, nil
}

// IssueCertificate creates a certificate according to opts.
func IssueCertificate(opts IssueOptions) (*IssueResult, error) {
	if opts.CN == "" && opts.CSRPath == "" {
		return nil, errors.New("either --cn or --csr is required")
	}
	if opts.CN != "" && opts.CSRPath != "" {
		return nil, errors.New("--cn and --csr are mutually exclusive")
	}
	if (opts.CACertPath == "") != (opts.CAKeyPath == "") {
		return nil, errors.New("--ca-cert and --ca-key must be given together")
	}
	if opts.CSRPath != "" && opts.CACertPath == "" {
		return nil, errors.New("issuing from a CSR requires --ca-cert and --ca-key")
	}

	profile := opts.Profile
	if profile == nil {
		profile = &Profile{Name: "default", ValidityDays: 365}
	}

	b := x509kit.NewBuilder()
	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}
	b.SetSerialNumber(serial)

	result := &IssueResult{}
	var subjectKey x509kit.PublicKeyInfo
	var selfKey *x509kit.KeyPair
	if opts.CSRPath != "" {
		csr, err := LoadCSRFile(opts.CSRPath)
		if err != nil {
			return nil, err
		}
		*b.Subject() = csr.Subject()
		subjectProfile := *profile
		subjectProfile.Subject = nil
		if err := subjectProfile.Apply(b, ""); err != nil {
			return nil, err
		}
		subjectKey = csr
	} else {
		if err := profile.Apply(b, opts.CN); err != nil {
			return nil, err
		}
		alg, err := ParseKeyAlgorithm(opts.Algorithm, opts.Curve)
		if err != nil {
			return nil, err
		}
		if selfKey, err = x509kit.GenerateKeyPair(alg); err != nil {
			return nil, fmt.Errorf("generating %s key: %w", alg, err)
		}
		defer selfKey.Destroy()
		keyPEM, err := KeyPEM(selfKey)
		if err != nil {
			return nil, err
		}
		result.KeyPEM = string(keyPEM)
		subjectKey = selfKey
	}

	var cert *x509kit.CapturedCertificate
	if opts.CACertPath != "" {
		ca, caKey, err := loadIssuer(opts.CACertPath, opts.CAKeyPath, opts.Passwords)
		if err != nil {
			return nil, err
		}
		defer caKey.Destroy()
		*b.Issuer() = ca.Subject()
		if cert, err = b.CreateSignedBy(subjectKey, caKey); err != nil {
			return nil, fmt.Errorf("issuing certificate: %w", err)
		}
	} else {
		if cert, err = b.CreateWithKeyPair(selfKey); err != nil {
			return nil, fmt.Errorf("creating self-signed certificate: %w", err)
		}
	}
	result.Cert = cert
	result.CertPEM = cert.EncodePEM()

	if opts.OutPath == "" {
		return result, nil
	}
	if err := os.MkdirAll(opts.OutPath, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", opts.OutPath, err)
	}
	result.CertFile = filepath.Join(opts.OutPath, "cert.pem")
	if err := os.WriteFile(result.CertFile, []byte(result.CertPEM), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", result.CertFile, err)
	}
	if result.KeyPEM != "" {
		result.KeyFile = filepath.Join(opts.OutPath, "key.pem")
		if err := os.WriteFile(result.KeyFile, []byte(result.KeyPEM), 0600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", result.KeyFile, err)
		}
	}
	return result, nil
}

// loadIssuer loads a CA certificate and its key and checks that they
// belong together and that the certificate may issue.
func loadIssuer(certPath, keyPath string, passwords []string) (*x509kit.CapturedCertificate, *x509kit.KeyPair, error) {
	contents, err := LoadContainerFile(certPath, passwords)
	if err != nil {
		return nil, nil, err
	}
	if isCA, _, _ := contents.Leaf.BasicConstraints(); !isCA {
		return nil, nil, fmt.Errorf("%s is not a CA certificate", certPath)
	}
	key, err := LoadKeyFile(keyPath, passwords)
	if err != nil {
		return nil, nil, err
	}
	if !keyMatchesCert(key, contents.Leaf) {
		key.Destroy()
		return nil, nil, fmt.Errorf("key %s does not match CA certificate %s", keyPath, certPath)
	}
	return contents.Leaf, key, nil
}
