package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sensiblebit/x509kit"
)

// CSROptions holds parameters for CSR generation. Exactly one of CN,
// CertPath and CSRPath supplies the subject.
type CSROptions struct {
	CN        string
	CertPath  string
	CSRPath   string
	KeyPath   string
	Algorithm string
	Curve     string
	Profile   *Profile
	OutPath   string
	Passwords []string
}

// CSRResult holds the generated request and, when a key was generated, the
// new private key.
type CSRResult struct {
	CSRPEM  string
	KeyPEM  string
	CSRFile string
	KeyFile string
}

// LoadKeyFile reads the first private key from a PEM, PKCS#12 or JKS file.
func LoadKeyFile(path string, passwords []string) (*x509kit.KeyPair, error) {
	contents, err := readContainer(path, passwords)
	if err != nil {
		return nil, err
	}
	if contents.Key == nil {
		return nil, fmt.Errorf("no private key found in %s", path)
	}
	return contents.Key, nil
}

// LoadCSRFile reads a PEM or DER certification request and checks its
// self-signature.
func LoadCSRFile(path string) (*x509kit.CertificationRequest, error) {
	data, err := ReadInput(path, DefaultMaxInputSize)
	if err != nil {
		return nil, err
	}
	var csr *x509kit.CertificationRequest
	if x509kit.IsPEM(data) {
		csr, err = x509kit.ParseCertificationRequestPEM(data)
	} else {
		csr, err = x509kit.ParseCertificationRequestDER(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing CSR %s: %w", path, err)
	}
	if err := csr.Verify(); err != nil {
		return nil, fmt.Errorf("CSR %s: %w", path, err)
	}
	return csr, nil
}

// GenerateCSRFiles builds a CSR from a common name, an existing
// certificate or an existing CSR, signing it with the given key or a newly
// generated one.
func GenerateCSRFiles(opts CSROptions) (*CSRResult, error) {
	sources := 0
	for _, s := range []string{opts.CN, opts.CertPath, opts.CSRPath} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of --cn, --cert, or --from-csr is required")
	}

	b := x509kit.NewBuilder()
	switch {
	case opts.CN != "":
		if opts.Profile != nil && opts.Profile.Subject != nil {
			if err := opts.Profile.Subject.apply(b.Subject()); err != nil {
				return nil, err
			}
		}
		if err := b.Subject().AppendCommonName(opts.CN); err != nil {
			return nil, fmt.Errorf("setting common name: %w", err)
		}
	case opts.CertPath != "":
		contents, err := LoadContainerFile(opts.CertPath, opts.Passwords)
		if err != nil {
			return nil, err
		}
		*b.Subject() = contents.Leaf.Subject()
	default:
		csr, err := LoadCSRFile(opts.CSRPath)
		if err != nil {
			return nil, err
		}
		*b.Subject() = csr.Subject()
		attrs, err := csr.Attributes()
		if err != nil {
			return nil, fmt.Errorf("reading CSR attributes: %w", err)
		}
		for _, attr := range attrs {
			b.AddCSRAttribute(attr)
		}
	}

	result := &CSRResult{}
	var kp *x509kit.KeyPair
	if opts.KeyPath != "" {
		var err error
		if kp, err = LoadKeyFile(opts.KeyPath, opts.Passwords); err != nil {
			return nil, err
		}
	} else {
		alg, err := ParseKeyAlgorithm(opts.Algorithm, opts.Curve)
		if err != nil {
			return nil, err
		}
		if kp, err = x509kit.GenerateKeyPair(alg); err != nil {
			return nil, fmt.Errorf("generating %s key: %w", alg, err)
		}
		keyPEM, err := KeyPEM(kp)
		if err != nil {
			return nil, err
		}
		result.KeyPEM = string(keyPEM)
	}
	defer kp.Destroy()

	csr, err := b.CreateCertificateSigningRequest(kp)
	if err != nil {
		return nil, fmt.Errorf("creating CSR: %w", err)
	}
	if result.CSRPEM, err = csr.EncodePEM(); err != nil {
		return nil, fmt.Errorf("encoding CSR: %w", err)
	}

	if opts.OutPath == "" {
		return result, nil
	}
	if err := os.MkdirAll(opts.OutPath, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", opts.OutPath, err)
	}
	result.CSRFile = filepath.Join(opts.OutPath, "csr.pem")
	if err := os.WriteFile(result.CSRFile, []byte(result.CSRPEM), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", result.CSRFile, err)
	}
	if result.KeyPEM != "" {
		result.KeyFile = filepath.Join(opts.OutPath, "key.pem")
		if err := os.WriteFile(result.KeyFile, []byte(result.KeyPEM), 0600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", result.KeyFile, err)
		}
	}
	return result, nil
}
