package internal

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sensiblebit/x509kit"
)

// ParseKeyAlgorithm maps the command line names rsa, ecdsa and ed25519
// (with a P-256 or P-384 curve for ecdsa) to a key algorithm.
func ParseKeyAlgorithm(algorithm, curve string) (x509kit.KeyAlgorithm, error) {
	switch strings.ToLower(algorithm) {
	case "rsa":
		return x509kit.KeyAlgorithmRSA, nil
	case "ed25519":
		return x509kit.KeyAlgorithmEd25519, nil
	case "ecdsa", "ec":
		for _, c := range x509kit.AllCurves() {
			if strings.EqualFold(c.String(), curve) {
				return x509kit.KeyAlgorithmECDSA(c), nil
			}
		}
		return x509kit.KeyAlgorithm{}, fmt.Errorf("unsupported curve %q (use P-256 or P-384)", curve)
	}
	return x509kit.KeyAlgorithm{}, fmt.Errorf("unsupported algorithm %q (use rsa, ecdsa, or ed25519)", algorithm)
}

// KeyPEM encodes a key pair as an unencrypted PKCS#8 PRIVATE KEY block.
func KeyPEM(kp *x509kit.KeyPair) ([]byte, error) {
	der := kp.PKCS8DER()
	if der == nil || der.Len() == 0 {
		return nil, errors.New("key pair has no private key material")
	}
	defer der.Destroy()
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der.Bytes()}), nil
}

// PublicKeyPEM encodes the public half of a key pair as a PUBLIC KEY block.
func PublicKeyPEM(kp *x509kit.KeyPair) ([]byte, error) {
	signer := kp.Signer()
	if signer == nil {
		return nil, errors.New("key pair has been destroyed")
	}
	der, err := x509.MarshalPKIXPublicKey(signer.Public())
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// KeygenOptions holds parameters for key generation.
type KeygenOptions struct {
	Algorithm    string
	Curve        string
	OutPath      string
	CN           string
	SelfSigned   bool
	ValidityDays int
	JWK          bool
}

// KeygenResult holds the generated PEM data and, when written to disk, the
// file paths.
type KeygenResult struct {
	KeyPEM  string
	PubPEM  string
	CSRPEM  string
	CertPEM string
	JWK     string

	KeyFile  string
	PubFile  string
	CSRFile  string
	CertFile string
	JWKFile  string
}

// GenerateKeyFiles generates a key pair and, when a CN is given, a CSR or
// a self-signed certificate. Outputs are written to OutPath when set.
func GenerateKeyFiles(opts KeygenOptions) (*KeygenResult, error) {
	alg, err := ParseKeyAlgorithm(opts.Algorithm, opts.Curve)
	if err != nil {
		return nil, err
	}
	if opts.SelfSigned && opts.CN == "" {
		return nil, errors.New("a self-signed certificate needs --cn")
	}
	kp, err := x509kit.GenerateKeyPair(alg)
	if err != nil {
		return nil, fmt.Errorf("generating %s key: %w", alg, err)
	}
	defer kp.Destroy()

	result := &KeygenResult{}
	keyPEM, err := KeyPEM(kp)
	if err != nil {
		return nil, err
	}
	pubPEM, err := PublicKeyPEM(kp)
	if err != nil {
		return nil, err
	}
	result.KeyPEM, result.PubPEM = string(keyPEM), string(pubPEM)

	if opts.CN != "" {
		b := x509kit.NewBuilder()
		if err := b.Subject().AppendCommonName(opts.CN); err != nil {
			return nil, fmt.Errorf("setting common name: %w", err)
		}
		if opts.SelfSigned {
			days := opts.ValidityDays
			if days <= 0 {
				days = 365
			}
			b.SetValidityDuration(time.Duration(days) * 24 * time.Hour)
			b.ConstraintNotCA()
			cert, err := b.CreateWithKeyPair(kp)
			if err != nil {
				return nil, fmt.Errorf("creating self-signed certificate: %w", err)
			}
			result.CertPEM = cert.EncodePEM()
		} else {
			csr, err := b.CreateCertificateSigningRequest(kp)
			if err != nil {
				return nil, fmt.Errorf("creating CSR: %w", err)
			}
			if result.CSRPEM, err = csr.EncodePEM(); err != nil {
				return nil, fmt.Errorf("encoding CSR: %w", err)
			}
		}
	}

	if opts.JWK {
		jwk, err := PublicJWK(kp.Signer().Public())
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(jwk, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling JWK: %w", err)
		}
		result.JWK = string(data) + "\n"
	}

	if opts.OutPath == "" {
		return result, nil
	}
	if err := os.MkdirAll(opts.OutPath, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", opts.OutPath, err)
	}
	outputs := []struct {
		path *string
		name string
		data string
		mode os.FileMode
	}{
		{&result.KeyFile, "key.pem", result.KeyPEM, 0600},
		{&result.PubFile, "pub.pem", result.PubPEM, 0644},
		{&result.CSRFile, "csr.pem", result.CSRPEM, 0644},
		{&result.CertFile, "cert.pem", result.CertPEM, 0644},
		{&result.JWKFile, "pub.jwk", result.JWK, 0644},
	}
	for _, o := range outputs {
		if o.data == "" {
			continue
		}
		path := filepath.Join(opts.OutPath, o.name)
		if err := os.WriteFile(path, []byte(o.data), o.mode); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		*o.path = path
	}
	return result, nil
}
