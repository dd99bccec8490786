package certstore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/sensiblebit/x509kit"
)

// errNotAKey is returned by ParseKeyBlock for PEM blocks that hold
// something other than a private key.
var errNotAKey = errors.New("PEM block is not a private key")

// ParseKeyBlock converts a private key PEM block into a key pair. PKCS#8,
// PKCS#1 RSA, SEC1 EC and OpenSSH blocks are understood; encrypted OpenSSH
// keys are tried with each password in turn.
func ParseKeyBlock(block *pem.Block, passwords []string) (*x509kit.KeyPair, error) {
	switch block.Type {
	case "PRIVATE KEY":
		return x509kit.KeyPairFromPKCS8DER(block.Bytes)
	case "RSA PRIVATE KEY":
		return keyPairFrom(x509.ParsePKCS1PrivateKey(block.Bytes))
	case "EC PRIVATE KEY":
		return keyPairFrom(x509.ParseECPrivateKey(block.Bytes))
	case "OPENSSH PRIVATE KEY":
		data := pem.EncodeToMemory(block)
		var lastErr error
		for _, pw := range passwords {
			kp, err := x509kit.KeyPairFromOpenSSH(data, []byte(pw))
			if err == nil {
				return kp, nil
			}
			lastErr = err
		}
		if lastErr == nil {
			return x509kit.KeyPairFromOpenSSH(data, nil)
		}
		return nil, lastErr
	}
	if strings.Contains(block.Type, "PRIVATE KEY") {
		return nil, fmt.Errorf("unsupported private key block %q", block.Type)
	}
	return nil, errNotAKey
}

func keyPairFrom(key crypto.PrivateKey, err error) (*x509kit.KeyPair, error) {
	if err != nil {
		return nil, err
	}
	return x509kit.KeyPairFromPrivateKey(key)
}

// parseDERKey tries PKCS#8, PKCS#1 RSA and SEC1 EC in that order.
func parseDERKey(data []byte) (*x509kit.KeyPair, error) {
	if kp, err := x509kit.KeyPairFromPKCS8DER(data); err == nil {
		return kp, nil
	}
	if kp, err := keyPairFrom(x509.ParsePKCS1PrivateKey(data)); err == nil {
		return kp, nil
	}
	return keyPairFrom(x509.ParseECPrivateKey(data))
}
