package certstore

import (
	"bytes"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/sensiblebit/x509kit"
)

// ContainerContents holds the parsed contents of a certificate container.
// Leaf is the first certificate found and Key the first usable private key.
type ContainerContents struct {
	Leaf       *x509kit.CapturedCertificate
	Key        *x509kit.KeyPair
	ExtraCerts []*x509kit.CapturedCertificate
}

// ParseContainerData parses data as PEM, JKS, PKCS#12, PKCS#7, DER or BER,
// returning the leaf certificate, an optional key pair and any extra
// certificates.
func ParseContainerData(data []byte, passwords []string) (*ContainerContents, error) {
	if len(data) == 0 {
		return nil, errors.New("empty data")
	}

	if x509kit.IsPEM(data) {
		return parsePEMContainer(data, passwords)
	}

	if bytes.HasPrefix(data, jksMagic) {
		var lastErr error
		for _, pw := range passwords {
			certs, keys, err := x509kit.DecodeJKS(data, pw)
			if err != nil {
				lastErr = err
				continue
			}
			contents := &ContainerContents{}
			if len(certs) > 0 {
				contents.Leaf, contents.ExtraCerts = certs[0], certs[1:]
			}
			if len(keys) > 0 {
				contents.Key = keys[0]
			}
			return contents, nil
		}
		return nil, fmt.Errorf("decoding JKS with %d passwords: %w", len(passwords), lastErr)
	}

	for _, pw := range passwords {
		kp, leaf, chain, err := x509kit.DecodePKCS12(data, pw)
		if err == nil {
			return &ContainerContents{Leaf: leaf, Key: kp, ExtraCerts: chain}, nil
		}
	}

	if certs, err := x509kit.ParseCapturedAny(data); err == nil && len(certs) > 0 {
		return &ContainerContents{Leaf: certs[0], ExtraCerts: certs[1:]}, nil
	}

	if kp, err := parseDERKey(data); err == nil {
		kp.Destroy()
		return nil, errors.New("DER private key has no certificate; supply it as PEM alongside its certificate")
	}

	return nil, errors.New("could not parse as PEM, DER, BER, PKCS#12, JKS, or PKCS#7")
}

func parsePEMContainer(data []byte, passwords []string) (*ContainerContents, error) {
	contents := &ContainerContents{}
	var certs []*x509kit.CapturedCertificate
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE", "TRUSTED CERTIFICATE":
			cert, err := x509kit.ParseCapturedDER(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing certificate block: %w", err)
			}
			certs = append(certs, cert)
		default:
			if contents.Key != nil {
				continue
			}
			kp, err := ParseKeyBlock(block, passwords)
			if err == nil {
				contents.Key = kp
			}
		}
	}
	if len(certs) == 0 && contents.Key == nil {
		return nil, errors.New("no certificates or private keys in PEM data")
	}
	if len(certs) > 0 {
		contents.Leaf, contents.ExtraCerts = certs[0], certs[1:]
	}
	return contents, nil
}
