package internal

import (
	"fmt"

	"github.com/sensiblebit/x509kit/internal/certstore"
)

// LoadContainerFile reads a file (or stdin for "-") and parses it as PEM,
// DER, BER, PKCS#7, PKCS#12 or JKS, returning the leaf certificate, an
// optional private key and any extra certificates. A file without a
// certificate is an error.
func LoadContainerFile(path string, passwords []string) (*certstore.ContainerContents, error) {
	contents, err := readContainer(path, passwords)
	if err != nil {
		return nil, err
	}
	if contents.Leaf == nil {
		if contents.Key != nil {
			contents.Key.Destroy()
		}
		return nil, fmt.Errorf("no certificate in %s", path)
	}
	return contents, nil
}

func readContainer(path string, passwords []string) (*certstore.ContainerContents, error) {
	data, err := ReadInput(path, DefaultMaxInputSize)
	if err != nil {
		return nil, err
	}
	contents, err := certstore.ParseContainerData(data, passwords)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return contents, nil
}
