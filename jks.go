package x509kit

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavlo-v-chernykh/keystore-go/v4"
)

const jksKeyAlias = "server"

// DecodeJKS loads a Java KeyStore. Trusted certificate entries yield
// certificates; private key entries yield a key pair built straight from
// the stored PKCS#8 bytes plus the entry's chain. The store password also
// unlocks the entries. Entries that fail to decode are skipped.
func DecodeJKS(data []byte, password string) ([]*CapturedCertificate, []*KeyPair, error) {
	ks := keystore.New()
	if err := ks.Load(bytes.NewReader(data), []byte(password)); err != nil {
		return nil, nil, fmt.Errorf("loading JKS: %w", err)
	}

	var certs []*CapturedCertificate
	var keys []*KeyPair

	for _, alias := range ks.Aliases() {
		switch {
		case ks.IsTrustedCertificateEntry(alias):
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				slog.Debug("skipping JKS entry", "alias", alias, "error", err)
				continue
			}
			cert, err := ParseCapturedDER(entry.Certificate.Content)
			if err != nil {
				slog.Debug("skipping JKS certificate", "alias", alias, "error", err)
				continue
			}
			certs = append(certs, cert)

		case ks.IsPrivateKeyEntry(alias):
			entry, err := ks.GetPrivateKeyEntry(alias, []byte(password))
			if err != nil {
				slog.Debug("skipping JKS entry", "alias", alias, "error", err)
				continue
			}
			kp, err := KeyPairFromPKCS8DER(entry.PrivateKey)
			clear(entry.PrivateKey)
			if err != nil {
				slog.Debug("skipping JKS private key", "alias", alias, "error", err)
				continue
			}
			keys = append(keys, kp)

			for _, c := range entry.CertificateChain {
				cert, err := ParseCapturedDER(c.Content)
				if err != nil {
					slog.Debug("skipping JKS chain certificate", "alias", alias, "error", err)
					continue
				}
				certs = append(certs, cert)
			}
		}
	}

	if len(certs) == 0 && len(keys) == 0 {
		return nil, nil, errors.New("JKS contains no usable certificates or keys")
	}
	return certs, keys, nil
}

// EncodeJKS creates a keystore with one private key entry, alias "server",
// holding kp with leaf followed by chain as its certificate chain.
func EncodeJKS(kp *KeyPair, leaf *CapturedCertificate, chain []*CapturedCertificate, password string) ([]byte, error) {
	pkcs8 := kp.PKCS8DER()
	defer pkcs8.Destroy()
	if pkcs8.Len() == 0 {
		return nil, errKeyPairDestroyed
	}

	entries := make([]keystore.Certificate, 0, 1+len(chain))
	for _, c := range append([]*CapturedCertificate{leaf}, chain...) {
		der, err := c.DERBytes()
		if err != nil {
			return nil, err
		}
		entries = append(entries, keystore.Certificate{Type: "X.509", Content: der})
	}

	ks := keystore.New()
	if err := ks.SetPrivateKeyEntry(jksKeyAlias, keystore.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       pkcs8.Bytes(),
		CertificateChain: entries,
	}, []byte(password)); err != nil {
		return nil, fmt.Errorf("setting JKS private key entry: %w", err)
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}
