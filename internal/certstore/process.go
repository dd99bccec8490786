package certstore

import (
	"bytes"
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"log/slog"

	"github.com/sensiblebit/x509kit"
)

var jksMagic = []byte{0xFE, 0xED, 0xFE, 0xED}

// ProcessData ingests certificates and keys from in-memory data, dispatching
// them to the handler. PEM input is scanned block by block; binary input is
// only tried for recognized extensions. Expired certificates are ingested
// like any other; filtering is an output concern.
func ProcessData(input ProcessInput) error {
	if len(input.Data) == 0 {
		return nil
	}

	if x509kit.IsPEM(input.Data) {
		slog.Debug("processing as PEM format", "path", input.Path)
		processPEM(input.Data, input.Path, input.Passwords, input.Handler)
		return nil
	}

	if input.ForceBinary || HasBinaryExtension(input.Path) {
		slog.Debug("processing as binary crypto format", "path", input.Path)
		processBinary(input.Data, input.Path, input.Passwords, input.Handler)
	}
	return nil
}

// processPEM dispatches every certificate and private key block. Malformed
// blocks are logged and skipped so one bad block does not hide the rest.
func processPEM(data []byte, source string, passwords []string, handler Handler) {
	rest := data
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE", "TRUSTED CERTIFICATE", "X509 CERTIFICATE":
			cert, err := x509kit.ParseCapturedDER(block.Bytes)
			if err != nil {
				slog.Warn("skipping malformed certificate", "path", source, "error", err)
				continue
			}
			if err := handler.HandleCertificate(cert, source); err != nil {
				slog.Debug("handler rejected certificate", "path", source, "error", err)
			}
		case "PKCS7":
			certs, err := x509kit.DecodePKCS7(block.Bytes)
			if err != nil {
				slog.Warn("skipping malformed PKCS#7 block", "path", source, "error", err)
				continue
			}
			handleCertificates(certs, source, handler)
		default:
			kp, err := ParseKeyBlock(block, passwords)
			if errors.Is(err, errNotAKey) {
				continue
			}
			if err != nil {
				slog.Debug("parsing private key from PEM block", "path", source, "type", block.Type, "error", err)
				continue
			}
			if err := handler.HandleKey(kp, source); err != nil {
				slog.Debug("handler rejected key", "path", source, "error", err)
			}
		}
	}
}

func handleCertificates(certs []*x509kit.CapturedCertificate, source string, handler Handler) {
	for _, cert := range certs {
		if err := handler.HandleCertificate(cert, source); err != nil {
			slog.Debug("handler rejected certificate", "path", source, "error", err)
		}
	}
}

func handleKeys(keys []*x509kit.KeyPair, source string, handler Handler) {
	for _, kp := range keys {
		if err := handler.HandleKey(kp, source); err != nil {
			slog.Debug("handler rejected key", "path", source, "error", err)
		}
	}
}

// processBinary tries the binary formats in priority order:
// certificate (DER, BER, PKCS#7) → private key (PKCS#8, PKCS#1, SEC1) →
// raw Ed25519 → JKS → PKCS#12.
func processBinary(data []byte, source string, passwords []string, handler Handler) {
	if certs, err := x509kit.ParseCapturedAny(data); err == nil && len(certs) > 0 {
		slog.Debug("parsed binary certificate(s)", "path", source, "count", len(certs), "encoding", certs[0].Encoding())
		handleCertificates(certs, source, handler)
		return
	}

	if kp, err := parseDERKey(data); err == nil {
		slog.Debug("parsed DER private key", "path", source)
		handleKeys([]*x509kit.KeyPair{kp}, source, handler)
		return
	}

	// Raw Ed25519 keys are seed || public key. Deriving the public half
	// from the seed keeps arbitrary 64-byte files from matching.
	if len(data) == ed25519.PrivateKeySize {
		derived := ed25519.NewKeyFromSeed(data[:ed25519.SeedSize])
		if bytes.Equal(derived[ed25519.SeedSize:], data[ed25519.SeedSize:]) {
			kp, err := x509kit.KeyPairFromPrivateKey(derived)
			if err == nil {
				slog.Debug("parsed raw Ed25519 private key", "path", source)
				handleKeys([]*x509kit.KeyPair{kp}, source, handler)
				return
			}
		}
	}

	if bytes.HasPrefix(data, jksMagic) {
		for _, password := range passwords {
			certs, keys, err := x509kit.DecodeJKS(data, password)
			if err != nil {
				slog.Debug("JKS decode failed", "path", source, "error", err)
				continue
			}
			handleCertificates(certs, source, handler)
			handleKeys(keys, source, handler)
			return
		}
		return
	}

	for _, password := range passwords {
		kp, leaf, chain, err := x509kit.DecodePKCS12(data, password)
		if err != nil {
			slog.Debug("PKCS#12 decode failed", "path", source, "error", err)
			continue
		}
		if leaf != nil {
			handleCertificates([]*x509kit.CapturedCertificate{leaf}, source, handler)
		}
		handleCertificates(chain, source, handler)
		if kp != nil {
			handleKeys([]*x509kit.KeyPair{kp}, source, handler)
		}
		return
	}

	slog.Debug("no known format matched binary data", "path", source)
}
