// Package certstore provides the shared certificate and key ingestion
// pipeline behind the scan, verify and export commands. Parsed objects are
// handed to a Handler; MemStore is the catalogue implementation and can be
// persisted to SQLite.
package certstore

import "github.com/sensiblebit/x509kit"

// Handler receives captured certificates and key pairs from the processing
// pipeline.
type Handler interface {
	HandleCertificate(cert *x509kit.CapturedCertificate, source string) error
	HandleKey(kp *x509kit.KeyPair, source string) error
}

// ProcessInput holds parameters for ProcessData.
type ProcessInput struct {
	Data      []byte   // raw file content
	Path      string   // virtual path for logging and extension detection
	Passwords []string // passwords to try for encrypted formats
	Handler   Handler  // receives parsed items

	// ForceBinary tries the binary parsers on non-PEM data whatever the
	// extension. Set for files the user named explicitly.
	ForceBinary bool
}
