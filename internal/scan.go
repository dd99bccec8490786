package internal

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sensiblebit/x509kit"
	"github.com/sensiblebit/x509kit/internal/certstore"
)

// skippableDirs contains directory names that cannot contain certificates or keys
// and should be skipped during filesystem walks to avoid unnecessary I/O.
var skippableDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"vendor":       true,
}

// IsSkippableDir reports whether the given directory name should be skipped
// during scanning because it cannot contain useful certificate or key files.
func IsSkippableDir(name string) bool {
	return skippableDirs[name]
}

// ScanConfig holds the settings shared by every file in one scan.
type ScanConfig struct {
	Store          *certstore.MemStore
	Passwords      []string
	IncludeExpired bool
	MaxFileSize    int64
	ArchiveLimits  ArchiveLimits
	Now            time.Time
}

// cliHandler stores what the parsers find in the MemStore, dropping expired
// certificates unless asked to keep them.
type cliHandler struct {
	cfg *ScanConfig
}

func (h *cliHandler) now() time.Time {
	if h.cfg.Now.IsZero() {
		return time.Now()
	}
	return h.cfg.Now
}

// HandleCertificate filters expired certificates and stores the rest.
func (h *cliHandler) HandleCertificate(cert *x509kit.CapturedCertificate, source string) error {
	if !h.cfg.IncludeExpired && h.now().After(cert.NotAfter()) {
		slog.Debug("skipping expired certificate",
			"cn", certstore.FormatCN(cert),
			"serial", cert.SerialNumber().String(),
			"expired", cert.NotAfter().Format(time.RFC3339))
		return nil
	}
	if err := h.cfg.Store.HandleCertificate(cert, source); err != nil {
		return err
	}
	slog.Info("found certificate", "path", source, "cn", certstore.FormatCN(cert),
		"ski", x509kit.ColonHex(x509kit.ComputeSKI(cert.PublicKeyData())))
	return nil
}

// HandleKey stores the key pair.
func (h *cliHandler) HandleKey(kp *x509kit.KeyPair, source string) error {
	if err := h.cfg.Store.HandleKey(kp, source); err != nil {
		return err
	}
	slog.Info("found private key", "path", source,
		"ski", x509kit.ColonHex(x509kit.ComputeSKI(kp.PublicKeyData())))
	return nil
}

// ProcessFile reads a file (or stdin for "-") and catalogues any
// certificates and keys it contains. Archives are unpacked in memory.
func ProcessFile(path string, cfg *ScanConfig) error {
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxInputSize
	}
	data, err := ReadInput(path, maxSize)
	if err != nil {
		return err
	}
	handler := &cliHandler{cfg: cfg}

	if format := ArchiveFormat(path); format != "" {
		limits := cfg.ArchiveLimits
		if limits == (ArchiveLimits{}) {
			limits = DefaultArchiveLimits()
		}
		_, err := ProcessArchive(ProcessArchiveInput{
			ArchivePath: path,
			Data:        data,
			Format:      format,
			Limits:      limits,
			Handler:     handler,
			Passwords:   cfg.Passwords,
		})
		return err
	}

	slog.Debug("processing file", "path", path)
	return certstore.ProcessData(certstore.ProcessInput{
		Data:      data,
		Path:      path,
		Passwords: cfg.Passwords,
		Handler:   handler,
	})
}

// ScanPath catalogues a single file, stdin, or every file below a
// directory. Per-file failures are logged and do not stop the walk.
func ScanPath(root string, cfg *ScanConfig) error {
	if root == "-" {
		if err := ProcessFile("-", cfg); err != nil {
			return fmt.Errorf("processing stdin: %w", err)
		}
		return nil
	}
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("input path %s: %w", root, err)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && IsSkippableDir(d.Name()) {
				slog.Debug("skipping directory", "path", path)
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := ProcessFile(path, cfg); err != nil {
			slog.Warn("error processing file", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking input path: %w", err)
	}
	return nil
}
