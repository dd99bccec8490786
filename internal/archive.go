package internal

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/sensiblebit/x509kit/internal/certstore"
)

// ArchiveLimits controls zip bomb protection thresholds.
type ArchiveLimits struct {
	// MaxDecompressionRatio caps uncompressed/compressed size of a ZIP entry.
	MaxDecompressionRatio int64

	// MaxTotalSize caps the bytes extracted from one archive.
	MaxTotalSize int64

	// MaxEntryCount caps the entries processed from one archive.
	MaxEntryCount int

	// MaxEntrySize caps a single decompressed entry; larger entries are
	// skipped.
	MaxEntrySize int64
}

// DefaultArchiveLimits returns conservative defaults for archive extraction.
func DefaultArchiveLimits() ArchiveLimits {
	return ArchiveLimits{
		MaxDecompressionRatio: 100,
		MaxTotalSize:          256 * 1024 * 1024,
		MaxEntryCount:         10_000,
		MaxEntrySize:          DefaultMaxInputSize,
	}
}

// ProcessArchiveInput holds the parameters for archive processing.
type ProcessArchiveInput struct {
	ArchivePath string
	Data        []byte
	Format      string
	Limits      ArchiveLimits
	Handler     certstore.Handler
	Passwords   []string
}

var errArchiveBudget = errors.New("archive budget exhausted")

// ArchiveFormat returns "zip", "tar" or "tar.gz" for a recognized archive
// path, or "".
func ArchiveFormat(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), filepath.Ext(lower) == ".tgz":
		return "tar.gz"
	case filepath.Ext(lower) == ".tar":
		return "tar"
	case filepath.Ext(lower) == ".zip":
		return "zip"
	}
	return ""
}

// IsArchive reports whether the given path has a recognized archive extension.
func IsArchive(path string) bool {
	return ArchiveFormat(path) != ""
}

// archiveWalker feeds archive entries to the certstore pipeline while
// enforcing the limits. Nested archives are not recursed into.
type archiveWalker struct {
	input     ProcessArchiveInput
	totalSize int64
	processed int
}

// admit checks an entry's claimed size against the limits. A nil error
// with false skips the entry; errArchiveBudget stops the walk.
func (w *archiveWalker) admit(name string, size int64) (bool, error) {
	limits := w.input.Limits
	if w.processed >= limits.MaxEntryCount {
		slog.Warn("archive entry count limit reached, stopping",
			"archive", w.input.ArchivePath, "limit", limits.MaxEntryCount)
		return false, errArchiveBudget
	}
	if IsArchive(name) {
		slog.Debug("skipping nested archive", "archive", w.input.ArchivePath, "entry", name)
		return false, nil
	}
	if size > limits.MaxEntrySize {
		slog.Debug("skipping oversized archive entry",
			"archive", w.input.ArchivePath, "entry", name, "size", size, "limit", limits.MaxEntrySize)
		return false, nil
	}
	if w.totalSize+size > limits.MaxTotalSize {
		slog.Warn("archive total size limit reached, stopping",
			"archive", w.input.ArchivePath, "limit", limits.MaxTotalSize)
		return false, errArchiveBudget
	}
	return true, nil
}

// consume reads an admitted entry, never trusting the header's size claim,
// and processes it.
func (w *archiveWalker) consume(name string, r io.Reader) {
	data, err := io.ReadAll(io.LimitReader(r, safeLimitSize(w.input.Limits.MaxEntrySize)))
	if err != nil {
		slog.Debug("reading archive entry", "archive", w.input.ArchivePath, "entry", name, "error", err)
		return
	}
	if int64(len(data)) > w.input.Limits.MaxEntrySize {
		slog.Warn("archive entry exceeded max size despite header claim",
			"archive", w.input.ArchivePath, "entry", name)
		return
	}
	w.totalSize += int64(len(data))
	w.processed++

	virtualPath := w.input.ArchivePath + ":" + name
	if err := certstore.ProcessData(certstore.ProcessInput{
		Data:      data,
		Path:      virtualPath,
		Passwords: w.input.Passwords,
		Handler:   w.input.Handler,
	}); err != nil {
		slog.Debug("processing archive entry", "path", virtualPath, "error", err)
	}
}

// ProcessArchive extracts entries from an archive and feeds each to the
// handler. It returns the number of entries processed.
func ProcessArchive(input ProcessArchiveInput) (int, error) {
	w := &archiveWalker{input: input}
	var err error
	switch input.Format {
	case "zip":
		err = w.walkZip()
	case "tar":
		err = w.walkTar(bytes.NewReader(input.Data))
	case "tar.gz":
		var gr *gzip.Reader
		gr, err = gzip.NewReader(bytes.NewReader(input.Data))
		if err != nil {
			return 0, fmt.Errorf("opening gzip layer for %s: %w", input.ArchivePath, err)
		}
		defer gr.Close()
		err = w.walkTar(gr)
	default:
		return 0, fmt.Errorf("unsupported archive format: %q", input.Format)
	}
	if err != nil {
		return 0, err
	}
	slog.Info("processed archive", "archive", input.ArchivePath, "format", input.Format, "entries", w.processed)
	return w.processed, nil
}

func (w *archiveWalker) walkZip() error {
	reader, err := zip.NewReader(bytes.NewReader(w.input.Data), int64(len(w.input.Data)))
	if err != nil {
		return fmt.Errorf("opening ZIP archive %s: %w", w.input.ArchivePath, err)
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.CompressedSize64 > 0 {
			ratio := int64(f.UncompressedSize64 / f.CompressedSize64)
			if ratio > w.input.Limits.MaxDecompressionRatio {
				slog.Warn("skipping suspicious ZIP entry: decompression ratio too high",
					"archive", w.input.ArchivePath, "entry", f.Name,
					"ratio", ratio, "limit", w.input.Limits.MaxDecompressionRatio)
				continue
			}
		}
		ok, err := w.admit(f.Name, int64(f.UncompressedSize64))
		if errors.Is(err, errArchiveBudget) {
			break
		}
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			slog.Debug("opening ZIP entry", "archive", w.input.ArchivePath, "entry", f.Name, "error", err)
			continue
		}
		w.consume(f.Name, rc)
		if err := rc.Close(); err != nil {
			slog.Debug("closing ZIP entry", "entry", f.Name, "error", err)
		}
	}
	return nil
}

func (w *archiveWalker) walkTar(r io.Reader) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			// Keep what was read before the corruption.
			if w.processed > 0 {
				slog.Warn("tar read error after processing entries",
					"archive", w.input.ArchivePath, "processed", w.processed, "error", err)
				return nil
			}
			return fmt.Errorf("reading TAR archive %s: %w", w.input.ArchivePath, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		ok, err := w.admit(header.Name, header.Size)
		if errors.Is(err, errArchiveBudget) {
			return nil
		}
		if ok {
			w.consume(header.Name, tr)
		}
	}
}

// safeLimitSize returns maxSize+1 for overflow detection in io.LimitReader,
// clamped to math.MaxInt64.
func safeLimitSize(maxSize int64) int64 {
	if maxSize == math.MaxInt64 {
		return math.MaxInt64
	}
	return maxSize + 1
}
