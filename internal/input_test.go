package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadInput(t *testing.T) {
	// WHY: Every command reads its input through ReadInput; the size limit
	// guards against feeding huge files to ASN.1 parsers and pooled buffers
	// must never leak between calls.
	t.Parallel()

	dir := t.TempDir()
	small := filepath.Join(dir, "small.pem")
	if err := os.WriteFile(small, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "other.pem")
	if err := os.WriteFile(other, []byte("2nd"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadInput(small, 16)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := ReadInput(other, 16)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "first" || string(got2) != "2nd" {
		t.Errorf("got %q and %q", got, got2)
	}

	if _, err := ReadInput(small, 4); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("oversized input: err = %v", err)
	}
	if _, err := ReadInput(filepath.Join(dir, "missing.pem"), 16); err == nil {
		t.Error("missing file accepted")
	}
}
