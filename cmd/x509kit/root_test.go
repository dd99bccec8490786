package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeFlagName(t *testing.T) {
	// WHY: Underscore spellings of flags must resolve to the dashed flag.
	t.Parallel()

	for in, want := range map[string]string{
		"save_db":         "save-db",
		"save-db":         "save-db",
		"include_expired": "include-expired",
	} {
		if got := string(normalizeFlagName(nil, in)); got != want {
			t.Errorf("normalizeFlagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	// WHY: Every subcommand must be reachable from the root command.
	t.Parallel()

	for _, name := range []string{"inspect", "verify", "chain", "keygen", "csr", "create", "scan", "export"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	// WHY: Explicit formats pass through; only "auto" consults the terminal.
	t.Parallel()

	for _, f := range []string{"text", "json", "openssl"} {
		if got := outputFormat(f); got != f {
			t.Errorf("outputFormat(%q) = %q", f, got)
		}
	}
	if got := outputFormat("auto"); got != "text" && got != "json" {
		t.Errorf("outputFormat(auto) = %q", got)
	}
}

func TestLoadProfile(t *testing.T) {
	// WHY: A single-profile file needs no --profile, a multi-profile file
	// does, and --profile without a file is a usage error.
	t.Parallel()

	dir := t.TempDir()
	single := filepath.Join(dir, "single.yaml")
	multi := filepath.Join(dir, "multi.yaml")
	if err := os.WriteFile(single, []byte("profiles:\n  - name: web\n    validityDays: 90\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(multi, []byte("profiles:\n  - name: web\n  - name: ca\n    ca: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if p, err := loadProfile("", ""); err != nil || p != nil {
		t.Errorf("no file: %v, %v", p, err)
	}
	if _, err := loadProfile("", "web"); err == nil {
		t.Error("--profile without file accepted")
	}
	if p, err := loadProfile(single, ""); err != nil || p.Name != "web" || p.ValidityDays != 90 {
		t.Errorf("single: %+v, %v", p, err)
	}
	if _, err := loadProfile(multi, ""); err == nil {
		t.Error("ambiguous profile file accepted")
	}
	if p, err := loadProfile(multi, "ca"); err != nil || !p.CA {
		t.Errorf("multi ca: %+v, %v", p, err)
	}
	if _, err := loadProfile(multi, "missing"); err == nil {
		t.Error("unknown profile accepted")
	}
}
