package internal

import (
	"strings"
	"testing"
	"time"

	"github.com/sensiblebit/x509kit"
)

func TestVerifyCert(t *testing.T) {
	// WHY: Each check must pass on a healthy certificate and fail with a
	// reported error on the matching defect.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	other := newKeyPair(t, x509kit.KeyAlgorithmECDSA(x509kit.CurveP256))
	extras := []*x509kit.CapturedCertificate{p.intermediate, p.root}

	tests := []struct {
		name       string
		input      VerifyInput
		wantErrors int
		check      func(t *testing.T, r *VerifyResult)
	}{
		{
			name:  "all checks pass",
			input: VerifyInput{Cert: p.leaf, Key: p.leafKey, ExtraCerts: extras, CheckKeyMatch: true, CheckChain: true, ExpiryDuration: 24 * time.Hour},
			check: func(t *testing.T, r *VerifyResult) {
				if r.KeyMatch == nil || !*r.KeyMatch {
					t.Error("key did not match")
				}
				if r.ChainValid == nil || !*r.ChainValid || len(r.Chain) != 3 || !r.Chain[2].IsRoot {
					t.Errorf("chain = %+v", r.Chain)
				}
			},
		},
		{
			name:       "wrong key",
			input:      VerifyInput{Cert: p.leaf, Key: other, CheckKeyMatch: true},
			wantErrors: 1,
		},
		{
			name:       "missing root",
			input:      VerifyInput{Cert: p.leaf, ExtraCerts: []*x509kit.CapturedCertificate{p.intermediate}, CheckChain: true},
			wantErrors: 1,
			check: func(t *testing.T, r *VerifyResult) {
				if len(r.Warnings) == 0 {
					t.Error("expected an incomplete chain warning")
				}
			},
		},
		{
			name:       "self-signed root",
			input:      VerifyInput{Cert: p.root, CheckChain: true},
			wantErrors: 0,
		},
		{
			name:       "expires within window",
			input:      VerifyInput{Cert: p.leaf, ExpiryDuration: 365 * 24 * time.Hour},
			wantErrors: 1,
		},
		{
			name:       "not yet valid",
			input:      VerifyInput{Cert: p.leaf, Now: time.Now().Add(-72 * time.Hour)},
			wantErrors: 1,
			check: func(t *testing.T, r *VerifyResult) {
				if r.Valid {
					t.Error("Valid = true before not-before")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			input := tt.input
			r, err := VerifyCert(&input)
			if err != nil {
				t.Fatal(err)
			}
			if len(r.Errors) != tt.wantErrors {
				t.Errorf("errors = %v, want %d", r.Errors, tt.wantErrors)
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}

	if _, err := VerifyCert(&VerifyInput{}); err == nil {
		t.Error("nil certificate accepted")
	}
}

func TestFormatVerifyResult(t *testing.T) {
	// WHY: The text report is the verify command's output; the verdict
	// line must agree with the collected errors.
	t.Parallel()

	p := newTestPKI(t, x509kit.KeyAlgorithmEd25519)
	ok, err := VerifyCert(&VerifyInput{Cert: p.leaf, Key: p.leafKey, CheckKeyMatch: true, ExtraCerts: []*x509kit.CapturedCertificate{p.intermediate, p.root}, CheckChain: true})
	if err != nil {
		t.Fatal(err)
	}
	out := FormatVerifyResult(ok)
	for _, want := range []string{"Certificate: CN=leaf.example.com", "Key Match: OK (ED25519)", "Chain: VALID", "[root]", "Verification OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	bad, err := VerifyCert(&VerifyInput{Cert: p.leaf, CheckChain: true})
	if err != nil {
		t.Fatal(err)
	}
	if out := FormatVerifyResult(bad); !strings.Contains(out, "Verification FAILED (1 error(s))") {
		t.Errorf("output:\n%s", out)
	}
}
