package internal

import (
	"encoding/json"
	"testing"

	"github.com/sensiblebit/x509kit"
)

func TestPublicJWK(t *testing.T) {
	// WHY: Each key type must map to its JOSE algorithm and carry a stable
	// thumbprint key ID so the JWK can be pinned.
	t.Parallel()

	tests := []struct {
		alg     x509kit.KeyAlgorithm
		wantAlg string
		wantKty string
	}{
		{x509kit.KeyAlgorithmRSA, "RS256", "RSA"},
		{x509kit.KeyAlgorithmECDSA(x509kit.CurveP256), "ES256", "EC"},
		{x509kit.KeyAlgorithmECDSA(x509kit.CurveP384), "ES384", "EC"},
		{x509kit.KeyAlgorithmEd25519, "EdDSA", "OKP"},
	}
	for _, tt := range tests {
		t.Run(tt.wantAlg, func(t *testing.T) {
			t.Parallel()
			kp := newKeyPair(t, tt.alg)
			jwk, err := PublicJWK(kp.Signer().Public())
			if err != nil {
				t.Fatal(err)
			}
			if jwk.Algorithm != tt.wantAlg {
				t.Errorf("alg = %q, want %q", jwk.Algorithm, tt.wantAlg)
			}
			again, err := PublicJWK(kp.Signer().Public())
			if err != nil || again.KeyID != jwk.KeyID || jwk.KeyID == "" {
				t.Errorf("key ID not stable: %q vs %q", jwk.KeyID, again.KeyID)
			}

			data, err := json.Marshal(jwk)
			if err != nil {
				t.Fatal(err)
			}
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err != nil {
				t.Fatal(err)
			}
			if fields["kty"] != tt.wantKty {
				t.Errorf("kty = %v, want %s", fields["kty"], tt.wantKty)
			}
			if _, ok := fields["d"]; ok {
				t.Error("private component leaked into JWK")
			}
		})
	}
}

func TestPublicJWK_Unsupported(t *testing.T) {
	// WHY: Keys with no JOSE algorithm are rejected instead of producing a
	// JWK nobody can verify with.
	t.Parallel()

	if _, err := PublicJWK("not a key"); err == nil {
		t.Error("expected error")
	}
}
