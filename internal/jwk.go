package internal

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"gopkg.in/square/go-jose.v2"
)

func algorithmForKey(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return string(jose.RS256), nil
	case *ecdsa.PublicKey:
		switch k.Params().Name {
		case "P-256":
			return string(jose.ES256), nil
		case "P-384":
			return string(jose.ES384), nil
		case "P-521":
			return string(jose.ES512), nil
		}
	case ed25519.PublicKey:
		return string(jose.EdDSA), nil
	}
	return "", fmt.Errorf("no signature algorithms suitable for given key type: %T", pub)
}

// PublicJWK wraps a public key as a signing JWK whose key ID is the
// base64url RFC 7638 SHA-256 thumbprint.
func PublicJWK(pub crypto.PublicKey) (*jose.JSONWebKey, error) {
	alg, err := algorithmForKey(pub)
	if err != nil {
		return nil, err
	}
	jwk := &jose.JSONWebKey{Key: pub, Algorithm: alg, Use: "sig"}
	if !jwk.Valid() {
		return nil, fmt.Errorf("invalid %s public key", alg)
	}
	thumbprint, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("computing JWK thumbprint: %w", err)
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumbprint)
	return jwk, nil
}
