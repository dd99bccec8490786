package x509kit

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/crypto/ssh"
)

var errKeyPairDestroyed = errors.New("x509kit: key pair has been destroyed")

// KeyInfoSigner signs messages with a private key and describes the
// matching public key.
type KeyInfoSigner interface {
	PublicKeyInfo
	Sign(message []byte) ([]byte, error)
	SignatureAlgorithm() (SignatureAlgorithm, error)
}

// KeyPair is an in-memory private key usable for signing. It retains the
// PKCS#8 document it was built from; call Destroy to zero the private
// material once the key pair is no longer needed.
type KeyPair struct {
	alg       KeyAlgorithm
	pkcs8     *SecretBuffer
	private   *SecretBuffer
	signer    crypto.Signer
	publicKey []byte
}

// KeyPairFromPKCS8DER builds a key pair from a PKCS#8 (OneAsymmetricKey)
// document. data is copied.
func KeyPairFromPKCS8DER(data []byte) (kp *KeyPair, err error) {
	doc := NewSecretBuffer(bytes.Clone(data))
	defer func() {
		if err != nil {
			doc.Destroy()
		}
	}()

	var key oneAsymmetricKey
	if err := unmarshalDER(doc.Bytes(), &key, "PKCS#8 private key"); err != nil {
		return nil, err
	}
	alg, err := KeyAlgorithmFromIdentifier(key.Algorithm)
	if err != nil {
		return nil, err
	}

	kp = &KeyPair{alg: alg, pkcs8: doc}
	switch alg.Kind {
	case KeyKindRSA:
		priv, err := x509.ParsePKCS1PrivateKey(key.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing RSA private key: %w", ErrMalformed, err)
		}
		kp.signer = priv
		kp.private = NewSecretBuffer(bytes.Clone(key.PrivateKey))
		kp.publicKey = x509.MarshalPKCS1PublicKey(&priv.PublicKey)

	case KeyKindECDSA:
		parsed, err := x509.ParsePKCS8PrivateKey(doc.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: parsing ECDSA private key: %w", ErrMalformed, err)
		}
		priv, ok := parsed.(*ecdsa.PrivateKey)
		if ok && len(key.Algorithm.Parameters.FullBytes) == 0 {
			// No curve in the identifier; take it from the private key.
			curve, err := curveFor(priv)
			if err != nil {
				return nil, err
			}
			alg.Curve = curve
			kp.alg = alg
		}
		if !ok || priv.Curve != alg.Curve.Curve() {
			return nil, fmt.Errorf("%w: private key does not match %s %s", ErrMalformed, alg, alg.Curve)
		}
		pub, err := priv.PublicKey.ECDH()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		kp.signer = priv
		kp.private = NewSecretBuffer(bytes.Clone(doc.Bytes()))
		kp.publicKey = pub.Bytes()

	case KeyKindEd25519:
		var seed cryptobyte.String
		input := cryptobyte.String(key.PrivateKey)
		if !input.ReadASN1(&seed, cbasn1.OCTET_STRING) || !input.Empty() || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%w: invalid Ed25519 private key", ErrMalformed)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		kp.signer = priv
		kp.publicKey = bytes.Clone(priv.Public().(ed25519.PublicKey))
	}
	return kp, nil
}

func curveFor(priv *ecdsa.PrivateKey) (EcdsaCurve, error) {
	for _, c := range AllCurves() {
		if c.Curve() == priv.Curve {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownEllipticCurve, priv.Curve.Params().Name)
}

// KeyPairFromPKCS8PEM builds a key pair from the first PEM block of data.
func KeyPairFromPKCS8PEM(data []byte) (*KeyPair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEMBlock
	}
	defer clear(block.Bytes)
	return KeyPairFromPKCS8DER(block.Bytes)
}

// KeyPairFromPrivateKey converts an RSA, ECDSA or Ed25519 private key.
func KeyPairFromPrivateKey(key crypto.PrivateKey) (*KeyPair, error) {
	if k, ok := key.(*ed25519.PrivateKey); ok {
		key = *k
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}
	defer clear(der)
	return KeyPairFromPKCS8DER(der)
}

// KeyPairFromOpenSSH decodes an OpenSSH-format private key, optionally
// encrypted with passphrase.
func KeyPairFromOpenSSH(data, passphrase []byte) (*KeyPair, error) {
	var (
		raw any
		err error
	)
	if len(passphrase) > 0 {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	} else {
		raw, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
	}
	return KeyPairFromPrivateKey(raw)
}

// GenerateKeyPair generates a random Ed25519 or ECDSA key pair. RSA
// generation is not supported.
func GenerateKeyPair(alg KeyAlgorithm) (*KeyPair, error) {
	var (
		priv crypto.PrivateKey
		err  error
	)
	switch alg.Kind {
	case KeyKindEd25519:
		_, priv, err = ed25519.GenerateKey(rand.Reader)
	case KeyKindECDSA:
		curve := alg.Curve.Curve()
		if curve == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEllipticCurve, alg.Curve)
		}
		priv, err = ecdsa.GenerateKey(curve, rand.Reader)
	case KeyKindRSA:
		return nil, ErrRSAKeyGenerationNotSupported
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyAlgorithm, alg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyPairGeneration, err)
	}
	kp, err := KeyPairFromPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyPairGeneration, err)
	}
	return kp, nil
}

func (k *KeyPair) KeyAlgorithm() (KeyAlgorithm, error) { return k.alg, nil }

// PublicKeyData returns the public key in its certificate bit string form.
func (k *KeyPair) PublicKeyData() []byte { return bytes.Clone(k.publicKey) }

// SignatureAlgorithm returns the algorithm Sign produces: SHA-256 with RSA,
// ECDSA with the curve's digest, or PureEd25519.
func (k *KeyPair) SignatureAlgorithm() (SignatureAlgorithm, error) {
	switch k.alg.Kind {
	case KeyKindRSA:
		return SHA256WithRSA, nil
	case KeyKindECDSA:
		return k.alg.Curve.SignatureAlgorithm(), nil
	case KeyKindEd25519:
		return PureEd25519, nil
	}
	return SignatureAlgorithm{}, fmt.Errorf("%w: %s", ErrUnknownKeyAlgorithm, k.alg)
}

// VerificationAlgorithm returns the primitive that verifies signatures
// produced by Sign.
func (k *KeyPair) VerificationAlgorithm() (VerificationAlgorithm, error) {
	sig, err := k.SignatureAlgorithm()
	if err != nil {
		return VerificationAlgorithm{}, err
	}
	return sig.VerificationAlgorithm(k.alg)
}

// Sign signs message, hashing it as SignatureAlgorithm requires.
func (k *KeyPair) Sign(message []byte) ([]byte, error) {
	if k.signer == nil {
		return nil, errKeyPairDestroyed
	}
	var (
		sig []byte
		err error
	)
	switch k.alg.Kind {
	case KeyKindEd25519:
		sig, err = k.signer.Sign(rand.Reader, message, crypto.Hash(0))
	default:
		alg, _ := k.SignatureAlgorithm()
		d, _ := alg.DigestAlgorithm()
		sig, err = k.signer.Sign(rand.Reader, d.Digest(message), d.Hash())
	}
	if err != nil {
		return nil, fmt.Errorf("signing with %s key: %w", k.alg, err)
	}
	return sig, nil
}

// Signer returns the key as a crypto.Signer, or nil after Destroy.
func (k *KeyPair) Signer() crypto.Signer { return k.signer }

// PKCS8DER returns a copy of the PKCS#8 document.
func (k *KeyPair) PKCS8DER() *SecretBuffer {
	return NewSecretBuffer(bytes.Clone(k.pkcs8.Bytes()))
}

// PrivateKeyData returns a copy of the retained private key bytes: the
// PKCS#8 document for ECDSA, the RSAPrivateKey for RSA, and nil for Ed25519.
func (k *KeyPair) PrivateKeyData() *SecretBuffer {
	if k.private == nil {
		return nil
	}
	return NewSecretBuffer(bytes.Clone(k.private.Bytes()))
}

// RSAPrimes returns the prime factors p and q of an RSA key as raw integer
// contents. It returns nil buffers for other key types.
func (k *KeyPair) RSAPrimes() (p, q *SecretBuffer, err error) {
	if k.alg.Kind != KeyKindRSA {
		return nil, nil, nil
	}
	var seq, pBytes, qBytes cryptobyte.String
	var version int64
	input := cryptobyte.String(k.private.Bytes())
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) ||
		!seq.ReadASN1Integer(&version) ||
		!seq.SkipASN1(cbasn1.INTEGER) || // modulus
		!seq.SkipASN1(cbasn1.INTEGER) || // public exponent
		!seq.SkipASN1(cbasn1.INTEGER) || // private exponent
		!seq.ReadASN1(&pBytes, cbasn1.INTEGER) ||
		!seq.ReadASN1(&qBytes, cbasn1.INTEGER) {
		return nil, nil, fmt.Errorf("%w: invalid RSA private key", ErrMalformed)
	}
	return NewSecretBuffer(bytes.Clone(pBytes)), NewSecretBuffer(bytes.Clone(qBytes)), nil
}

// Destroy zeroes the retained private material and disables signing.
func (k *KeyPair) Destroy() {
	k.pkcs8.Destroy()
	k.private.Destroy()
	if priv, ok := k.signer.(ed25519.PrivateKey); ok {
		clear(priv)
	}
	k.signer = nil
}
