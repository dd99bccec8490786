package x509kit

import (
	_ "crypto/sha1" // registers crypto.SHA1
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const digestReadBufferSize = 16384

// Digest returns the digest of data, or nil when d is not a known digest
// algorithm.
func (d DigestAlgorithm) Digest(data []byte) []byte {
	return digest(d.Hash(), data)
}

// validate reports ErrUnknownDigestAlgorithm for a zero or unknown d.
func (d DigestAlgorithm) validate() error {
	if d.OID() == nil || !d.Hash().Available() {
		return fmt.Errorf("%w: %s", ErrUnknownDigestAlgorithm, d)
	}
	return nil
}

// DigestReader digests everything read from r.
func (d DigestAlgorithm) DigestReader(r io.Reader) ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	h := d.Hash().New()
	buf := make([]byte, digestReadBufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return nil, fmt.Errorf("reading digest input: %w", err)
	}
	return h.Sum(nil), nil
}

// DigestPath digests the contents of the file at path.
func (d DigestAlgorithm) DigestPath(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return d.DigestReader(f)
}

// EncodePKCS1 computes the EMSA-PKCS1-v1_5 encoding of message for a
// modulus of targetLen bytes:
//
//	00 01 FF..FF 00 || DigestInfo
//
// The DigestInfo algorithm identifier carries no parameters.
func (d DigestAlgorithm) EncodePKCS1(message []byte, targetLen int) ([]byte, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	info, err := d.digestInfo(d.Digest(message))
	if err != nil {
		return nil, err
	}
	if len(info)+11 > targetLen {
		return nil, fmt.Errorf("%w: digest info is %d bytes, target is %d", ErrPKCSEncodeTooShort, len(info), targetLen)
	}

	out := make([]byte, targetLen)
	out[0] = 0x00
	out[1] = 0x01
	padEnd := targetLen - len(info) - 1
	for i := 2; i < padEnd; i++ {
		out[i] = 0xff
	}
	out[padEnd] = 0x00
	copy(out[padEnd+1:], info)
	return out, nil
}

func (d DigestAlgorithm) digestInfo(sum []byte) ([]byte, error) {
	oid := d.OID()
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oid)
		})
		b.AddASN1OctetString(sum)
	})
	return b.Bytes()
}
