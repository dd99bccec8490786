package x509kit

import "runtime"

// SecretBuffer owns sensitive bytes and zeroes them on Destroy, or when the
// buffer becomes unreachable if Destroy was never called.
type SecretBuffer struct {
	b []byte
}

// NewSecretBuffer takes ownership of b. The caller must not retain b.
func NewSecretBuffer(b []byte) *SecretBuffer {
	s := &SecretBuffer{b: b}
	if len(b) > 0 {
		runtime.AddCleanup(s, func(b []byte) { clear(b) }, b)
	}
	return s
}

// Bytes returns the underlying bytes. They are zeroed by Destroy.
func (s *SecretBuffer) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

func (s *SecretBuffer) Len() int { return len(s.Bytes()) }

// Destroy zeroes the buffer. It is safe to call more than once and on nil.
func (s *SecretBuffer) Destroy() {
	if s == nil {
		return
	}
	clear(s.b)
	s.b = nil
}
