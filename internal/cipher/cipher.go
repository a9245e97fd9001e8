package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Cipher errors.
var (
	ErrUninitialized = errors.New("cipher: uninitialized ciphertext")
	ErrBadWireFormat = errors.New("cipher: malformed wire format")
)

// Ciphertext is an opaque handle to an encrypted integer. Ledger code treats
// it as a black box; only the key holder (the decryption oracle) can recover
// the value. The zero value is uninitialized and unusable.
type Ciphertext struct {
	Masked uint64   `json:"masked"`
	Nonces []uint64 `json:"nonces"`
}

// Cipher is the homomorphic encryption capability consumed by the ledger.
// Implementations must support addition of ciphertexts without access to
// the plaintexts.
type Cipher interface {
	EncryptZero() Ciphertext
	EncryptOne() Ciphertext
	Add(a, b Ciphertext) (Ciphertext, error)
	IsInitialized(c Ciphertext) bool
	OracleWireFormat(c Ciphertext) []byte
}

// PadCipher is an additively homomorphic one-time-pad scheme: a value is
// masked with a pad derived from the key and a fresh nonce, and the nonce
// travels with the handle. Addition sums the masked values and concatenates
// the nonce lists, so nobody without the key learns either operand.
// Arithmetic wraps modulo 2^64. PadCipher is safe for concurrent use.
type PadCipher struct {
	key       []byte
	nonceLock sync.Mutex
	nextNonce uint64
}

// Ensure PadCipher satisfies the Cipher capability.
var _ Cipher = (*PadCipher)(nil)

// NewPadCipher creates a cipher from the given secret key.
func NewPadCipher(key []byte) *PadCipher {
	seed := make([]byte, 8)
	rand.Read(seed)

	return &PadCipher{
		key:       append([]byte(nil), key...),
		nextNonce: binary.BigEndian.Uint64(seed),
	}
}

// pad derives the keystream value for a nonce: first 8 bytes of
// SHA-256(key || nonce).
func (pc *PadCipher) pad(nonce uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)

	h := sha256.New()
	h.Write(pc.key)
	h.Write(buf[:])
	sum := h.Sum(nil)

	return binary.BigEndian.Uint64(sum[:8])
}

// Encrypt encrypts an integer under a fresh nonce.
func (pc *PadCipher) Encrypt(value uint64) Ciphertext {
	pc.nonceLock.Lock()
	nonce := pc.nextNonce
	pc.nextNonce++
	pc.nonceLock.Unlock()

	return Ciphertext{
		Masked: value + pc.pad(nonce),
		Nonces: []uint64{nonce},
	}
}

// EncryptZero returns a fresh encryption of zero.
func (pc *PadCipher) EncryptZero() Ciphertext {
	return pc.Encrypt(0)
}

// EncryptOne returns a fresh encryption of one.
func (pc *PadCipher) EncryptOne() Ciphertext {
	return pc.Encrypt(1)
}

// Add homomorphically adds two ciphertexts. Neither operand is decrypted.
func (pc *PadCipher) Add(a, b Ciphertext) (Ciphertext, error) {
	if !pc.IsInitialized(a) || !pc.IsInitialized(b) {
		return Ciphertext{}, ErrUninitialized
	}

	nonces := make([]uint64, 0, len(a.Nonces)+len(b.Nonces))
	nonces = append(nonces, a.Nonces...)
	nonces = append(nonces, b.Nonces...)

	return Ciphertext{
		Masked: a.Masked + b.Masked,
		Nonces: nonces,
	}, nil
}

// IsInitialized reports whether the handle carries a real encryption.
func (pc *PadCipher) IsInitialized(c Ciphertext) bool {
	return len(c.Nonces) > 0
}

// Decrypt recovers the plaintext by stripping every accumulated pad.
// Only the key holder can do this; the ledger never calls it.
func (pc *PadCipher) Decrypt(c Ciphertext) (uint64, error) {
	if !pc.IsInitialized(c) {
		return 0, ErrUninitialized
	}

	value := c.Masked
	for _, nonce := range c.Nonces {
		value -= pc.pad(nonce)
	}

	return value, nil
}

// OracleWireFormat serializes a ciphertext for transmission to the oracle:
// 8 bytes of masked value followed by 8 bytes per nonce, big endian.
func (pc *PadCipher) OracleWireFormat(c Ciphertext) []byte {
	buf := make([]byte, 8+8*len(c.Nonces))
	binary.BigEndian.PutUint64(buf[:8], c.Masked)
	for i, nonce := range c.Nonces {
		binary.BigEndian.PutUint64(buf[8+8*i:], nonce)
	}
	return buf
}

// FromOracleWireFormat parses a ciphertext from its wire form.
func FromOracleWireFormat(data []byte) (Ciphertext, error) {
	if len(data) < 16 || len(data)%8 != 0 {
		return Ciphertext{}, fmt.Errorf("%w: %d bytes", ErrBadWireFormat, len(data))
	}

	c := Ciphertext{
		Masked: binary.BigEndian.Uint64(data[:8]),
		Nonces: make([]uint64, 0, len(data)/8-1),
	}
	for off := 8; off < len(data); off += 8 {
		c.Nonces = append(c.Nonces, binary.BigEndian.Uint64(data[off:]))
	}

	return c, nil
}
