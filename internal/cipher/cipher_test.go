package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecrypt(t *testing.T) {
	pc := NewPadCipher([]byte("test-key"))

	// Test case 1: Round trip
	c := pc.Encrypt(42)
	assert.True(t, pc.IsInitialized(c))

	value, err := pc.Decrypt(c)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), value)

	// Test case 2: Fresh encryptions of the same value differ on the wire
	c2 := pc.Encrypt(42)
	assert.NotEqual(t, c.Masked, c2.Masked)

	// Test case 3: Decrypting an uninitialized handle fails
	_, err = pc.Decrypt(Ciphertext{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestHomomorphicAdd(t *testing.T) {
	pc := NewPadCipher([]byte("test-key"))

	// Test case 1: Sum of two encryptions decrypts to the sum
	sum, err := pc.Add(pc.Encrypt(2), pc.Encrypt(3))
	assert.NoError(t, err)

	value, err := pc.Decrypt(sum)
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), value)

	// Test case 2: Repeated increments accumulate
	count := pc.EncryptZero()
	for i := 0; i < 4; i++ {
		count, err = pc.Add(count, pc.EncryptOne())
		assert.NoError(t, err)
	}

	value, err = pc.Decrypt(count)
	assert.NoError(t, err)
	assert.Equal(t, uint64(4), value)

	// Test case 3: Adding an uninitialized handle fails
	_, err = pc.Add(pc.EncryptOne(), Ciphertext{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestOracleWireFormat(t *testing.T) {
	pc := NewPadCipher([]byte("test-key"))

	// Test case 1: Wire round trip preserves the ciphertext
	sum, err := pc.Add(pc.Encrypt(10), pc.Encrypt(7))
	assert.NoError(t, err)

	parsed, err := FromOracleWireFormat(pc.OracleWireFormat(sum))
	assert.NoError(t, err)
	assert.Equal(t, sum, parsed)

	value, err := pc.Decrypt(parsed)
	assert.NoError(t, err)
	assert.Equal(t, uint64(17), value)

	// Test case 2: Truncated wire data is rejected
	_, err = FromOracleWireFormat([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrBadWireFormat)

	// Test case 3: Non-multiple-of-8 length is rejected
	_, err = FromOracleWireFormat(make([]byte, 17))
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrBadWireFormat)
}

func TestDecryptRequiresMatchingKey(t *testing.T) {
	pc := NewPadCipher([]byte("test-key"))
	other := NewPadCipher([]byte("other-key"))

	c := pc.Encrypt(99)

	// A different key holder recovers garbage, not the plaintext
	value, err := other.Decrypt(c)
	assert.NoError(t, err)
	assert.NotEqual(t, uint64(99), value)
}
