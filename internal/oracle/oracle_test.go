package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/veilworld/internal/cipher"
	"github.com/user/veilworld/internal/types"
)

// captureResolver records the callback it receives.
type captureResolver struct {
	requestID  string
	cleartexts []string
	proof      []byte
	err        error
}

func (c *captureResolver) Resolve(requestID string, cleartexts []string, proof []byte) error {
	c.requestID = requestID
	c.cleartexts = cleartexts
	c.proof = proof
	return c.err
}

func TestRequestAndDeliver(t *testing.T) {
	pc := cipher.NewPadCipher([]byte("test-key"))
	orc, err := New(pc, nil)
	require.NoError(t, err)

	bundle := [][]byte{
		pc.OracleWireFormat(pc.Encrypt(5)),
		pc.OracleWireFormat(pc.Encrypt(7)),
	}

	// Test case 1: Queue a request
	requestID, err := orc.RequestDecryption(context.Background(), bundle, []string{"forest"}, types.RequestKindAction)
	assert.NoError(t, err)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, 1, orc.PendingCount())

	// Test case 2: Deliver decrypts and appends the passthrough tail
	target := &captureResolver{}
	err = orc.Deliver(requestID, target)
	assert.NoError(t, err)
	assert.Equal(t, requestID, target.requestID)
	assert.Equal(t, []string{"5", "7", "forest"}, target.cleartexts)
	assert.Equal(t, 0, orc.PendingCount())

	// The proof must verify against the oracle's public key
	verifier := NewVerifier(orc.PublicKey())
	assert.NoError(t, verifier.CheckSignatures(requestID, target.cleartexts, target.proof))

	// Test case 3: A delivered request is gone
	err = orc.Deliver(requestID, target)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRequest)

	// Test case 4: Empty bundles are rejected
	_, err = orc.RequestDecryption(context.Background(), nil, nil, types.RequestKindAction)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyBundle)
}

func TestProofVerification(t *testing.T) {
	pc := cipher.NewPadCipher([]byte("test-key"))
	orc, err := New(pc, nil)
	require.NoError(t, err)

	cleartexts := []string{"1", "2", "forest"}
	proof := orc.SignCleartexts("req-1", cleartexts)
	verifier := NewVerifier(orc.PublicKey())

	// Test case 1: Valid proof passes
	assert.NoError(t, verifier.CheckSignatures("req-1", cleartexts, proof))

	// Test case 2: Tampered cleartexts fail
	err = verifier.CheckSignatures("req-1", []string{"1", "9", "forest"}, proof)
	assert.Error(t, err)

	// Test case 3: Proof bound to a different request id fails
	err = verifier.CheckSignatures("req-2", cleartexts, proof)
	assert.Error(t, err)

	// Test case 4: Truncated proof fails
	err = verifier.CheckSignatures("req-1", cleartexts, proof[:10])
	assert.Error(t, err)

	// Test case 5: A different oracle's key fails
	other, err := New(pc, nil)
	require.NoError(t, err)
	err = NewVerifier(other.PublicKey()).CheckSignatures("req-1", cleartexts, proof)
	assert.Error(t, err)
}

func TestDeliverAll(t *testing.T) {
	pc := cipher.NewPadCipher([]byte("test-key"))
	orc, err := New(pc, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		bundle := [][]byte{pc.OracleWireFormat(pc.Encrypt(uint64(i)))}
		_, err := orc.RequestDecryption(context.Background(), bundle, nil, types.RequestKindZoneCount)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, orc.PendingCount())

	orc.DeliverAll(&captureResolver{})
	assert.Equal(t, 0, orc.PendingCount())
}
