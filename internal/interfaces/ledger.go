package interfaces

import (
	"context"
	"time"

	"github.com/user/veilworld/internal/cipher"
	"github.com/user/veilworld/internal/types"
)

// Decryptor is the external decryption oracle's request surface. The bundle
// is a fixed-order list of ciphertext wire forms; passthrough values are
// echoed verbatim after the decrypted values in the callback cleartexts.
type Decryptor interface {
	RequestDecryption(ctx context.Context, wireForms [][]byte, passthrough []string, kind types.RequestKind) (string, error)
}

// ProofVerifier checks the authenticity proof attached to an oracle
// callback. It fails closed: any error means the callback is rejected.
type ProofVerifier interface {
	CheckSignatures(requestID string, cleartexts []string, proof []byte) error
}

// Resolver is the ledger side of the oracle callback path.
type Resolver interface {
	Resolve(requestID string, cleartexts []string, proof []byte) error
}

// EventSink receives ledger observability events. No event carries
// ciphertext or plaintext player state.
type EventSink interface {
	PlayerRegistered(playerID uint64, at time.Time)
	ActionSubmitted(playerID uint64)
	OutcomeRevealed(playerID uint64, resultMessage string)
}

// Ledger defines the confidential ledger operations.
type Ledger interface {
	Register(posX, posY, health, resources cipher.Ciphertext, zoneName string) (uint64, string, error)
	Get(playerID uint64) (*types.PlayerRecord, error)
	SubmitAction(ctx context.Context, playerID uint64, ownerToken string, actionType, direction, targetID cipher.Ciphertext) (string, error)
	RequestZoneCount(ctx context.Context, zoneName string) (string, error)
	Resolve(requestID string, cleartexts []string, proof []byte) error
	GetOutcome(playerID uint64) (types.Outcome, error)
	ZoneReading(zoneName string) (uint64, bool, error)
	ZoneNames() []string
}
