package types

import (
	"time"

	"github.com/user/veilworld/internal/cipher"
)

// RequestKind identifies what a decryption request will resolve into.
type RequestKind string

// Request kinds.
const (
	RequestKindAction    RequestKind = "action-resolution"
	RequestKindZoneCount RequestKind = "zone-count-query"
)

// PlayerRecord holds a player's encrypted state. Sequential ids start at 1
// and are never reused. The record is created at registration and mutated
// only by the outcome resolver after a verified decryption.
type PlayerRecord struct {
	ID                 uint64            `json:"id"`
	EncryptedPositionX cipher.Ciphertext `json:"encrypted_position_x"`
	EncryptedPositionY cipher.Ciphertext `json:"encrypted_position_y"`
	EncryptedHealth    cipher.Ciphertext `json:"encrypted_health"`
	EncryptedResources cipher.Ciphertext `json:"encrypted_resources"`
	HomeZone           string            `json:"home_zone"`

	// ActionSeq is the fencing token: it increments on every submission and
	// is bound into the decryption request, so a callback for a superseded
	// action can be detected and rejected.
	ActionSeq      uint64    `json:"action_seq"`
	LastActionTime time.Time `json:"last_action_time"`
}

// PendingAction is a player's single outstanding encrypted action.
// A new submission overwrites it (last-write-wins).
type PendingAction struct {
	EncryptedActionType cipher.Ciphertext `json:"encrypted_action_type"`
	EncryptedDirection  cipher.Ciphertext `json:"encrypted_direction"`
	EncryptedTargetID   cipher.Ciphertext `json:"encrypted_target_id"`
	Seq                 uint64            `json:"seq"`
	SubmittedAt         time.Time         `json:"submitted_at"`
}

// Outcome is the player-visible result of a resolved action. IsRevealed is
// monotonic: once true it never resets.
type Outcome struct {
	ResultMessage   string `json:"result_message"`
	NewPosition     string `json:"new_position"`
	ResourcesGained string `json:"resources_gained"`
	IsRevealed      bool   `json:"is_revealed"`
}

// ZoneCounter is a zone's encrypted running event count, created lazily on
// first use. LastReading is the most recent decrypted value returned by a
// zone-count query; it never feeds back into Count.
type ZoneCounter struct {
	Name        string            `json:"name"`
	Hash        string            `json:"hash"`
	Count       cipher.Ciphertext `json:"count"`
	LastReading uint64            `json:"last_reading"`
	HasReading  bool              `json:"has_reading"`
}

// RequestBinding associates an outstanding decryption request with the
// entity it will mutate. It is consumed the first time a callback for it is
// accepted; consumption is the single idempotence source of truth.
type RequestBinding struct {
	RequestID     string      `json:"request_id"`
	Kind          RequestKind `json:"kind"`
	BoundPlayerID uint64      `json:"bound_player_id,omitempty"`
	BoundZoneHash string      `json:"bound_zone_hash,omitempty"`
	Seq           uint64      `json:"seq,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// LedgerState is the full confidential ledger.
type LedgerState struct {
	PlayerCount    uint64                     `json:"player_count"`
	Players        map[uint64]*PlayerRecord   `json:"players"`
	OwnerTokens    map[uint64]string          `json:"owner_tokens"`
	PendingActions map[uint64]*PendingAction  `json:"pending_actions"`
	Outcomes       map[uint64]*Outcome        `json:"outcomes"`
	Zones          map[string]*ZoneCounter    `json:"zones"`             // keyed by zone hash
	ZoneHashByName map[string]string          `json:"zone_hash_by_name"` // reverse of Zones' Name field
	Bindings       map[string]*RequestBinding `json:"bindings"`
}
