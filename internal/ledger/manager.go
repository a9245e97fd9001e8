package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/veilworld/config"
	"github.com/user/veilworld/internal/cipher"
	"github.com/user/veilworld/internal/interfaces"
	"github.com/user/veilworld/internal/types"
	"go.uber.org/zap"
)

// Manager owns the confidential ledger. Every public operation executes
// atomically under a single writer lock; the asynchronous aspect is between
// operations (submit returns immediately, the oracle calls Resolve later).
type Manager struct {
	state     *types.LedgerState
	stateLock sync.RWMutex
	storage   *SnapshotStorage
	journal   *Journal
	config    config.Config
	Logger    *zap.Logger
	cipher    cipher.Cipher
	decryptor interfaces.Decryptor
	verifier  interfaces.ProofVerifier
	eventSink interfaces.EventSink
	resolver  ActionResolver
}

// Ensure Manager satisfies the ledger interfaces.
var (
	_ interfaces.Ledger   = (*Manager)(nil)
	_ interfaces.Resolver = (*Manager)(nil)
)

// NewManager creates a ledger manager. State is loaded from the configured
// snapshot path if one exists; otherwise a fresh ledger is started.
func NewManager(cfg config.Config, cc cipher.Cipher, decryptor interfaces.Decryptor, verifier interfaces.ProofVerifier) *Manager {
	storage := NewSnapshotStorage(cfg.Database.SnapshotPath)

	state, err := storage.LoadLedgerState()
	if err != nil {
		state = newLedgerState()
	}

	return &Manager{
		state:     state,
		storage:   storage,
		config:    cfg,
		Logger:    zap.NewNop(), // Will be set by the server
		cipher:    cc,
		decryptor: decryptor,
		verifier:  verifier,
		resolver:  DefaultResolver{},
	}
}

func newLedgerState() *types.LedgerState {
	return &types.LedgerState{
		Players:        make(map[uint64]*types.PlayerRecord),
		OwnerTokens:    make(map[uint64]string),
		PendingActions: make(map[uint64]*types.PendingAction),
		Outcomes:       make(map[uint64]*types.Outcome),
		Zones:          make(map[string]*types.ZoneCounter),
		ZoneHashByName: make(map[string]string),
		Bindings:       make(map[string]*types.RequestBinding),
	}
}

// SetLogger sets the manager's logger.
func (m *Manager) SetLogger(logger *zap.Logger) {
	m.Logger = logger
}

// SetEventSink sets the observability event sink.
func (m *Manager) SetEventSink(sink interfaces.EventSink) {
	m.eventSink = sink
}

// SetJournal attaches the append-only ledger journal.
func (m *Manager) SetJournal(journal *Journal) {
	m.journal = journal
}

// SetActionResolver replaces the built-in action resolution logic.
func (m *Manager) SetActionResolver(resolver ActionResolver) {
	m.resolver = resolver
}

// saveState persists the current ledger state.
func (m *Manager) saveState() error {
	return m.storage.SaveLedgerState(m.state)
}

// appendJournal records an append-only journal entry. Journal failures are
// logged, not propagated; the snapshot remains the source of truth.
func (m *Manager) appendJournal(kind, entity, detail string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Append(kind, entity, detail); err != nil {
		m.Logger.Error("Failed to append journal entry",
			zap.String("kind", kind),
			zap.Error(err))
	}
}

// zoneHash derives the stable hash key for a zone name.
func zoneHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

// incrementZoneLocked lazily initializes a zone's encrypted counter and
// homomorphically adds one to it. The name<->hash mapping is maintained in
// the same step. Callers must hold the write lock.
func (m *Manager) incrementZoneLocked(name string) error {
	hash, exists := m.state.ZoneHashByName[name]
	var zone *types.ZoneCounter
	if !exists {
		hash = zoneHash(name)
		zone = &types.ZoneCounter{
			Name:  name,
			Hash:  hash,
			Count: m.cipher.EncryptZero(),
		}
		m.state.Zones[hash] = zone
		m.state.ZoneHashByName[name] = hash
		m.appendJournal("zone-initialized", name, hash)
	} else {
		zone = m.state.Zones[hash]
	}

	next, err := m.cipher.Add(zone.Count, m.cipher.EncryptOne())
	if err != nil {
		return fmt.Errorf("failed to increment zone counter: %w", err)
	}
	zone.Count = next

	return nil
}

// Register adds a new player with encrypted starting state and returns the
// assigned id together with the owner token for owner-scoped operations.
// No plaintext is read or produced.
func (m *Manager) Register(posX, posY, health, resources cipher.Ciphertext, zoneName string) (uint64, string, error) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	for _, c := range []cipher.Ciphertext{posX, posY, health, resources} {
		if !m.cipher.IsInitialized(c) {
			return 0, "", fmt.Errorf("register: %w", cipher.ErrUninitialized)
		}
	}

	if zoneName == "" {
		zoneName = m.config.Game.DefaultZone
	}
	if zoneName == "" {
		return 0, "", fmt.Errorf("register: zone name required")
	}

	now := time.Now()
	playerID := m.state.PlayerCount + 1
	ownerToken := uuid.New().String()

	m.state.PlayerCount = playerID
	m.state.Players[playerID] = &types.PlayerRecord{
		ID:                 playerID,
		EncryptedPositionX: posX,
		EncryptedPositionY: posY,
		EncryptedHealth:    health,
		EncryptedResources: resources,
		HomeZone:           zoneName,
		LastActionTime:     now,
	}
	m.state.OwnerTokens[playerID] = ownerToken
	m.state.Outcomes[playerID] = &types.Outcome{}

	if err := m.incrementZoneLocked(zoneName); err != nil {
		return 0, "", err
	}

	m.appendJournal("player-registered", strconv.FormatUint(playerID, 10), zoneName)

	if err := m.saveState(); err != nil {
		return 0, "", fmt.Errorf("failed to save ledger state: %w", err)
	}

	if m.eventSink != nil {
		m.eventSink.PlayerRegistered(playerID, now)
	}
	m.Logger.Info("Player registered",
		zap.Uint64("player_id", playerID),
		zap.Time("at", now))

	return playerID, ownerToken, nil
}

// Get retrieves a player's encrypted record.
func (m *Manager) Get(playerID uint64) (*types.PlayerRecord, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	if playerID == 0 || playerID > m.state.PlayerCount {
		return nil, ErrNotFound
	}

	// Sequential allocation means the record must exist; check anyway.
	player, exists := m.state.Players[playerID]
	if !exists {
		return nil, ErrNotFound
	}

	return player, nil
}

// SubmitAction records a player's encrypted action, overwriting any pending
// one, and issues a decryption request for the seven-ciphertext bundle (the
// four state fields followed by the three action fields). The player's home
// zone travels as a plaintext passthrough at the bundle tail.
func (m *Manager) SubmitAction(ctx context.Context, playerID uint64, ownerToken string, actionType, direction, targetID cipher.Ciphertext) (string, error) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	player, exists := m.state.Players[playerID]
	if !exists {
		return "", ErrUnknownPlayer
	}

	if m.state.OwnerTokens[playerID] != ownerToken {
		return "", ErrUnauthorizedCaller
	}

	for _, c := range []cipher.Ciphertext{actionType, direction, targetID} {
		if !m.cipher.IsInitialized(c) {
			return "", fmt.Errorf("submit action: %w", cipher.ErrUninitialized)
		}
	}

	// The sequence number fences this request: a callback carrying an older
	// sequence is rejected as stale once a newer submission lands.
	seq := player.ActionSeq + 1

	bundle := [][]byte{
		m.cipher.OracleWireFormat(player.EncryptedPositionX),
		m.cipher.OracleWireFormat(player.EncryptedPositionY),
		m.cipher.OracleWireFormat(player.EncryptedHealth),
		m.cipher.OracleWireFormat(player.EncryptedResources),
		m.cipher.OracleWireFormat(actionType),
		m.cipher.OracleWireFormat(direction),
		m.cipher.OracleWireFormat(targetID),
	}

	requestID, err := m.decryptor.RequestDecryption(ctx, bundle, []string{player.HomeZone}, types.RequestKindAction)
	if err != nil {
		return "", fmt.Errorf("failed to request decryption: %w", err)
	}
	if _, taken := m.state.Bindings[requestID]; taken {
		return "", fmt.Errorf("ledger: oracle reused request id %q", requestID)
	}

	now := time.Now()
	player.ActionSeq = seq
	m.state.PendingActions[playerID] = &types.PendingAction{
		EncryptedActionType: actionType,
		EncryptedDirection:  direction,
		EncryptedTargetID:   targetID,
		Seq:                 seq,
		SubmittedAt:         now,
	}
	m.state.Bindings[requestID] = &types.RequestBinding{
		RequestID:     requestID,
		Kind:          types.RequestKindAction,
		BoundPlayerID: playerID,
		Seq:           seq,
		CreatedAt:     now,
	}

	m.appendJournal("action-submitted", strconv.FormatUint(playerID, 10), "")
	m.appendJournal("request-issued", requestID, string(types.RequestKindAction))

	if err := m.saveState(); err != nil {
		return "", fmt.Errorf("failed to save ledger state: %w", err)
	}

	if m.eventSink != nil {
		m.eventSink.ActionSubmitted(playerID)
	}
	m.Logger.Info("Action submitted",
		zap.Uint64("player_id", playerID),
		zap.String("request_id", requestID),
		zap.Uint64("seq", seq))

	return requestID, nil
}

// RequestZoneCount issues a decryption request for a zone's aggregate
// counter. The resolved value is informational: it is stored as the zone's
// last reading and never fed back into the counter.
func (m *Manager) RequestZoneCount(ctx context.Context, zoneName string) (string, error) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	hash, exists := m.state.ZoneHashByName[zoneName]
	if !exists {
		return "", ErrNotFound
	}
	zone := m.state.Zones[hash]

	bundle := [][]byte{m.cipher.OracleWireFormat(zone.Count)}

	requestID, err := m.decryptor.RequestDecryption(ctx, bundle, nil, types.RequestKindZoneCount)
	if err != nil {
		return "", fmt.Errorf("failed to request decryption: %w", err)
	}
	if _, taken := m.state.Bindings[requestID]; taken {
		return "", fmt.Errorf("ledger: oracle reused request id %q", requestID)
	}

	m.state.Bindings[requestID] = &types.RequestBinding{
		RequestID:     requestID,
		Kind:          types.RequestKindZoneCount,
		BoundZoneHash: hash,
		CreatedAt:     time.Now(),
	}

	m.appendJournal("request-issued", requestID, string(types.RequestKindZoneCount))

	if err := m.saveState(); err != nil {
		return "", fmt.Errorf("failed to save ledger state: %w", err)
	}

	m.Logger.Info("Zone count requested",
		zap.String("zone", zoneName),
		zap.String("request_id", requestID))

	return requestID, nil
}

// decodeActionCleartexts checks the action-resolution payload shape: seven
// decimal values followed by the zone name at the fixed tail index.
func decodeActionCleartexts(cleartexts []string) (ResolvedAction, error) {
	if len(cleartexts) != 8 {
		return ResolvedAction{}, fmt.Errorf("%w: want 8 fields, got %d", ErrMalformedCleartext, len(cleartexts))
	}

	values := make([]uint64, 7)
	for i := 0; i < 7; i++ {
		v, err := strconv.ParseUint(cleartexts[i], 10, 64)
		if err != nil {
			return ResolvedAction{}, fmt.Errorf("%w: field %d", ErrMalformedCleartext, i)
		}
		values[i] = v
	}

	zone := cleartexts[7]
	if zone == "" {
		return ResolvedAction{}, fmt.Errorf("%w: empty zone name", ErrMalformedCleartext)
	}

	return ResolvedAction{
		PosX:          values[0],
		PosY:          values[1],
		Health:        values[2],
		Resources:     values[3],
		ActionCode:    values[4],
		DirectionCode: values[5],
		TargetID:      values[6],
		Zone:          zone,
	}, nil
}

// decodeZoneCountCleartexts checks the zone-count payload shape: a single
// decimal value.
func decodeZoneCountCleartexts(cleartexts []string) (uint64, error) {
	if len(cleartexts) != 1 {
		return 0, fmt.Errorf("%w: want 1 field, got %d", ErrMalformedCleartext, len(cleartexts))
	}
	v, err := strconv.ParseUint(cleartexts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not an integer", ErrMalformedCleartext)
	}
	return v, nil
}

// Resolve accepts an oracle callback. The proof is verified first and fails
// closed; all shape and staleness checks run before any mutation, so a
// rejected callback leaves the ledger untouched and, except for consumed or
// superseded bindings, retryable.
func (m *Manager) Resolve(requestID string, cleartexts []string, proof []byte) error {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	if err := m.verifier.CheckSignatures(requestID, cleartexts, proof); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}

	binding, exists := m.state.Bindings[requestID]
	if !exists {
		return ErrUnknownRequest
	}

	switch binding.Kind {
	case types.RequestKindAction:
		return m.resolveActionLocked(binding, cleartexts)
	case types.RequestKindZoneCount:
		return m.resolveZoneCountLocked(binding, cleartexts)
	default:
		return fmt.Errorf("%w: kind %q", ErrMalformedCleartext, binding.Kind)
	}
}

func (m *Manager) resolveActionLocked(binding *types.RequestBinding, cleartexts []string) error {
	in, err := decodeActionCleartexts(cleartexts)
	if err != nil {
		return err
	}

	player, exists := m.state.Players[binding.BoundPlayerID]
	if !exists {
		return ErrUnknownPlayer
	}
	outcome := m.state.Outcomes[binding.BoundPlayerID]

	if outcome.IsRevealed {
		return ErrAlreadyResolved
	}

	if binding.Seq != player.ActionSeq {
		// A newer submission superseded this request. The binding can never
		// become valid again, so it is discarded with the rejection.
		delete(m.state.Bindings, binding.RequestID)
		m.appendJournal("request-superseded", binding.RequestID, "")
		return fmt.Errorf("%w: superseded sequence %d", ErrUnknownRequest, binding.Seq)
	}

	result := m.resolver.Resolve(in)

	newResources := player.EncryptedResources
	for i := uint64(0); i < result.ResourceGain; i++ {
		newResources, err = m.cipher.Add(newResources, m.cipher.EncryptOne())
		if err != nil {
			return fmt.Errorf("failed to apply resource gain: %w", err)
		}
	}

	// All checks passed: consume the binding and apply the delta.
	delete(m.state.Bindings, binding.RequestID)
	delete(m.state.PendingActions, binding.BoundPlayerID)

	if err := m.incrementZoneLocked(in.Zone); err != nil {
		return err
	}

	now := time.Now()
	player.EncryptedResources = newResources
	player.LastActionTime = now

	outcome.ResultMessage = result.ResultMessage
	outcome.NewPosition = result.NewPosition
	outcome.ResourcesGained = result.ResourcesGained
	outcome.IsRevealed = true

	m.appendJournal("request-resolved", binding.RequestID, string(types.RequestKindAction))

	if err := m.saveState(); err != nil {
		return fmt.Errorf("failed to save ledger state: %w", err)
	}

	if m.eventSink != nil {
		m.eventSink.OutcomeRevealed(binding.BoundPlayerID, result.ResultMessage)
	}
	m.Logger.Info("Outcome revealed",
		zap.Uint64("player_id", binding.BoundPlayerID),
		zap.String("request_id", binding.RequestID))

	return nil
}

func (m *Manager) resolveZoneCountLocked(binding *types.RequestBinding, cleartexts []string) error {
	count, err := decodeZoneCountCleartexts(cleartexts)
	if err != nil {
		return err
	}

	zone, exists := m.state.Zones[binding.BoundZoneHash]
	if !exists {
		return ErrNotFound
	}

	// Consume the binding; the encrypted counter itself is never touched.
	delete(m.state.Bindings, binding.RequestID)

	zone.LastReading = count
	zone.HasReading = true

	m.appendJournal("request-resolved", binding.RequestID, string(types.RequestKindZoneCount))

	if err := m.saveState(); err != nil {
		return fmt.Errorf("failed to save ledger state: %w", err)
	}

	m.Logger.Info("Zone count revealed",
		zap.String("zone", zone.Name),
		zap.Uint64("count", count))

	return nil
}

// GetOutcome returns the player-visible outcome record. Before resolution
// it holds empty strings with IsRevealed false.
func (m *Manager) GetOutcome(playerID uint64) (types.Outcome, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	if playerID == 0 || playerID > m.state.PlayerCount {
		return types.Outcome{}, ErrNotFound
	}

	outcome, exists := m.state.Outcomes[playerID]
	if !exists {
		return types.Outcome{}, ErrNotFound
	}

	return *outcome, nil
}

// ZoneReading returns the zone's last decrypted counter reading and whether
// one has been taken yet.
func (m *Manager) ZoneReading(zoneName string) (uint64, bool, error) {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	hash, exists := m.state.ZoneHashByName[zoneName]
	if !exists {
		return 0, false, ErrNotFound
	}

	zone := m.state.Zones[hash]
	return zone.LastReading, zone.HasReading, nil
}

// ZoneNames returns the names of all initialized zones in sorted order.
func (m *Manager) ZoneNames() []string {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()

	names := make([]string, 0, len(m.state.ZoneHashByName))
	for name := range m.state.ZoneHashByName {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
