package oracle

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/veilworld/internal/cipher"
	"github.com/user/veilworld/internal/interfaces"
	"github.com/user/veilworld/internal/types"
	"go.uber.org/zap"
)

// Oracle errors.
var (
	ErrUnknownRequest = errors.New("oracle: unknown request id")
	ErrEmptyBundle    = errors.New("oracle: empty ciphertext bundle")
)

// pendingRequest is a queued decryption job.
type pendingRequest struct {
	wireForms   [][]byte
	passthrough []string
	kind        types.RequestKind
	createdAt   time.Time
}

// Oracle is the decryption oracle: it holds the cipher key, decrypts queued
// ciphertext bundles off the ledger path, and calls back with cleartexts
// plus an ed25519 authenticity proof. It stands in for an external oracle
// network; the ledger only ever sees the Decryptor and ProofVerifier sides.
type Oracle struct {
	mu       sync.Mutex
	cipher   *cipher.PadCipher
	signKey  ed25519.PrivateKey
	pending  map[string]*pendingRequest
	logger   *zap.Logger
	ticker   *time.Ticker
	stopChan chan struct{}
}

var _ interfaces.Decryptor = (*Oracle)(nil)

// New creates an oracle around the cipher key holder with a fresh signing
// key.
func New(pc *cipher.PadCipher, logger *zap.Logger) (*Oracle, error) {
	_, signKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate oracle signing key: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Oracle{
		cipher:  pc,
		signKey: signKey,
		pending: make(map[string]*pendingRequest),
		logger:  logger,
	}, nil
}

// PublicKey returns the oracle's proof verification key.
func (o *Oracle) PublicKey() ed25519.PublicKey {
	return o.signKey.Public().(ed25519.PublicKey)
}

// RequestDecryption queues a ciphertext bundle and returns the assigned
// request id. Request ids are unique and never reused.
func (o *Oracle) RequestDecryption(_ context.Context, wireForms [][]byte, passthrough []string, kind types.RequestKind) (string, error) {
	if len(wireForms) == 0 {
		return "", ErrEmptyBundle
	}

	requestID := uuid.New().String()

	o.mu.Lock()
	o.pending[requestID] = &pendingRequest{
		wireForms:   wireForms,
		passthrough: passthrough,
		kind:        kind,
		createdAt:   time.Now(),
	}
	o.mu.Unlock()

	o.logger.Debug("Decryption request queued",
		zap.String("request_id", requestID),
		zap.String("kind", string(kind)),
		zap.Int("bundle_size", len(wireForms)))

	return requestID, nil
}

// PendingCount returns the number of undelivered requests.
func (o *Oracle) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// decrypt turns a queued bundle into its cleartext form: one decimal string
// per ciphertext, followed by the passthrough values.
func (o *Oracle) decrypt(req *pendingRequest) ([]string, error) {
	cleartexts := make([]string, 0, len(req.wireForms)+len(req.passthrough))
	for i, wire := range req.wireForms {
		c, err := cipher.FromOracleWireFormat(wire)
		if err != nil {
			return nil, fmt.Errorf("bundle field %d: %w", i, err)
		}
		v, err := o.cipher.Decrypt(c)
		if err != nil {
			return nil, fmt.Errorf("bundle field %d: %w", i, err)
		}
		cleartexts = append(cleartexts, strconv.FormatUint(v, 10))
	}
	cleartexts = append(cleartexts, req.passthrough...)

	return cleartexts, nil
}

// Deliver decrypts one queued request and invokes the target's resolve
// callback with a signed proof. The request is removed from the queue
// either way; the ledger's verdict is returned to the caller.
func (o *Oracle) Deliver(requestID string, target interfaces.Resolver) error {
	o.mu.Lock()
	req, exists := o.pending[requestID]
	if exists {
		delete(o.pending, requestID)
	}
	o.mu.Unlock()

	if !exists {
		return ErrUnknownRequest
	}

	cleartexts, err := o.decrypt(req)
	if err != nil {
		return fmt.Errorf("failed to decrypt bundle: %w", err)
	}

	proof := o.SignCleartexts(requestID, cleartexts)

	return target.Resolve(requestID, cleartexts, proof)
}

// DeliverAll delivers every queued request, oldest first. Resolve
// rejections are logged and do not stop the sweep.
func (o *Oracle) DeliverAll(target interfaces.Resolver) {
	o.mu.Lock()
	ids := make([]string, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		if err := o.Deliver(id, target); err != nil {
			o.logger.Warn("Callback rejected",
				zap.String("request_id", id),
				zap.Error(err))
		}
	}
}

// StartPump begins asynchronous delivery of queued requests to the target.
func (o *Oracle) StartPump(target interfaces.Resolver, interval time.Duration) {
	o.ticker = time.NewTicker(interval)
	o.stopChan = make(chan struct{})

	go func() {
		for {
			select {
			case <-o.ticker.C:
				o.DeliverAll(target)
			case <-o.stopChan:
				o.ticker.Stop()
				return
			}
		}
	}()
}

// StopPump halts asynchronous delivery.
func (o *Oracle) StopPump() {
	close(o.stopChan)
}

// SignCleartexts produces the authenticity proof for a callback.
// This is exported for use in tests.
func (o *Oracle) SignCleartexts(requestID string, cleartexts []string) []byte {
	return ed25519.Sign(o.signKey, signingDigest(requestID, cleartexts))
}

// signingDigest canonicalizes a callback for signing: SHA-256 over the
// request id and each cleartext, every field length-prefixed.
func signingDigest(requestID string, cleartexts []string) []byte {
	h := sha256.New()
	var lenBuf [8]byte

	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(requestID)))
	h.Write(lenBuf[:])
	h.Write([]byte(requestID))

	for _, c := range cleartexts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(c)))
		h.Write(lenBuf[:])
		h.Write([]byte(c))
	}

	return h.Sum(nil)
}

// Verifier checks oracle callback proofs against the oracle's public key.
type Verifier struct {
	publicKey ed25519.PublicKey
}

var _ interfaces.ProofVerifier = (*Verifier)(nil)

// NewVerifier creates a proof verifier for the given oracle public key.
func NewVerifier(publicKey ed25519.PublicKey) *Verifier {
	return &Verifier{publicKey: publicKey}
}

// CheckSignatures verifies the proof over the request id and cleartexts.
// It fails closed.
func (v *Verifier) CheckSignatures(requestID string, cleartexts []string, proof []byte) error {
	if len(v.publicKey) != ed25519.PublicKeySize {
		return errors.New("oracle: verifier public key not configured")
	}
	if len(proof) != ed25519.SignatureSize {
		return fmt.Errorf("oracle: proof has %d bytes, want %d", len(proof), ed25519.SignatureSize)
	}
	if !ed25519.Verify(v.publicKey, signingDigest(requestID, cleartexts), proof) {
		return errors.New("oracle: signature mismatch")
	}
	return nil
}
