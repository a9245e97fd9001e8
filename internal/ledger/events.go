package ledger

import (
	"time"

	"github.com/user/veilworld/internal/interfaces"
	"go.uber.org/zap"
)

// ZapEventSink emits ledger events as structured log lines. Events carry
// identifiers and result messages only, never encrypted or plaintext state.
type ZapEventSink struct {
	logger *zap.Logger
}

var _ interfaces.EventSink = (*ZapEventSink)(nil)

// NewZapEventSink creates an event sink writing to the given logger.
func NewZapEventSink(logger *zap.Logger) *ZapEventSink {
	return &ZapEventSink{logger: logger}
}

// PlayerRegistered emits the player-registered event.
func (s *ZapEventSink) PlayerRegistered(playerID uint64, at time.Time) {
	s.logger.Info("event: player-registered",
		zap.Uint64("player_id", playerID),
		zap.Time("timestamp", at))
}

// ActionSubmitted emits the action-submitted event.
func (s *ZapEventSink) ActionSubmitted(playerID uint64) {
	s.logger.Info("event: action-submitted",
		zap.Uint64("player_id", playerID))
}

// OutcomeRevealed emits the outcome-revealed event.
func (s *ZapEventSink) OutcomeRevealed(playerID uint64, resultMessage string) {
	s.logger.Info("event: outcome-revealed",
		zap.Uint64("player_id", playerID),
		zap.String("result_message", resultMessage))
}
