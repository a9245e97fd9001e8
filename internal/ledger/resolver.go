package ledger

import "fmt"

// Action codes carried inside the encrypted action-type field.
const (
	ActionHold   uint64 = 0
	ActionMove   uint64 = 1
	ActionGather uint64 = 2
	ActionScout  uint64 = 3
)

// Direction codes carried inside the encrypted direction field.
const (
	DirectionNone  uint64 = 0
	DirectionNorth uint64 = 1
	DirectionSouth uint64 = 2
	DirectionEast  uint64 = 3
	DirectionWest  uint64 = 4
)

// ResolvedAction is the decrypted input to action resolution: the player's
// four state fields, the three action fields, and the zone name appended at
// the fixed tail index of the cleartext bundle.
type ResolvedAction struct {
	PosX      uint64
	PosY      uint64
	Health    uint64
	Resources uint64

	ActionCode    uint64
	DirectionCode uint64
	TargetID      uint64

	Zone string
}

// ActionResult is the player-visible outcome delta produced by a resolver.
type ActionResult struct {
	ResultMessage   string
	NewPosition     string
	ResourcesGained string

	// ResourceGain is applied homomorphically to the player's encrypted
	// resource balance.
	ResourceGain uint64
}

// ActionResolver turns decrypted action data into an outcome. Resolvers
// must be deterministic given identical inputs and total over well-formed
// input; the surrounding protocol supplies the idempotence guarantees.
type ActionResolver interface {
	Resolve(in ResolvedAction) ActionResult
}

// DefaultResolver is the built-in placeholder game logic.
type DefaultResolver struct{}

var _ ActionResolver = DefaultResolver{}

func directionName(code uint64) string {
	switch code {
	case DirectionNorth:
		return "north"
	case DirectionSouth:
		return "south"
	case DirectionEast:
		return "east"
	case DirectionWest:
		return "west"
	default:
		return "nowhere"
	}
}

// Resolve computes the outcome delta for a decrypted action.
func (DefaultResolver) Resolve(in ResolvedAction) ActionResult {
	x, y := in.PosX, in.PosY
	switch in.DirectionCode {
	case DirectionNorth:
		y++
	case DirectionSouth:
		if y > 0 {
			y--
		}
	case DirectionEast:
		x++
	case DirectionWest:
		if x > 0 {
			x--
		}
	}

	// Gains are a pure function of the decrypted inputs.
	gain := 1 + in.TargetID%3

	var message string
	switch in.ActionCode {
	case ActionMove:
		message = fmt.Sprintf("Moved %s through %s", directionName(in.DirectionCode), in.Zone)
	case ActionGather:
		message = fmt.Sprintf("Gathered supplies in %s", in.Zone)
	case ActionScout:
		message = fmt.Sprintf("Scouted %s toward target %d", in.Zone, in.TargetID)
	default:
		message = fmt.Sprintf("Held position in %s", in.Zone)
		x, y = in.PosX, in.PosY
		gain = 0
	}

	result := ActionResult{
		ResultMessage: message,
		NewPosition:   fmt.Sprintf("(%d, %d)", x, y),
		ResourceGain:  gain,
	}
	if gain > 0 {
		result.ResourcesGained = fmt.Sprintf("+%d supplies", gain)
	} else {
		result.ResourcesGained = "none"
	}

	return result
}
