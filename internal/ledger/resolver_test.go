package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultResolver(t *testing.T) {
	resolver := DefaultResolver{}

	in := ResolvedAction{
		PosX: 3, PosY: 4, Health: 100, Resources: 5,
		ActionCode: ActionMove, DirectionCode: DirectionWest, TargetID: 8,
		Zone: "forest",
	}

	// Test case 1: Deterministic for identical inputs
	first := resolver.Resolve(in)
	second := resolver.Resolve(in)
	assert.Equal(t, first, second)
	assert.Equal(t, "Moved west through forest", first.ResultMessage)
	assert.Equal(t, "(2, 4)", first.NewPosition)
	assert.Equal(t, uint64(3), first.ResourceGain)
	assert.Equal(t, "+3 supplies", first.ResourcesGained)

	// Test case 2: Movement never underflows the origin
	in.PosX, in.PosY = 0, 0
	in.DirectionCode = DirectionSouth
	result := resolver.Resolve(in)
	assert.Equal(t, "(0, 0)", result.NewPosition)

	// Test case 3: Total over unknown codes
	in.ActionCode = 999
	in.DirectionCode = 999
	result = resolver.Resolve(in)
	assert.Equal(t, "Held position in forest", result.ResultMessage)
	assert.Equal(t, "(0, 0)", result.NewPosition)
	assert.Equal(t, "none", result.ResourcesGained)
	assert.Equal(t, uint64(0), result.ResourceGain)
}
