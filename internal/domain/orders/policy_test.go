package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gamestore/internal/core/entity"
)

func TestHighestStock_Select(t *testing.T) {
	cands := []entity.InventoryRecord{
		{ProductID: 1, BranchID: 1, Quantity: 4},
		{ProductID: 1, BranchID: 2, Quantity: 9},
		{ProductID: 1, BranchID: 3, Quantity: 9},
	}

	branch, ok := HighestStock{}.Select(1, 9, cands)
	require.True(t, ok)
	assert.Equal(t, int64(2), branch)

	_, ok = HighestStock{}.Select(1, 10, cands)
	assert.False(t, ok)

	_, ok = HighestStock{}.Select(1, 1, nil)
	assert.False(t, ok)
}

func TestParseBranchPolicy(t *testing.T) {
	p, err := ParseBranchPolicy("")
	require.NoError(t, err)
	assert.IsType(t, HighestStock{}, p)

	p, err = ParseBranchPolicy("fixed:3")
	require.NoError(t, err)
	assert.Equal(t, FixedBranch{BranchID: 3}, p)

	_, err = ParseBranchPolicy("fixed:x")
	assert.Error(t, err)
	_, err = ParseBranchPolicy("nearest")
	assert.Error(t, err)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
	assert.True(t, StatusShipped.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusPending))
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusShipped.HoldsStock())
}
