package orders

import (
	"fmt"
	"strconv"
	"strings"

	"gamestore/internal/core/entity"
)

// BranchSelector picks the branch that fulfills an order line.
// Candidates are the locked inventory rows of the product in key order.
type BranchSelector interface {
	Select(productID int64, quantity int, candidates []entity.InventoryRecord) (branchID int64, ok bool)
}

// HighestStock fulfills a line from the branch holding the most units,
// provided it covers the whole line. Ties go to the lowest branch id.
type HighestStock struct{}

func (HighestStock) Select(_ int64, quantity int, candidates []entity.InventoryRecord) (int64, bool) {
	var best *entity.InventoryRecord
	for i := range candidates {
		c := &candidates[i]
		if best == nil || c.Quantity > best.Quantity ||
			(c.Quantity == best.Quantity && c.BranchID < best.BranchID) {
			best = c
		}
	}
	if best == nil || best.Quantity < quantity {
		return 0, false
	}
	return best.BranchID, true
}

// FixedBranch fulfills every line from one branch.
type FixedBranch struct {
	BranchID int64
}

func (f FixedBranch) Select(_ int64, quantity int, candidates []entity.InventoryRecord) (int64, bool) {
	for _, c := range candidates {
		if c.BranchID == f.BranchID {
			return f.BranchID, c.Quantity >= quantity
		}
	}
	return 0, false
}

// ParseBranchPolicy reads "highest_stock" or "fixed:<branch id>".
func ParseBranchPolicy(s string) (BranchSelector, error) {
	switch {
	case s == "" || s == "highest_stock":
		return HighestStock{}, nil
	case strings.HasPrefix(s, "fixed:"):
		branchID, err := strconv.ParseInt(strings.TrimPrefix(s, "fixed:"), 10, 64)
		if err != nil || branchID <= 0 {
			return nil, fmt.Errorf("invalid fixed branch policy %q", s)
		}
		return FixedBranch{BranchID: branchID}, nil
	default:
		return nil, fmt.Errorf("unknown branch policy %q", s)
	}
}

// available returns the largest quantity any candidate holds.
func available(candidates []entity.InventoryRecord) int {
	most := 0
	for _, c := range candidates {
		most = max(most, c.Quantity)
	}
	return most
}
