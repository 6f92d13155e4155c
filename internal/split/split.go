// Package split computes equal per-participant shares for a shared
// card. Amounts are integer centavos; the rounded share goes to every
// invitee and the creator absorbs the rounding remainder, so charged
// amounts always sum to the card value exactly.
package split

import "fmt"

// Share returns the round-half-up share of total over n, in centavos.
// This is the amount charged to every non-creator participant.
func Share(total int64, n int) int64 {
	return (2*total + int64(n)) / (2 * int64(n))
}

// CreatorShare returns the creator's remainder-absorbing amount.
func CreatorShare(total int64, n int) int64 {
	return total - Share(total, n)*int64(n-1)
}

// Shares returns the n charged amounts, creator first.
// The invariant sum(Shares) == total holds for every valid input.
func Shares(total int64, n int) ([]int64, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total must be positive (got %d)", total)
	}
	if n < 2 || n > 10 {
		return nil, fmt.Errorf("participants must be 2..10 (got %d)", n)
	}
	out := make([]int64, n)
	out[0] = CreatorShare(total, n)
	if out[0] <= 0 {
		return nil, fmt.Errorf("total %d too small to split across %d participants", total, n)
	}
	share := Share(total, n)
	for i := 1; i < n; i++ {
		out[i] = share
	}
	return out, nil
}
