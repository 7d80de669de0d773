// Package ordering keeps the children of one parent densely positioned:
// for n children the positions are exactly 0..n-1.
//
// Every function here assumes it runs inside a single store transaction and
// works through a Collection, which the store implements once per parent kind
// (lists of a board, cards of a list, checklist items of a card).
package ordering

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotChild     = errors.New("item is not a child of this parent")
	ErrInvalidOrder = errors.New("ordering does not match the current children")
	ErrStale        = errors.New("ordering changed since it was read")
)

// Collection is one parent's ordered children as seen from inside a
// transaction.
type Collection interface {
	// Version is the parent's order version; it grows on every reorder.
	Version(ctx context.Context) (int64, error)
	// Bump increments the order version. It is the first write of every
	// reordering so concurrent transactions on the same parent collide on
	// the parent row.
	Bump(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	// PositionOf returns ErrNotChild when id does not belong to the parent.
	PositionOf(ctx context.Context, id string) (int, error)
	// Shift adds delta to every child whose position is in [lo, hi].
	// A negative hi means no upper bound.
	Shift(ctx context.Context, lo, hi, delta int) error
	Place(ctx context.Context, id string, pos int) error
	Delete(ctx context.Context, id string) error
	// Order returns child ids sorted by position.
	Order(ctx context.Context) ([]string, error)
	// Assign sets position = index for every id.
	Assign(ctx context.Context, ids []string) error
}

// Parked is the position a child holds between Detach and re-attachment.
const Parked = -1

// Guard fails with ErrStale when the caller's snapshot of the order version
// is behind the stored one. A nil expectation always passes.
func Guard(ctx context.Context, c Collection, expected *int64) error {
	if expected == nil {
		return nil
	}
	current, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if current != *expected {
		return fmt.Errorf("%w: expected version %d, found %d", ErrStale, *expected, current)
	}
	return nil
}

// Insert opens a slot and lets create materialize the new child in it.
// Without a requested position the child is appended; otherwise the request
// is clamped to [0, count].
func Insert(ctx context.Context, c Collection, requested *int, create func(ctx context.Context, pos int) error) (int, error) {
	if err := c.Bump(ctx); err != nil {
		return 0, err
	}
	n, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	pos := n
	if requested != nil {
		pos = clamp(*requested, 0, n)
	}
	if pos < n {
		if err := c.Shift(ctx, pos, -1, 1); err != nil {
			return 0, err
		}
	}
	if err := create(ctx, pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// MoveWithin relocates id inside its current parent. Siblings are shifted
// before the item's own position is written.
func MoveWithin(ctx context.Context, c Collection, id string, newPos int) (int, error) {
	old, err := c.PositionOf(ctx, id)
	if err != nil {
		return 0, err
	}
	n, err := c.Count(ctx)
	if err != nil {
		return 0, err
	}
	target := clamp(newPos, 0, n-1)
	if target == old {
		return old, nil
	}
	if err := c.Bump(ctx); err != nil {
		return 0, err
	}
	if target > old {
		err = c.Shift(ctx, old+1, target, -1)
	} else {
		err = c.Shift(ctx, target, old-1, 1)
	}
	if err != nil {
		return 0, err
	}
	if err := c.Place(ctx, id, target); err != nil {
		return 0, err
	}
	return target, nil
}

// RemoveAndRenumber deletes id and closes the gap it leaves.
func RemoveAndRenumber(ctx context.Context, c Collection, id string) (int, error) {
	pos, err := c.PositionOf(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := c.Bump(ctx); err != nil {
		return 0, err
	}
	if err := c.Delete(ctx, id); err != nil {
		return 0, err
	}
	if err := c.Shift(ctx, pos+1, -1, -1); err != nil {
		return 0, err
	}
	return pos, nil
}

// Detach closes the gap left by id without deleting it. The item is parked
// at position Parked until the caller attaches it to another parent.
func Detach(ctx context.Context, c Collection, id string) (int, error) {
	pos, err := c.PositionOf(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := c.Bump(ctx); err != nil {
		return 0, err
	}
	if err := c.Place(ctx, id, Parked); err != nil {
		return 0, err
	}
	if err := c.Shift(ctx, pos+1, -1, -1); err != nil {
		return 0, err
	}
	return pos, nil
}

// ReorderBulk writes a complete caller-supplied ordering. ids must be a
// permutation of the parent's current children.
func ReorderBulk(ctx context.Context, c Collection, ids []string) error {
	current, err := c.Order(ctx)
	if err != nil {
		return err
	}
	if err := samePermutation(current, ids); err != nil {
		return err
	}
	if err := c.Bump(ctx); err != nil {
		return err
	}
	return c.Assign(ctx, ids)
}

// Splice applies a drag-and-drop gesture to an ordering: the id found at
// start is removed and re-inserted at end. The input is not modified.
func Splice(order []string, id string, start, end int) ([]string, error) {
	if start < 0 || start >= len(order) || order[start] != id {
		return nil, fmt.Errorf("%w: %s is not at index %d", ErrInvalidOrder, id, start)
	}
	end = clamp(end, 0, len(order)-1)

	out := make([]string, 0, len(order))
	out = append(out, order[:start]...)
	out = append(out, order[start+1:]...)
	out = append(out[:end], append([]string{id}, out[end:]...)...)
	return out, nil
}

// Dense reports whether positions cover exactly 0..len-1.
func Dense(positions []int) bool {
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(positions) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}

func samePermutation(current, proposed []string) error {
	if len(current) != len(proposed) {
		return fmt.Errorf("%w: got %d ids for %d children", ErrInvalidOrder, len(proposed), len(current))
	}
	children := make(map[string]bool, len(current))
	for _, id := range current {
		children[id] = false
	}
	for _, id := range proposed {
		used, ok := children[id]
		if !ok {
			return fmt.Errorf("%w: %s: %w", ErrInvalidOrder, id, ErrNotChild)
		}
		if used {
			return fmt.Errorf("%w: %s listed twice", ErrInvalidOrder, id)
		}
		children[id] = true
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
