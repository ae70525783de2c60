package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newBorrowing(status Status) *Borrowing {
	now := time.Now().UTC()
	return &Borrowing{
		ID:         uuid.New(),
		ItemID:     uuid.New(),
		LenderID:   uuid.New(),
		BorrowerID: uuid.New(),
		Start:      now,
		Due:        now.AddDate(0, 0, 7),
		Status:     status,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestNextStatusHappyPath(t *testing.T) {
	b := newBorrowing(StatusRequested)

	next, noop, err := NextStatus(b, EventConfirm, b.LenderID)
	require.NoError(t, err)
	assert.False(t, noop)
	assert.Equal(t, StatusConfirmed, next)

	b.Status = StatusConfirmed
	next, noop, err = NextStatus(b, EventRequestReturn, b.BorrowerID)
	require.NoError(t, err)
	assert.False(t, noop)
	assert.Equal(t, StatusReturnRequested, next)

	b.Status = StatusReturnRequested
	next, noop, err = NextStatus(b, EventConfirmReturn, b.LenderID)
	require.NoError(t, err)
	assert.False(t, noop)
	assert.Equal(t, StatusReturned, next)
}

func TestNextStatusIdempotentRetry(t *testing.T) {
	b := newBorrowing(StatusConfirmed)

	next, noop, err := NextStatus(b, EventConfirm, b.LenderID)
	require.NoError(t, err)
	assert.True(t, noop)
	assert.Equal(t, StatusConfirmed, next)
}

func TestNextStatusUnauthorizedBeatsState(t *testing.T) {
	// An imposter gets ErrUnauthorized no matter what state the
	// borrowing is in, including states where the event is illegal.
	for _, status := range []Status{StatusRequested, StatusConfirmed, StatusReturned, StatusRejected} {
		b := newBorrowing(status)
		_, _, err := NextStatus(b, EventConfirm, uuid.New())
		assert.ErrorIs(t, err, ErrUnauthorized, "status %s", status)
	}
}

func TestNextStatusWrongActorRole(t *testing.T) {
	b := newBorrowing(StatusConfirmed)

	// Only the borrower may request the return.
	_, _, err := NextStatus(b, EventRequestReturn, b.LenderID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Only the lender confirms it.
	b.Status = StatusReturnRequested
	_, _, err = NextStatus(b, EventConfirmReturn, b.BorrowerID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNextStatusIllegalTransitions(t *testing.T) {
	cases := []struct {
		status Status
		event  Event
		lender bool
	}{
		{StatusReturned, EventConfirm, true},
		{StatusRejected, EventConfirm, true},
		{StatusRequested, EventRequestReturn, false},
		{StatusRequested, EventConfirmReturn, true},
		{StatusConfirmed, EventReject, true},
		{StatusConfirmed, EventCancel, false},
		{StatusReturnRequested, EventRequestReturn, false},
	}
	for _, tc := range cases {
		b := newBorrowing(tc.status)
		caller := b.BorrowerID
		if tc.lender {
			caller = b.LenderID
		}
		_, _, err := NextStatus(b, tc.event, caller)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", tc.event, tc.status)
	}

	// Request-return of a cancelled borrowing is illegal too, even
	// though cancel and request-return share the borrower role.
	b := newBorrowing(StatusCancelled)
	_, _, err := NextStatus(b, EventRequestReturn, b.BorrowerID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// TestStateMachineClosure drives random event sequences through
// NextStatus and checks the machine never leaves the legal state set,
// never moves from a terminal state, and only advances along the
// transition table.
func TestStateMachineClosure(t *testing.T) {
	events := []Event{EventConfirm, EventReject, EventCancel, EventRequestReturn, EventConfirmReturn}

	rapid.Check(t, func(t *rapid.T) {
		b := newBorrowing(StatusRequested)
		stranger := uuid.New()
		steps := rapid.IntRange(1, 30).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			event := rapid.SampledFrom(events).Draw(t, "event")
			caller := rapid.SampledFrom([]uuid.UUID{b.LenderID, b.BorrowerID, stranger}).Draw(t, "caller")
			before := b.Status

			next, noop, err := NextStatus(b, event, caller)
			if err != nil {
				if err != ErrUnauthorized && err != ErrInvalidTransition {
					t.Fatalf("unexpected error kind: %v", err)
				}
				if b.Status != before {
					t.Fatalf("failed transition mutated state: %s -> %s", before, b.Status)
				}
				continue
			}
			if noop {
				if next != before {
					t.Fatalf("no-op changed state: %s -> %s", before, next)
				}
				continue
			}
			if before.Terminal() {
				t.Fatalf("transition out of terminal state %s via %s", before, event)
			}
			tr := transitions[event]
			if before != tr.from || next != tr.to {
				t.Fatalf("transition off the table: %s --%s--> %s", before, event, next)
			}
			b.Status = next
			if !b.Status.Valid() {
				t.Fatalf("machine left the legal state set: %s", b.Status)
			}
		}
	})
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusRequested.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.False(t, StatusReturnRequested.Terminal())
	assert.True(t, StatusReturned.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}
