package swap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
)

func TestConfirmAddress_BothConfirmAdvancesOnce(t *testing.T) {
	f := newFixture(t)
	swapID, msgID := f.accepted()

	res, err := f.confirmAddress(swapID, msgID, "alice")
	require.NoError(t, err)
	assert.False(t, res.BothConfirmed)
	assert.Equal(t, models.StatusSwapAccepted, res.NewStatus)
	assert.Equal(t, map[string]bool{"alice": true}, res.Confirmations)
	assert.Zero(t, f.user("alice").SwapCount)
	assert.Contains(t, f.notes.eventsFor("bob"), notify.EventAddressConfirmed)

	res, err = f.confirmAddress(swapID, msgID, "bob")
	require.NoError(t, err)
	assert.True(t, res.BothConfirmed)
	assert.Equal(t, models.StatusPendingShipment, res.NewStatus)

	s := f.swap(swapID)
	assert.Equal(t, models.StatusPendingShipment, s.Status)
	assert.Equal(t, "Main st 1, alice", s.OfferedBy.FormattedAddress)
	assert.Equal(t, "Main st 1, bob", s.RequestedFrom.FormattedAddress)

	msg := f.message(swapID, msgID)
	assert.Equal(t, models.MessagePendingShipment, msg.Type)
	assert.Equal(t, map[string]bool{"alice": true, "bob": true}, msg.AddressConfirmation)

	alice, bob := f.user("alice"), f.user("bob")
	assert.Equal(t, 1, alice.SwapCount)
	assert.Equal(t, 1, bob.SwapCount)
	assert.Equal(t, "Main st 1, alice", alice.FormattedAddress)
	assert.Equal(t, "Main st 1, bob", bob.FormattedAddress)
}

func TestConfirmAddress_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	swapID, msgID := f.accepted()

	first, err := f.confirmAddress(swapID, msgID, "alice")
	require.NoError(t, err)
	before := f.swap(swapID)

	f.clock.Advance(time.Minute)
	second, err := f.confirmAddress(swapID, msgID, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	after := f.swap(swapID)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Equal(t, before.AddressConfirmation, after.AddressConfirmation)

	// После перехода повтор тоже безопасен и не увеличивает счётчик
	_, err = f.confirmAddress(swapID, msgID, "bob")
	require.NoError(t, err)
	replay, err := f.confirmAddress(swapID, msgID, "bob")
	require.NoError(t, err)
	assert.True(t, replay.BothConfirmed)
	assert.Equal(t, models.StatusPendingShipment, replay.NewStatus)
	assert.Equal(t, 1, f.user("bob").SwapCount)
}

func TestConfirmAddress_ForbiddenActorLeavesDocumentUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	swapID, msgID := f.accepted()
	before := f.swap(swapID)

	_, err := f.confirmAddress(swapID, msgID, "carol")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.engine.ConfirmAddress(ctx, AddressInput{
		SwapRequestID: swapID, CallerUID: "carol", UserUID: "alice", Address: "x", MessageID: msgID,
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.engine.ConfirmAddress(ctx, AddressInput{
		SwapRequestID: swapID, CallerUID: "alice", UserRole: models.RoleRequestedFrom, Address: "x", MessageID: msgID,
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	assert.Equal(t, before, f.swap(swapID))
	assert.Empty(t, f.user("carol").FormattedAddress)
}

func TestConfirmAddress_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create()

	// Обмен ещё не принят
	_, err := f.confirmAddress(created.SwapRequestID, created.MessageID, "alice")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	_, err = f.confirmAddress("missing", created.MessageID, "alice")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	acc, err := f.engine.AcceptSwap(ctx, created.SwapRequestID, "bob")
	require.NoError(t, err)

	_, err = f.confirmAddress(created.SwapRequestID, "missing-message", "alice")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.engine.ConfirmAddress(ctx, AddressInput{
		SwapRequestID: created.SwapRequestID, CallerUID: "alice", Address: "  ", MessageID: acc.MessageID,
	})
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(err))

	assert.Empty(t, f.swap(created.SwapRequestID).AddressConfirmation)
}

func TestConfirmAddress_ConcurrentConfirmationsCountOnce(t *testing.T) {
	for round := 0; round < 10; round++ {
		f := newFixture(t)
		swapID, msgID := f.accepted()

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		for i := 0; i < 3; i++ {
			for _, uid := range []string{"alice", "bob"} {
				wg.Add(1)
				go func(uid string) {
					defer wg.Done()
					_, err := f.confirmAddress(swapID, msgID, uid)
					errs <- err
				}(uid)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		assert.Equal(t, models.StatusPendingShipment, f.swap(swapID).Status)
		assert.Equal(t, 1, f.user("alice").SwapCount, "round %d", round)
		assert.Equal(t, 1, f.user("bob").SwapCount, "round %d", round)
	}
}

func TestConfirmShipment_GatedOnPendingShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create()

	_, err := f.confirmShipment(created.SwapRequestID, created.MessageID, "alice", "TRK1")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	acc, err := f.engine.AcceptSwap(ctx, created.SwapRequestID, "bob")
	require.NoError(t, err)
	_, err = f.confirmShipment(created.SwapRequestID, acc.MessageID, "alice", "TRK1")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	s := f.swap(created.SwapRequestID)
	assert.Empty(t, s.ShipmentStatus)
	assert.Empty(t, s.TrackingNumbers)
	assert.Equal(t, models.StatusSwapAccepted, s.Status)
}

func TestConfirmShipment_ForbiddenAndIdempotent(t *testing.T) {
	f := newFixture(t)
	swapID, msgID := f.pending()

	_, err := f.confirmShipment(swapID, msgID, "carol", "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	first, err := f.confirmShipment(swapID, msgID, "alice", "TRK-A")
	require.NoError(t, err)
	assert.False(t, first.BothShipped)

	second, err := f.confirmShipment(swapID, msgID, "alice", "OTHER")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "TRK-A", f.swap(swapID).TrackingNumbers["alice"])
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.create()
	assert.Equal(t, models.StatusSwapRequest, f.swap(created.SwapRequestID).Status)

	acc, err := f.engine.AcceptSwap(ctx, created.SwapRequestID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSwapAccepted, f.swap(created.SwapRequestID).Status)

	_, err = f.confirmAddress(created.SwapRequestID, acc.MessageID, "alice")
	require.NoError(t, err)
	addr, err := f.confirmAddress(created.SwapRequestID, acc.MessageID, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingShipment, addr.NewStatus)
	assert.Equal(t, 1, f.user("alice").SwapCount)
	assert.Equal(t, 1, f.user("bob").SwapCount)

	_, err = f.confirmShipment(created.SwapRequestID, acc.MessageID, "alice", "TRK-A")
	require.NoError(t, err)
	ship, err := f.confirmShipment(created.SwapRequestID, acc.MessageID, "bob", "TRK-B")
	require.NoError(t, err)
	assert.True(t, ship.BothShipped)
	assert.Equal(t, models.StatusSwapCompleted, ship.NewStatus)
	assert.Equal(t, map[string]string{"alice": "TRK-A", "bob": "TRK-B"}, ship.TrackingNumbers)

	s := f.swap(created.SwapRequestID)
	assert.Equal(t, models.StatusSwapCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.CompletedAt.Equal(f.clock.Now()))

	msg := f.message(created.SwapRequestID, acc.MessageID)
	assert.Equal(t, models.MessageSwapCompleted, msg.Type)
	assert.Equal(t, map[string]string{"alice": "TRK-A", "bob": "TRK-B"}, msg.TrackingNumbers)

	assert.Equal(t, 2, f.user("alice").SwapCount)
	assert.Equal(t, 2, f.user("bob").SwapCount)
	assert.Contains(t, f.notes.eventsFor("alice"), notify.EventSwapCompleted)
	assert.Contains(t, f.notes.eventsFor("bob"), notify.EventSwapCompleted)
}

func TestConfirmShipment_ConcurrentCompletionCountsOnce(t *testing.T) {
	for round := 0; round < 10; round++ {
		f := newFixture(t)
		swapID, msgID := f.pending()

		var wg sync.WaitGroup
		for _, uid := range []string{"alice", "bob", "alice", "bob"} {
			wg.Add(1)
			go func(uid string) {
				defer wg.Done()
				_, err := f.confirmShipment(swapID, msgID, uid, "")
				assert.NoError(t, err)
			}(uid)
		}
		wg.Wait()

		assert.Equal(t, models.StatusSwapCompleted, f.swap(swapID).Status)
		assert.Equal(t, 2, f.user("alice").SwapCount, "round %d", round)
		assert.Equal(t, 2, f.user("bob").SwapCount, "round %d", round)
	}
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	swapID, msgID := f.pending()

	_, err := f.engine.AcceptSwap(ctx, swapID, "bob")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))

	res, err := f.confirmAddress(swapID, msgID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingShipment, res.NewStatus)
	assert.Equal(t, models.StatusPendingShipment, f.swap(swapID).Status)

	_, err = f.confirmShipment(swapID, msgID, "alice", "")
	require.NoError(t, err)
	_, err = f.confirmShipment(swapID, msgID, "bob", "")
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, swapID, "alice")
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, models.StatusSwapCompleted, f.swap(swapID).Status)
}
