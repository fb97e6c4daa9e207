package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

func newTestStore(attempts int) *Store {
	return New(WithRetry(store.RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}))
}

func putUser(t *testing.T, s *Store, u *models.UserProfile) {
	t.Helper()
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.PutUser(ctx, u)
	}))
}

func TestRunInTx_ReadYourWrites(t *testing.T) {
	s := newTestStore(3)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.PutUser(ctx, &models.UserProfile{UID: "u1", Username: "alice"}))
		u, err := tx.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		return nil
	})
	require.NoError(t, err)
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s := newTestStore(3)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.PutUser(ctx, &models.UserProfile{UID: "u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetUser(ctx, "u1")
		return err
	})
	assert.True(t, store.IsNotFound(err))
}

func TestRunInTx_DetectsConcurrentUpdate(t *testing.T) {
	s := newTestStore(1)
	ctx := context.Background()
	putUser(t, s, &models.UserProfile{UID: "u1"})

	// Между чтением и фиксацией другая транзакция меняет тот же документ
	s.commitFn = func() {
		s.commitFn = nil
		putUser(t, s, &models.UserProfile{UID: "u1", SwapCount: 10})
	}

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		u.SwapCount++
		return tx.PutUser(ctx, u)
	})
	assert.True(t, store.IsConflict(err))
}

func TestRunInTx_ConcurrentIncrementsAreNotLost(t *testing.T) {
	s := newTestStore(100)
	ctx := context.Background()
	putUser(t, s, &models.UserProfile{UID: "u1"})

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				u, err := tx.GetUser(ctx, "u1")
				if err != nil {
					return err
				}
				u.SwapCount++
				return tx.PutUser(ctx, u)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_ = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, workers, u.SwapCount)
		return nil
	})
}

func TestRunInTx_PhantomInsertConflicts(t *testing.T) {
	s := newTestStore(1)
	ctx := context.Background()

	s.commitFn = func() {
		s.commitFn = nil
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertSwap(ctx, &models.SwapRequest{
				ID:             "other",
				Status:         models.StatusSwapRequest,
				OfferedBy:      models.ParticipantSnapshot{UID: "a"},
				OfferedListing: models.ListingSnapshot{ID: "l1"},
			})
		}))
	}

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		open, err := tx.HasOpenSwap(ctx, "l1", "l2", "a")
		if err != nil || open {
			return err
		}
		return tx.InsertSwap(ctx, &models.SwapRequest{ID: "mine", Status: models.StatusSwapRequest})
	})
	assert.True(t, store.IsConflict(err))
}

func TestMessages_OrderAndDelete(t *testing.T) {
	s := newTestStore(3)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for i, typ := range []models.MessageType{models.MessageChat, models.MessageSwapRequest, models.MessageChat} {
			msg := &models.Message{
				ID:            string(rune('c' - i)),
				SwapRequestID: "s1",
				Type:          typ,
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.InsertMessage(ctx, msg); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		msgs, err := tx.ListMessages(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})

		seed, err := tx.FindFirstMessageByType(ctx, "s1", models.MessageSwapRequest)
		require.NoError(t, err)
		assert.Equal(t, "b", seed.ID)

		n, err := tx.DeleteMessages(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		msgs, err := tx.ListMessages(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
		_, err = tx.FindFirstMessageByType(ctx, "s1", models.MessageSwapRequest)
		assert.True(t, store.IsNotFound(err))
		return nil
	}))
}

func TestCountActiveListings(t *testing.T) {
	s := newTestStore(3)
	ctx := context.Background()

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, l := range []*models.Listing{
			{ID: "l1", OwnerUID: "a", Status: models.ListingStatusActive},
			{ID: "l2", OwnerUID: "a", Status: "sold"},
			{ID: "l3", OwnerUID: "b", Status: models.ListingStatusActive},
		} {
			if err := tx.PutListing(ctx, l); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.CountActiveListings(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	}))
}
