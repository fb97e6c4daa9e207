package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

type fakeBalance struct {
	bal     *stripe.Balance
	err     error
	account string
	calls   int
}

func (f *fakeBalance) Get(params *stripe.BalanceParams) (*stripe.Balance, error) {
	f.calls++
	if params.StripeAccount != nil {
		f.account = *params.StripeAccount
	}
	return f.bal, f.err
}

func TestStripeChecker_SumsAvailableAndPending(t *testing.T) {
	fb := &fakeBalance{bal: &stripe.Balance{
		Available: []*stripe.Amount{{Amount: 100, Currency: stripe.CurrencyUSD}},
		Pending:   []*stripe.Amount{{Amount: 50, Currency: stripe.CurrencyUSD}, {Amount: 0, Currency: stripe.CurrencyEUR}},
	}}
	c := newStripeChecker(fb, zap.NewNop())

	total, err := c.OutstandingBalance(context.Background(), "acct_123")
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
	assert.Equal(t, "acct_123", fb.account)
}

func TestStripeChecker_NoAccountSkipsCall(t *testing.T) {
	fb := &fakeBalance{}
	c := newStripeChecker(fb, zap.NewNop())

	total, err := c.OutstandingBalance(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, fb.calls)
}

func TestStripeChecker_BreakerOpens(t *testing.T) {
	fb := &fakeBalance{err: errors.New("timeout")}
	c := newStripeChecker(fb, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := c.OutstandingBalance(context.Background(), "acct_1")
		assert.Error(t, err)
	}
	assert.Equal(t, 3, fb.calls)
}

func TestNoAccounts(t *testing.T) {
	total, err := NoAccounts{}.OutstandingBalance(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = NoAccounts{}.OutstandingBalance(context.Background(), "acct_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
