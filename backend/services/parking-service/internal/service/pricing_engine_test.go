package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFeeRoundsUpToWholeHours(t *testing.T) {
	cases := []struct {
		name    string
		elapsed time.Duration
		rate    float64
		hours   int64
		fee     float64
	}{
		{name: "150 minutes at 25", elapsed: 150 * time.Minute, rate: 25, hours: 3, fee: 75},
		{name: "exactly one hour at 30", elapsed: 60 * time.Minute, rate: 30, hours: 1, fee: 30},
		{name: "seconds past the hour", elapsed: time.Hour + 5*time.Second, rate: 10, hours: 2, fee: 20},
		{name: "just parked", elapsed: time.Second, rate: 20, hours: 1, fee: 20},
		{name: "zero", elapsed: 0, rate: 20, hours: 0, fee: 0},
		{name: "clock skew", elapsed: -time.Minute, rate: 20, hours: 0, fee: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minutes, hours, fee := ComputeFee(baseTime, baseTime.Add(tc.elapsed), tc.rate)
			assert.Equal(t, tc.hours, hours)
			assert.InDelta(t, tc.fee, fee, 1e-9)
			if tc.elapsed > 0 {
				assert.InDelta(t, tc.elapsed.Minutes(), minutes, 1e-9)
			} else {
				assert.Zero(t, minutes)
			}
		})
	}
}

func TestQuoteUsesLatestRule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pricing.AddRule(ctx, 15, baseTime.Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = h.pricing.AddRule(ctx, 25, baseTime.Add(-time.Hour))
	require.NoError(t, err)

	session, err := h.sessions.Open(ctx, "A1", "ka01ab1234", "")
	require.NoError(t, err)

	h.clock.Advance(150 * time.Minute)
	quote, err := h.pricing.Quote(ctx, session.ID)
	require.NoError(t, err)

	assert.InDelta(t, 150.0, quote.DurationMinutes, 1e-9)
	assert.Equal(t, int64(3), quote.BilledHours)
	assert.InDelta(t, 25.0, quote.RatePerHour, 1e-9)
	assert.InDelta(t, 75.0, quote.Fee, 1e-9)
	assert.Equal(t, h.clock.Now(), quote.AsOf)
}

func TestQuoteExactHourDoesNotSpillOver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pricing.AddRule(ctx, 30, baseTime.Add(-time.Minute))
	require.NoError(t, err)
	session, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)

	h.clock.Advance(60 * time.Minute)
	quote, err := h.pricing.Quote(ctx, session.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, quote.Fee, 1e-9)
}

func TestQuoteFallsBackToDefaultRate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)

	h.clock.Advance(90 * time.Minute)
	quote, err := h.pricing.Quote(ctx, session.ID)
	require.NoError(t, err)
	assert.InDelta(t, DefaultRatePerHour, quote.RatePerHour, 1e-9)
	assert.InDelta(t, 40.0, quote.Fee, 1e-9)

	rate, err := h.pricing.CurrentRate(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, rate, 1e-9)
}

func TestQuoteIgnoresFutureRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pricing.AddRule(ctx, 50, baseTime.Add(time.Hour))
	require.NoError(t, err)

	rate, err := h.pricing.CurrentRate(ctx)
	require.NoError(t, err)
	assert.InDelta(t, DefaultRatePerHour, rate, 1e-9)

	h.clock.Advance(time.Hour)
	rate, err = h.pricing.CurrentRate(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, rate, 1e-9)
}

func TestQuoteUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.pricing.Quote(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestQuoteDoesNotMutateSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.sessions.Open(ctx, "A1", "KA01", "")
	require.NoError(t, err)
	h.clock.Advance(time.Hour)

	for i := 0; i < 3; i++ {
		_, err := h.pricing.Quote(ctx, session.ID)
		require.NoError(t, err)
	}
	stored, err := h.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.Open())
	assert.False(t, stored.TotalFee.Valid)
}

func TestAddRuleValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.pricing.AddRule(context.Background(), 0, time.Time{})
	require.ErrorIs(t, err, ErrInvalidInput)

	rule, err := h.pricing.AddRule(context.Background(), 12.5, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, baseTime, rule.EffectiveFrom)
	assert.NotZero(t, rule.ID)
}
