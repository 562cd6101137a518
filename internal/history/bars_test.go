package history_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/gateway-sim/internal/history"
	"github.com/atmx/gateway-sim/internal/model"
	"github.com/atmx/gateway-sim/internal/store"
)

const es = "CON.F.US.EP.H25"

func newGenerator(t *testing.T) *history.Generator {
	t.Helper()
	ms := store.NewMemoryStore()
	require.NoError(t, ms.AddContract(context.Background(), &model.Contract{
		ID: es, Name: "ES", TickSize: decimal.RequireFromString("0.25"), TickValue: decimal.RequireFromString("12.5"), ActiveContract: true,
	}))
	return history.NewGenerator(ms, 42)
}

func request() history.Request {
	start := time.Date(2025, 1, 6, 14, 30, 0, 0, time.UTC)
	return history.Request{
		ContractID: es,
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Unit:       model.BarUnitMinute,
		UnitNumber: 5,
		Limit:      100,
	}
}

func TestBars_StepsByUnitUntilEnd(t *testing.T) {
	g := newGenerator(t)
	req := request()

	bars, err := g.Bars(context.Background(), req)
	require.NoError(t, err)
	// 14:30 through 15:30 inclusive at 5 minute steps.
	require.Len(t, bars, 13)
	assert.Equal(t, req.StartTime, bars[0].T)
	assert.Equal(t, req.EndTime, bars[12].T)

	for i, b := range bars {
		assert.True(t, b.H.GreaterThanOrEqual(decimal.Max(b.O, b.C)), "bar %d high", i)
		assert.True(t, b.L.LessThanOrEqual(decimal.Min(b.O, b.C)), "bar %d low", i)
		assert.True(t, b.C.Sub(b.O).Abs().LessThanOrEqual(decimal.NewFromInt(50)), "bar %d range", i)
		assert.GreaterOrEqual(t, b.V, int64(100))
		assert.LessOrEqual(t, b.V, int64(10000))
		if i > 0 {
			assert.True(t, b.O.Equal(bars[i-1].C), "bar %d opens at previous close", i)
		}
	}
}

func TestBars_Limit(t *testing.T) {
	g := newGenerator(t)
	req := request()
	req.Limit = 4

	bars, err := g.Bars(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, bars, 4)
}

func TestBars_EmptyRangeYieldsNoBars(t *testing.T) {
	g := newGenerator(t)
	req := request()
	req.EndTime = req.StartTime.Add(-time.Minute)

	bars, err := g.Bars(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestBars_Validation(t *testing.T) {
	g := newGenerator(t)

	tests := []struct {
		name   string
		mutate func(*history.Request)
		want   error
	}{
		{"unknown contract", func(r *history.Request) { r.ContractID = "CON.F.US.ZZ.H25" }, history.ErrContractNotFound},
		{"zero limit", func(r *history.Request) { r.Limit = 0 }, history.ErrLimitInvalid},
		{"limit too large", func(r *history.Request) { r.Limit = history.MaxBars + 1 }, history.ErrLimitInvalid},
		{"zero unit number", func(r *history.Request) { r.UnitNumber = 0 }, history.ErrUnitNumberInvalid},
		{"unknown unit", func(r *history.Request) { r.Unit = 9 }, history.ErrUnitInvalid},
		{"overflowing unit number", func(r *history.Request) { r.Unit = model.BarUnitWeek; r.UnitNumber = 1 << 40 }, history.ErrUnitNumberInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request()
			tt.mutate(&req)
			_, err := g.Bars(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		unit model.BarUnit
		n    int
		want time.Duration
	}{
		{model.BarUnitSecond, 30, 30 * time.Second},
		{model.BarUnitUnspecified, 1, time.Minute},
		{model.BarUnitMinute, 15, 15 * time.Minute},
		{model.BarUnitHour, 4, 4 * time.Hour},
		{model.BarUnitDay, 1, 24 * time.Hour},
		{model.BarUnitWeek, 2, 14 * 24 * time.Hour},
		{model.BarUnitMonth, 1, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := history.Interval(tt.unit, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "unit %d", tt.unit)
	}
}

func TestInterval_Overflow(t *testing.T) {
	_, err := history.Interval(model.BarUnitSecond, 1<<40)
	assert.ErrorIs(t, err, history.ErrUnitNumberInvalid)

	_, err = history.Interval(model.BarUnitMonth, 4000)
	assert.ErrorIs(t, err, history.ErrUnitNumberInvalid)

	// The largest representable step is still accepted.
	largest := int(math.MaxInt64 / int64(time.Second))
	got, err := history.Interval(model.BarUnitSecond, largest)
	require.NoError(t, err)
	assert.Positive(t, got)
}
