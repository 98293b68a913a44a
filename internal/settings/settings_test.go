package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
)

type stubSource struct {
	values  map[string]string
	loadErr error
	loads   int
	saved   map[string]string
}

func (s *stubSource) LoadSettings(ctx context.Context) (map[string]string, error) {
	s.loads++
	return s.values, s.loadErr
}

func (s *stubSource) SaveSettings(ctx context.Context, values map[string]string) error {
	if s.saved == nil {
		s.saved = map[string]string{}
	}
	for k, v := range values {
		s.saved[k] = v
	}
	return nil
}

func TestParse_Defaults(t *testing.T) {
	l := Parse(nil)

	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, l.FirstPrize.Equal(decimal.NewFromInt(2000)))
	assert.True(t, l.SecondPrize.Equal(decimal.NewFromInt(1000)))
	assert.True(t, l.ThirdPrize.Equal(decimal.NewFromInt(500)))
	assert.True(t, l.ReferralPercentage.Equal(decimal.NewFromInt(10)))
	assert.True(t, l.WithdrawalFeePercentage.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 30, l.DrawDurationDays)
	assert.Equal(t, 5, l.SurpriseDepositThreshold)
	assert.Equal(t, 30*24*time.Hour, l.DrawDuration())
}

func TestParse_InvalidFallsBackToDefault(t *testing.T) {
	l := Parse(map[string]string{
		KeyFirstPrize:         "3000",
		KeyDrawDurationDays:   "zero",
		KeyReferralPercentage: "150",
		"UNKNOWN":             "1",
	})

	assert.True(t, l.FirstPrize.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, 30, l.DrawDurationDays)
	assert.True(t, l.ReferralPercentage.Equal(decimal.NewFromInt(10)))
}

func TestParse_HugeDrawDurationFallsBackToDefault(t *testing.T) {
	l := Parse(map[string]string{
		KeyDrawDurationDays: "9999999999",
		KeySecondPrize:      "10.999",
	})

	assert.Equal(t, 30, l.DrawDurationDays)
	assert.Equal(t, 30*24*time.Hour, l.DrawDuration())
	assert.True(t, l.SecondPrize.Equal(decimal.NewFromInt(1000)))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key, value string
		wantErr    error
	}{
		{KeyTicketPrice, "50", nil},
		{KeyTicketPrice, "0", ErrInvalidValue},
		{KeyFirstPrize, "-1", ErrInvalidValue},
		{KeyWithdrawalFeePercentage, "100", nil},
		{KeyWithdrawalFeePercentage, "100.5", ErrInvalidValue},
		{KeySurpriseDepositThreshold, "3", nil},
		{KeySurpriseDepositThreshold, "-3", ErrInvalidValue},
		{KeyDepositAddress, "", ErrInvalidValue},
		{KeyFirstPrize, "100.50", nil},
		{KeyFirstPrize, "100.005", ErrInvalidValue},
		{KeyTicketPrice, "0.001", ErrInvalidValue},
		{KeyDrawDurationDays, "3650", nil},
		{KeyDrawDurationDays, "3651", ErrInvalidValue},
		{KeyDrawDurationDays, "200000000", ErrInvalidValue},
		{"NOPE", "1", ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := Validate(tt.key, tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestProvider_ReadsSourceEveryTimeWithoutCache(t *testing.T) {
	src := &stubSource{values: map[string]string{KeyTicketPrice: "25"}}
	p := NewProvider(src, nil, time.Minute, nil)

	l, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(25)))

	src.values[KeyTicketPrice] = "30"
	l, err = p.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 2, src.loads)
}

func TestProvider_LoadError(t *testing.T) {
	src := &stubSource{loadErr: errors.New("db down")}
	p := NewProvider(src, nil, time.Minute, nil)

	_, err := p.Current(context.Background())
	require.Error(t, err)
}

func TestProvider_UpdateValidates(t *testing.T) {
	src := &stubSource{}
	p := NewProvider(src, nil, time.Minute, nil)

	err := p.Update(context.Background(), map[string]string{KeyFirstPrize: "abc"})
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Nil(t, src.saved)

	err = p.Update(context.Background(), map[string]string{KeyFirstPrize: "2500"})
	require.NoError(t, err)
	assert.Equal(t, "2500", src.saved[KeyFirstPrize])
}

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb)
}

func TestProvider_CachedUntilUpdate(t *testing.T) {
	src := &stubSource{values: map[string]string{KeyTicketPrice: "25"}}
	p := NewProvider(src, newRedisCache(t), time.Minute, nil)
	ctx := context.Background()

	l, err := p.Current(ctx)
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(25)))

	_, err = p.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.loads)

	require.NoError(t, p.Update(ctx, map[string]string{KeyTicketPrice: "40"}))
	src.values = src.saved

	l, err = p.Current(ctx)
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 2, src.loads)
}

// racingSource меняет настройки в момент, когда провайдер уже прочитал старые значения.
type racingSource struct {
	*stubSource
	onLoad func()
}

func (s *racingSource) LoadSettings(ctx context.Context) (map[string]string, error) {
	values, err := s.stubSource.LoadSettings(ctx)
	if f := s.onLoad; f != nil {
		s.onLoad = nil
		f()
	}
	return values, err
}

func TestProvider_UpdateDuringLoadIsNotOverwritten(t *testing.T) {
	src := &racingSource{stubSource: &stubSource{values: map[string]string{KeyTicketPrice: "25"}}}
	p := NewProvider(src, newRedisCache(t), time.Minute, nil)
	ctx := context.Background()

	src.onLoad = func() {
		require.NoError(t, p.Update(ctx, map[string]string{KeyTicketPrice: "40"}))
	}

	l, err := p.Current(ctx)
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(25)))

	src.values = map[string]string{KeyTicketPrice: "40"}
	l, err = p.Current(ctx)
	require.NoError(t, err)
	assert.True(t, l.TicketPrice.Equal(decimal.NewFromInt(40)), "stale settings served from cache")
}

func TestKeys(t *testing.T) {
	assert.Len(t, Keys(), len(Defaults))
}
