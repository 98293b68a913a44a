// Package settings предоставляет настройки лотереи, которые администратор может менять
// во время работы сервиса. Значения читаются заново для каждой операции.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
	"github.com/mmeshcher/lottery-ledger/internal/money"
)

// MaxDrawDurationDays ограничивает длительность тиража, чтобы она помещалась в time.Duration.
const MaxDrawDurationDays = 3650

// Ключи настроек.
const (
	KeyTicketPrice              = "TICKET_PRICE"
	KeyFirstPrize               = "FIRST_PRIZE"
	KeySecondPrize              = "SECOND_PRIZE"
	KeyThirdPrize               = "THIRD_PRIZE"
	KeyReferralPercentage       = "REFERRAL_PERCENTAGE"
	KeyWithdrawalFeePercentage  = "WITHDRAWAL_FEE_PERCENTAGE"
	KeyDrawDurationDays         = "DRAW_DURATION_DAYS"
	KeySurpriseDepositThreshold = "SURPRISE_DEPOSIT_THRESHOLD"
	KeyDepositAddress           = "DEPOSIT_ADDRESS"
)

// ErrUnknownKey возвращается при попытке изменить неизвестную настройку.
var (
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrInvalidValue возвращается, если значение нельзя разобрать или оно вне допустимого диапазона.
	ErrInvalidValue = errors.New("invalid settings value")
)

type kind int

const (
	kindAmount kind = iota
	kindPercent
	kindPositiveInt
	kindString
)

var keys = map[string]kind{
	KeyTicketPrice:              kindAmount,
	KeyFirstPrize:               kindAmount,
	KeySecondPrize:              kindAmount,
	KeyThirdPrize:               kindAmount,
	KeyReferralPercentage:       kindPercent,
	KeyWithdrawalFeePercentage:  kindPercent,
	KeyDrawDurationDays:         kindPositiveInt,
	KeySurpriseDepositThreshold: kindPositiveInt,
	KeyDepositAddress:           kindString,
}

// Defaults содержит значения, используемые при отсутствии ключа в хранилище.
var Defaults = map[string]string{
	KeyTicketPrice:              "100",
	KeyFirstPrize:               "2000",
	KeySecondPrize:              "1000",
	KeyThirdPrize:               "500",
	KeyReferralPercentage:       "10",
	KeyWithdrawalFeePercentage:  "10",
	KeyDrawDurationDays:         "30",
	KeySurpriseDepositThreshold: "5",
	KeyDepositAddress:           "your-deposit-address",
}

// Lottery содержит типизированный снимок настроек на момент чтения.
type Lottery struct {
	TicketPrice              decimal.Decimal
	FirstPrize               decimal.Decimal
	SecondPrize              decimal.Decimal
	ThirdPrize               decimal.Decimal
	ReferralPercentage       decimal.Decimal
	WithdrawalFeePercentage  decimal.Decimal
	DrawDurationDays         int
	SurpriseDepositThreshold int
	DepositAddress           string
}

// DrawDuration возвращает длительность тиража.
func (l Lottery) DrawDuration() time.Duration {
	return time.Duration(l.DrawDurationDays) * 24 * time.Hour
}

// Prizes возвращает призы по местам: первое, второе, третье.
func (l Lottery) Prizes() [3]decimal.Decimal {
	return [3]decimal.Decimal{l.FirstPrize, l.SecondPrize, l.ThirdPrize}
}

// Validate проверяет, что значение допустимо для ключа.
func Validate(key, value string) error {
	k, ok := keys[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	switch k {
	case kindAmount, kindPercent:
		v, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, key)
		}
		if k == kindAmount && !money.IsCents(v) {
			return fmt.Errorf("%w: %s must have at most %d decimal places", ErrInvalidValue, key, money.Places)
		}
		if k == kindAmount && key == KeyTicketPrice && !v.IsPositive() {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidValue, key)
		}
		if k == kindPercent && v.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: %s must not exceed 100", ErrInvalidValue, key)
		}
	case kindPositiveInt:
		v, err := strconv.Atoi(value)
		if err != nil || v <= 0 {
			return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		if key == KeyDrawDurationDays && v > MaxDrawDurationDays {
			return fmt.Errorf("%w: %s must not exceed %d", ErrInvalidValue, key, MaxDrawDurationDays)
		}
	case kindString:
		if value == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, key)
		}
	}
	return nil
}

// Effective накладывает сохранённые значения на значения по умолчанию.
// Неизвестные и невалидные значения отбрасываются.
func Effective(stored map[string]string) map[string]string {
	res := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		res[k] = v
	}
	for k, v := range stored {
		if Validate(k, v) == nil {
			res[k] = v
		}
	}
	return res
}

// Parse строит типизированный снимок из набора значений.
func Parse(stored map[string]string) Lottery {
	v := Effective(stored)

	// после Effective все значения валидны
	dec := func(k string) decimal.Decimal { return decimal.RequireFromString(v[k]) }
	num := func(k string) int { n, _ := strconv.Atoi(v[k]); return n }

	return Lottery{
		TicketPrice:              dec(KeyTicketPrice),
		FirstPrize:               dec(KeyFirstPrize),
		SecondPrize:              dec(KeySecondPrize),
		ThirdPrize:               dec(KeyThirdPrize),
		ReferralPercentage:       dec(KeyReferralPercentage),
		WithdrawalFeePercentage:  dec(KeyWithdrawalFeePercentage),
		DrawDurationDays:         num(KeyDrawDurationDays),
		SurpriseDepositThreshold: num(KeySurpriseDepositThreshold),
		DepositAddress:           v[KeyDepositAddress],
	}
}

// Keys возвращает отсортированный список известных ключей.
func Keys() []string {
	res := make([]string, 0, len(keys))
	for k := range keys {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// Source описывает хранилище настроек.
type Source interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, values map[string]string) error
}

// Provider читает настройки из хранилища с коротким кэшированием в Redis.
type Provider struct {
	source Source
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewProvider создаёт провайдер настроек. cache может быть nil.
func NewProvider(source Source, c *cache.Cache, ttl time.Duration, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		source: source,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Current возвращает актуальный снимок настроек.
func (p *Provider) Current(ctx context.Context) (Lottery, error) {
	values, err := p.Values(ctx)
	if err != nil {
		return Lottery{}, err
	}
	return Parse(values), nil
}

// Values возвращает действующие значения всех ключей.
func (p *Provider) Values(ctx context.Context) (map[string]string, error) {
	var stored map[string]string
	found, err := p.cache.Get(ctx, cache.SettingsKey, &stored)
	if err != nil {
		p.logger.Warn("settings cache read failed", zap.Error(err))
	}
	if found {
		return Effective(stored), nil
	}

	version, versionErr := p.cache.Version(ctx, cache.SettingsKey)
	if versionErr != nil {
		p.logger.Warn("settings cache version read failed", zap.Error(versionErr))
	}

	stored, err = p.source.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if versionErr != nil {
		return Effective(stored), nil
	}
	if _, err := p.cache.SetIfVersion(ctx, cache.SettingsKey, version, stored, p.ttl); err != nil {
		p.logger.Warn("settings cache write failed", zap.Error(err))
	}

	return Effective(stored), nil
}

// Update проверяет и сохраняет новые значения, затем сбрасывает кэш.
func (p *Provider) Update(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if err := Validate(k, v); err != nil {
			return err
		}
	}

	if err := p.source.SaveSettings(ctx, values); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if err := p.cache.Delete(ctx, cache.SettingsKey); err != nil {
		p.logger.Warn("settings cache invalidation failed", zap.Error(err))
	}
	return nil
}
