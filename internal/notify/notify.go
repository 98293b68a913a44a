// Package notify доставляет уведомления пользователям после фиксации денежных операций.
// Доставка выполняется в фоне и никогда не влияет на результат операции.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// Типы уведомлений.
const (
	TypeDeposit    = "deposit"
	TypePurchase   = "purchase"
	TypeWithdrawal = "withdrawal"
	TypeWin        = "win"
	TypeDraw       = "draw"
	TypeAnnounce   = "announcement"
)

// Sink описывает канал доставки уведомлений.
type Sink interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

// Dispatcher рассылает уведомления по всем каналам в отдельной горутине
// с ограничением времени на пакет.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher создаёт диспетчер. Каналы вызываются в порядке передачи.
func NewDispatcher(logger *zap.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger,
	}
}

// Notify ставит уведомления в доставку и сразу возвращает управление.
func (d *Dispatcher) Notify(ns ...model.Notification) {
	if d == nil || len(ns) == 0 || len(d.sinks) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		for i := range ns {
			n := &ns[i]
			for _, s := range d.sinks {
				if err := s.Deliver(ctx, n); err != nil {
					d.logger.Warn("notification delivery failed",
						zap.Error(err),
						zap.String("type", n.Type),
						zap.Bool("global", n.IsGlobal),
					)
				}
			}
		}
	}()
}

// Wait дожидается завершения начатых доставок.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Store сохраняет уведомления, которые затем читают пользователи.
type Store interface {
	SaveNotification(ctx context.Context, n *model.Notification) error
}

// StoreSink сохраняет уведомления в хранилище.
type StoreSink struct {
	store Store
}

// NewStoreSink создаёт канал доставки в хранилище.
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver сохраняет уведомление.
func (s *StoreSink) Deliver(ctx context.Context, n *model.Notification) error {
	return s.store.SaveNotification(ctx, n)
}

// ForUser строит личное уведомление.
func ForUser(userID int64, typ, title, message string) model.Notification {
	return model.Notification{
		UserID:  &userID,
		Type:    typ,
		Title:   title,
		Message: message,
	}
}

// Global строит уведомление для всех пользователей.
func Global(typ, title, message string) model.Notification {
	return model.Notification{
		Type:     typ,
		Title:    title,
		Message:  message,
		IsGlobal: true,
	}
}
