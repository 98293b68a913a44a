package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/notify"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/validation"
)

const defaultTicketColor = "#3B82F6"

// PurchaseResult описывает итог покупки билетов.
type PurchaseResult struct {
	Tickets   []model.Ticket  `json:"tickets"`
	TotalCost decimal.Decimal `json:"totalCost"`
	DrawID    int64           `json:"drawId"`
}

// PurchaseTickets списывает стоимость билетов с кошелька и выпускает билеты в текущий
// тираж. Если открытого тиража нет, он создаётся. Цена билета фиксируется на момент покупки.
func (s *Service) PurchaseTickets(ctx context.Context, userID, ticketTypeID int64, quantity int) (*PurchaseResult, error) {
	if !validation.IsValidQuantity(quantity) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var res *PurchaseResult

	err = s.store.InTx(ctx, func(l repository.Ledger) error {
		res = nil

		tt, err := l.GetTicketType(ctx, ticketTypeID)
		if err != nil {
			return err
		}
		if !tt.IsActive {
			return fmt.Errorf("%w: ticket type %d is inactive", ErrInvalidTicketType, ticketTypeID)
		}

		unitPrice := tt.Price
		totalCost := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))

		wallet, err := l.LockWallet(ctx, userID)
		if err != nil {
			return err
		}
		if wallet.Balance.LessThan(totalCost) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance,
				totalCost.StringFixed(2), wallet.Balance.StringFixed(2))
		}

		now := s.now()
		draw, err := l.LockCurrentDraw(ctx, now)
		if err != nil {
			return err
		}
		if draw == nil {
			draw = &model.Draw{
				StartDate: now,
				EndDate:   now.Add(cfg.DrawDuration()),
				Status:    model.DrawStatusActive,
			}
			if err := l.CreateDraw(ctx, draw); err != nil {
				return err
			}
			s.logger.Info("draw opened", zap.Int64("drawID", draw.ID), zap.Time("endDate", draw.EndDate))
		}

		if !draw.EndDate.After(s.now()) {
			return fmt.Errorf("%w: draw %d", ErrDrawExpired, draw.ID)
		}

		tickets := make([]model.Ticket, 0, quantity)
		for range quantity {
			serial, err := l.NextTicketSerial(ctx)
			if err != nil {
				return err
			}
			t := model.Ticket{
				UserID:        userID,
				DrawID:        draw.ID,
				TicketTypeID:  tt.ID,
				TicketNumber:  validation.TicketNumber(serial),
				PurchasePrice: unitPrice,
				Status:        model.TicketStatusActive,
			}
			if err := l.CreateTicket(ctx, &t); err != nil {
				return err
			}
			tickets = append(tickets, t)
		}

		if _, err := l.AdjustWallet(ctx, userID, model.WalletDelta{Balance: totalCost.Neg()}); err != nil {
			return err
		}

		if err := l.AddDrawSales(ctx, draw.ID, quantity, totalCost); err != nil {
			return err
		}

		res = &PurchaseResult{Tickets: tickets, TotalCost: totalCost, DrawID: draw.ID}
		return nil
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	s.logger.Info("tickets purchased",
		zap.Int64("userID", userID),
		zap.Int64("drawID", res.DrawID),
		zap.Int("quantity", quantity),
		zap.String("totalCost", res.TotalCost.StringFixed(2)),
	)

	s.invalidateWallets(ctx, userID)
	s.notify(notify.ForUser(userID, notify.TypePurchase, "Tickets purchased",
		fmt.Sprintf("You bought %d ticket(s) for %s in draw #%d.", quantity, res.TotalCost.StringFixed(2), res.DrawID)))

	return res, nil
}

// GetTickets возвращает билеты пользователя.
func (s *Service) GetTickets(ctx context.Context, userID int64) ([]model.TicketWithDraw, error) {
	return s.repo.GetTicketsByUser(ctx, userID)
}

// GetTicket возвращает билет пользователя по номеру.
func (s *Service) GetTicket(ctx context.Context, userID int64, number string) (*model.TicketWithDraw, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if !validation.IsValidTicketNumber(number) {
		return nil, fmt.Errorf("%w: %s", ErrTicketNotFound, number)
	}
	return s.repo.GetTicketByNumber(ctx, userID, number)
}

// ListTicketTypes возвращает каталог билетов. Отключённые виды видны только при includeInactive.
func (s *Service) ListTicketTypes(ctx context.Context, includeInactive bool) ([]model.TicketType, error) {
	return s.repo.ListTicketTypes(ctx, !includeInactive)
}

// CreateTicketType добавляет вид билета. Без цены используется TICKET_PRICE.
func (s *Service) CreateTicketType(ctx context.Context, tt model.TicketType) (*model.TicketType, error) {
	if tt.Price.IsZero() {
		cfg, err := s.settings.Current(ctx)
		if err != nil {
			return nil, err
		}
		tt.Price = cfg.TicketPrice
	}
	if err := normalizeTicketType(&tt); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTicketType(ctx, &tt); err != nil {
		return nil, err
	}
	return &tt, nil
}

// UpdateTicketType перезаписывает вид билета.
func (s *Service) UpdateTicketType(ctx context.Context, tt model.TicketType) (*model.TicketType, error) {
	if err := normalizeTicketType(&tt); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTicketType(ctx, &tt); err != nil {
		return nil, err
	}
	return &tt, nil
}

// DeleteTicketType удаляет вид билета, по которому не было продаж.
func (s *Service) DeleteTicketType(ctx context.Context, id int64) error {
	return s.repo.DeleteTicketType(ctx, id)
}

// TicketTypeStats возвращает продажи по видам билетов.
func (s *Service) TicketTypeStats(ctx context.Context) ([]model.TicketTypeStats, error) {
	return s.repo.GetTicketTypeStats(ctx)
}

func normalizeTicketType(tt *model.TicketType) error {
	tt.Name = strings.TrimSpace(tt.Name)
	if tt.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTicketTypeDef)
	}
	tt.Price = tt.Price.Round(2)
	if !tt.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidTicketTypeDef)
	}
	if tt.Color == "" {
		tt.Color = defaultTicketColor
	}
	return nil
}
