package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/notify"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
)

const (
	defaultDrawHistoryLimit = 10
	maxDrawHistoryLimit     = 100
)

// Winner описывает призовое место в тираже.
type Winner struct {
	Rank         int             `json:"rank"`
	UserID       int64           `json:"userId"`
	TicketNumber string          `json:"ticketNumber"`
	Location     string          `json:"location"`
	Prize        decimal.Decimal `json:"prize"`
}

// DrawResult описывает итог проведения одного тиража.
type DrawResult struct {
	DrawID       int64            `json:"drawId"`
	Status       model.DrawStatus `json:"status"`
	TotalTickets int              `json:"totalTickets"`
	PrizePool    decimal.Decimal  `json:"prizePool"`
	Winners      []Winner         `json:"winners"`
}

// ConductExpiredDraws проводит все активные тиражи с истёкшим сроком в одной транзакции.
// Тираж без билетов отменяется. Иначе билеты перемешиваются, первые три становятся
// призовыми, и победителям начисляются фиксированные призы из настроек.
// Призовой фонд тиража в выплатах не участвует.
func (s *Service) ConductExpiredDraws(ctx context.Context) ([]DrawResult, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	prizes := cfg.Prizes()

	var results []DrawResult

	err = s.store.InTx(ctx, func(l repository.Ledger) error {
		results = nil

		draws, err := l.LockExpiredDraws(ctx, s.now())
		if err != nil {
			return err
		}
		if len(draws) == 0 {
			return ErrNoExpiredDraws
		}

		for _, d := range draws {
			tickets, err := l.DrawTickets(ctx, d.ID)
			if err != nil {
				return err
			}

			if len(tickets) == 0 {
				if err := l.CancelDraw(ctx, d.ID); err != nil {
					return err
				}
				results = append(results, DrawResult{
					DrawID:    d.ID,
					Status:    model.DrawStatusCancelled,
					PrizePool: d.PrizePool,
				})
				continue
			}

			pool := flattenByLocation(tickets)
			s.shuffle(pool)

			var (
				winnerUsers [3]*int64
				winnerIDs   []int64
				winners     []Winner
			)
			for i := 0; i < len(prizes) && i < len(pool); i++ {
				t := pool[i]
				userID := t.UserID
				winnerUsers[i] = &userID
				winnerIDs = append(winnerIDs, t.ID)
				winners = append(winners, Winner{
					Rank:         i + 1,
					UserID:       t.UserID,
					TicketNumber: t.TicketNumber,
					Location:     t.Location,
					Prize:        prizes[i],
				})
			}

			if err := l.CompleteDraw(ctx, d.ID, winnerUsers); err != nil {
				return err
			}
			if err := l.SettleTickets(ctx, d.ID, winnerIDs); err != nil {
				return err
			}

			for _, w := range winners {
				if _, err := l.AdjustWallet(ctx, w.UserID, model.WalletDelta{Balance: w.Prize}); err != nil {
					return err
				}
			}

			results = append(results, DrawResult{
				DrawID:       d.ID,
				Status:       model.DrawStatusCompleted,
				TotalTickets: len(tickets),
				PrizePool:    d.PrizePool,
				Winners:      winners,
			})
		}
		return nil
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	s.afterSettlement(ctx, results)
	return results, nil
}

func (s *Service) afterSettlement(ctx context.Context, results []DrawResult) {
	var (
		affected []int64
		ns       []model.Notification
	)

	for _, r := range results {
		s.logger.Info("draw settled",
			zap.Int64("drawID", r.DrawID),
			zap.String("status", string(r.Status)),
			zap.Int("tickets", r.TotalTickets),
			zap.Int("winners", len(r.Winners)),
		)
		if r.Status != model.DrawStatusCompleted {
			continue
		}

		for _, w := range r.Winners {
			affected = append(affected, w.UserID)
			ns = append(ns, notify.ForUser(w.UserID, notify.TypeWin, "You won!",
				fmt.Sprintf("Your ticket %s took place %d in draw #%d. %s has been credited to your wallet.",
					w.TicketNumber, w.Rank, r.DrawID, w.Prize.StringFixed(2))))
		}
		ns = append(ns, notify.Global(notify.TypeDraw, "Draw results",
			fmt.Sprintf("Draw #%d is complete: %d tickets, %d winner(s).", r.DrawID, r.TotalTickets, len(r.Winners))))
	}

	s.invalidateWallets(ctx, affected...)
	s.notify(ns...)
}

// flattenByLocation группирует билеты по локации владельца и склеивает группы
// в порядке локаций. На выбор победителей группировка не влияет: после неё
// список перемешивается целиком.
func flattenByLocation(tickets []model.TicketEntry) []model.TicketEntry {
	groups := make(map[string][]model.TicketEntry)
	for _, t := range tickets {
		groups[t.Location] = append(groups[t.Location], t)
	}

	locations := make([]string, 0, len(groups))
	for loc := range groups {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	res := make([]model.TicketEntry, 0, len(tickets))
	for _, loc := range locations {
		res = append(res, groups[loc]...)
	}
	return res
}

// RunDrawSettlement периодически проводит истёкшие тиражи до отмены ctx.
// Нулевой интервал отключает планировщик.
func (s *Service) RunDrawSettlement(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ConductExpiredDraws(ctx); err != nil {
				if errors.Is(err, ErrNoExpiredDraws) || errors.Is(err, context.Canceled) {
					s.logger.Debug("draw settlement skipped", zap.Error(err))
					continue
				}
				s.logger.Error("draw settlement failed", zap.Error(err))
			}
		}
	}
}

// CurrentDrawInfo описывает открытый тираж и действующие призы.
type CurrentDrawInfo struct {
	Draw          *model.Draw     `json:"draw"`
	DaysRemaining int             `json:"daysRemaining"`
	TicketPrice   decimal.Decimal `json:"ticketPrice"`
	FirstPrize    decimal.Decimal `json:"firstPrize"`
	SecondPrize   decimal.Decimal `json:"secondPrize"`
	ThirdPrize    decimal.Decimal `json:"thirdPrize"`
}

// CurrentDraw возвращает открытый тираж. Draw равен nil, если продажи ещё не открыли тираж.
func (s *Service) CurrentDraw(ctx context.Context) (*CurrentDrawInfo, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d, err := s.repo.GetCurrentDraw(ctx, now)
	if err != nil {
		return nil, err
	}

	info := &CurrentDrawInfo{
		Draw:        d,
		TicketPrice: cfg.TicketPrice,
		FirstPrize:  cfg.FirstPrize,
		SecondPrize: cfg.SecondPrize,
		ThirdPrize:  cfg.ThirdPrize,
	}
	if d != nil {
		info.DaysRemaining = daysUntil(now, d.EndDate)
	}
	return info, nil
}

func daysUntil(now, end time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

// DrawHistory возвращает завершённые тиражи, новые первыми.
func (s *Service) DrawHistory(ctx context.Context, limit int) ([]model.Draw, error) {
	if limit <= 0 {
		limit = defaultDrawHistoryLimit
	}
	if limit > maxDrawHistoryLimit {
		limit = maxDrawHistoryLimit
	}
	return s.repo.GetDrawHistory(ctx, limit)
}
