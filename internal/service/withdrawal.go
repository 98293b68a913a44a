package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/money"
	"github.com/mmeshcher/lottery-ledger/internal/notify"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
)

// CreateWithdrawalRequest создаёт заявку на вывод и сразу резервирует сумму,
// списывая её с баланса. Вывод возможен только между тиражами.
func (s *Service) CreateWithdrawalRequest(ctx context.Context, userID int64, amount decimal.Decimal, walletAddress string) (*model.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !money.IsCents(amount) {
		return nil, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, money.Places)
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return nil, ErrInvalidWalletAddress
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var res *model.Withdrawal

	err = s.store.InTx(ctx, func(l repository.Ledger) error {
		res = nil

		wallet, err := l.LockWallet(ctx, userID)
		if err != nil {
			return err
		}

		limit := money.MaxWithdrawal(wallet.TotalDeposited, wallet.ReferralEarnings, cfg.WithdrawalFeePercentage)
		if amount.GreaterThan(limit) {
			return fmt.Errorf("%w: max %s", ErrExceedsMaxWithdrawal, limit.StringFixed(2))
		}

		if amount.GreaterThan(wallet.Balance) {
			return fmt.Errorf("%w: have %s", ErrInsufficientBalance, wallet.Balance.StringFixed(2))
		}

		active, err := l.ActiveDrawExists(ctx, s.now())
		if err != nil {
			return err
		}
		if active {
			return ErrDrawInProgress
		}

		w := &model.Withdrawal{
			UserID:        userID,
			Amount:        amount,
			WalletAddress: walletAddress,
			Status:        model.WithdrawalStatusPending,
		}
		if err := l.CreateWithdrawal(ctx, w); err != nil {
			return err
		}

		if _, err := l.AdjustWallet(ctx, userID, model.WalletDelta{Balance: amount.Neg()}); err != nil {
			return err
		}

		res = w
		return nil
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	s.logger.Info("withdrawal requested",
		zap.Int64("userID", userID),
		zap.Int64("withdrawalID", res.ID),
		zap.String("amount", amount.StringFixed(2)),
	)

	s.invalidateWallets(ctx, userID)
	s.notify(notify.ForUser(userID, notify.TypeWithdrawal, "Withdrawal requested",
		fmt.Sprintf("Your withdrawal of %s is pending approval.", amount.StringFixed(2))))

	return res, nil
}

// ProcessWithdrawal завершает заявку на вывод. Одобрение переносит сумму в totalWithdrawn,
// отклонение возвращает зарезервированную сумму на баланс.
func (s *Service) ProcessWithdrawal(ctx context.Context, withdrawalID int64, action model.WithdrawalAction) (*model.Withdrawal, error) {
	var (
		status model.WithdrawalStatus
		delta  func(amount decimal.Decimal) model.WalletDelta
	)
	switch action {
	case model.WithdrawalApprove:
		status = model.WithdrawalStatusCompleted
		delta = func(a decimal.Decimal) model.WalletDelta { return model.WalletDelta{TotalWithdrawn: a} }
	case model.WithdrawalReject:
		status = model.WithdrawalStatusRejected
		delta = func(a decimal.Decimal) model.WalletDelta { return model.WalletDelta{Balance: a} }
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	var res *model.Withdrawal

	err := s.store.InTx(ctx, func(l repository.Ledger) error {
		res = nil

		w, err := l.LockWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		if w.Status != model.WithdrawalStatusPending {
			return fmt.Errorf("%w: status %s", ErrWithdrawalAlreadyProcessed, w.Status)
		}

		processedAt := s.now()
		if err := l.FinalizeWithdrawal(ctx, w.ID, status, processedAt); err != nil {
			return err
		}

		if _, err := l.AdjustWallet(ctx, w.UserID, delta(w.Amount)); err != nil {
			return err
		}

		w.Status = status
		w.ProcessedAt = &processedAt
		res = w
		return nil
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	s.logger.Info("withdrawal processed",
		zap.Int64("withdrawalID", res.ID),
		zap.Int64("userID", res.UserID),
		zap.String("status", string(res.Status)),
	)

	s.invalidateWallets(ctx, res.UserID)

	if res.Status == model.WithdrawalStatusCompleted {
		s.notify(notify.ForUser(res.UserID, notify.TypeWithdrawal, "Withdrawal approved",
			fmt.Sprintf("Your withdrawal of %s to %s has been approved.", res.Amount.StringFixed(2), res.WalletAddress)))
	} else {
		s.notify(notify.ForUser(res.UserID, notify.TypeWithdrawal, "Withdrawal rejected",
			fmt.Sprintf("Your withdrawal of %s has been rejected and the amount returned to your balance.", res.Amount.StringFixed(2))))
	}

	return res, nil
}

// GetWithdrawals возвращает заявки пользователя.
func (s *Service) GetWithdrawals(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return s.repo.GetWithdrawalsByUser(ctx, userID)
}

// PendingWithdrawals возвращает заявки, ожидающие решения, в порядке поступления.
func (s *Service) PendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	return s.repo.GetPendingWithdrawals(ctx)
}

// ListWithdrawals возвращает заявки по фильтрам.
func (s *Service) ListWithdrawals(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Withdrawal, error) {
	limit, offset = page(limit, offset)
	return s.repo.ListWithdrawals(ctx, filters, limit, offset)
}
