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

// ProcessDeposit зачисляет пополнение по внешней транзакции. Повторная транзакция
// с тем же идентификатором отклоняется с ErrDuplicateTransaction без изменений в кошельке.
// Реферер пополнившего получает процент от суммы на баланс и в referralEarnings.
func (s *Service) ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal, transactionID string) (*model.Deposit, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrInvalidTransactionID
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !money.IsCents(amount) {
		return nil, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, money.Places)
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	var (
		dep        *model.Deposit
		referrerID *int64
		surprise   bool
	)

	err = s.store.InTx(ctx, func(l repository.Ledger) error {
		dep, referrerID, surprise = nil, nil, false

		exists, err := l.DepositExists(ctx, transactionID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, transactionID)
		}

		user, err := l.LockUser(ctx, userID)
		if err != nil {
			return err
		}

		d := &model.Deposit{
			UserID:        userID,
			Amount:        amount,
			TransactionID: transactionID,
			Status:        model.DepositStatusCompleted,
		}
		if err := l.CreateDeposit(ctx, d); err != nil {
			return err
		}

		if _, err := l.AdjustWallet(ctx, userID, model.WalletDelta{
			Balance:        amount,
			TotalDeposited: amount,
		}); err != nil {
			return err
		}

		count := user.DepositCount + 1
		activate := !user.SurpriseActivated && count >= cfg.SurpriseDepositThreshold
		if err := l.UpdateUserDeposits(ctx, userID, count, activate); err != nil {
			return err
		}

		if user.ReferredBy != nil {
			earning := money.ReferralEarning(amount, cfg.ReferralPercentage)
			if earning.IsPositive() {
				if _, err := l.AdjustWallet(ctx, *user.ReferredBy, model.WalletDelta{
					Balance:          earning,
					ReferralEarnings: earning,
				}); err != nil {
					return err
				}
				referrerID = user.ReferredBy
			}
		}

		dep, surprise = d, activate
		return nil
	})
	if err != nil {
		return nil, ledgerErr(err)
	}

	s.logger.Info("deposit processed",
		zap.Int64("userID", userID),
		zap.String("transactionID", transactionID),
		zap.String("amount", amount.StringFixed(2)),
	)

	affected := []int64{userID}
	if referrerID != nil {
		affected = append(affected, *referrerID)
	}
	s.invalidateWallets(ctx, affected...)

	ns := []model.Notification{
		notify.ForUser(userID, notify.TypeDeposit, "Deposit received",
			fmt.Sprintf("Your deposit of %s has been credited to your wallet.", amount.StringFixed(2))),
	}
	if surprise {
		ns = append(ns, notify.ForUser(userID, notify.TypeDeposit, "Surprise unlocked",
			fmt.Sprintf("You have made %d deposits and unlocked a surprise.", cfg.SurpriseDepositThreshold)))
	}
	if referrerID != nil {
		ns = append(ns, notify.ForUser(*referrerID, notify.TypeDeposit, "Referral bonus",
			fmt.Sprintf("You earned %s from a referred user's deposit.",
				money.ReferralEarning(amount, cfg.ReferralPercentage).StringFixed(2))))
	}
	s.notify(ns...)

	return dep, nil
}
