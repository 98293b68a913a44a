package service

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/settings"
)

// Ошибки денежных операций.
var (
	ErrDuplicateTransaction       = errors.New("duplicate transaction")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrInvalidTicketType          = errors.New("invalid ticket type")
	ErrDrawExpired                = errors.New("draw expired")
	ErrWalletNotFound             = errors.New("wallet not found")
	ErrExceedsMaxWithdrawal       = errors.New("amount exceeds max withdrawal")
	ErrDrawInProgress             = errors.New("draw in progress")
	ErrWithdrawalNotFound         = errors.New("withdrawal not found")
	ErrWithdrawalAlreadyProcessed = errors.New("withdrawal already processed")
	ErrNoExpiredDraws             = errors.New("no expired draws")
)

// Ошибки входных данных.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidTransactionID = errors.New("transaction id is required")
	ErrInvalidQuantity      = errors.New("invalid ticket quantity")
	ErrInvalidWalletAddress = errors.New("wallet address is required")
	ErrInvalidAction        = errors.New("invalid withdrawal action")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidTicketTypeDef = errors.New("invalid ticket type definition")
	ErrInvalidNotification  = errors.New("notification title and message are required")
)

// Ошибки хранилища, которые сервис отдаёт без изменений.
var (
	ErrUserExists           = repository.ErrUserExists
	ErrUserNotFound         = repository.ErrUserNotFound
	ErrReferralCodeNotFound = repository.ErrReferralCodeNotFound
	ErrTicketNotFound       = repository.ErrTicketNotFound
	ErrTicketTypeNotFound   = repository.ErrTicketTypeNotFound
	ErrTicketTypeInUse      = repository.ErrTicketTypeInUse
	ErrNotificationNotFound = repository.ErrNotificationNotFound
	ErrUnsupportedFilter    = repository.ErrUnsupportedFilter
	ErrInvalidFilter        = repository.ErrInvalidFilter
	ErrUnknownSetting       = settings.ErrUnknownKey
	ErrInvalidSetting       = settings.ErrInvalidValue
)

// ledgerErr переводит ошибки хранилища, возникшие внутри транзакции, в ошибки сервиса.
func ledgerErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case errors.Is(err, repository.ErrWalletNotFound):
		return fmt.Errorf("%w: %v", ErrWalletNotFound, err)
	case errors.Is(err, repository.ErrDuplicateTransaction):
		return fmt.Errorf("%w: %v", ErrDuplicateTransaction, err)
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return fmt.Errorf("%w: %v", ErrWithdrawalNotFound, err)
	case errors.Is(err, repository.ErrTicketTypeNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidTicketType, err)
	default:
		return err
	}
}
