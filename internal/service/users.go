package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/money"
)

// RegisterUser создаёт пользователя с кошельком. referralCode необязателен.
func (s *Service) RegisterUser(ctx context.Context, username, password, location, referralCode string) (*model.User, error) {
	u, err := s.createUser(ctx, username, password, location, referralCode, model.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Int64("userID", u.ID), zap.Bool("referred", u.ReferredBy != nil))
	return u, nil
}

// CreateAdminUser создаёт администратора с собственным кошельком.
// Используется при первичной настройке; если логин занят, возвращает ErrUserExists.
func (s *Service) CreateAdminUser(ctx context.Context, username, password, location string) (*model.User, error) {
	u, err := s.createUser(ctx, username, password, location, "", model.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin user created", zap.Int64("userID", u.ID), zap.String("username", u.Username))
	return u, nil
}

func (s *Service) createUser(ctx context.Context, username, password, location, referralCode string, role model.Role) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		Location:     strings.TrimSpace(location),
		Role:         role,
		ReferralCode: newReferralCode(),
	}

	if err := s.repo.CreateUser(ctx, u, strings.ToUpper(strings.TrimSpace(referralCode)), cfg.DepositAddress); err != nil {
		return nil, err
	}
	return u, nil
}

// AuthenticateUser проверяет логин и пароль и возвращает пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// IsAdmin сообщает, есть ли у пользователя роль администратора.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Role == model.RoleAdmin, nil
}

// GetWallet возвращает кошелёк с текущим лимитом вывода. Результат кэшируется
// до следующей денежной операции пользователя.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.WalletView, error) {
	var cached model.WalletView
	found, err := s.cache.Get(ctx, cache.WalletKey(userID), &cached)
	if err != nil {
		s.logger.Warn("wallet cache read failed", zap.Error(err), zap.Int64("userID", userID))
	}
	if found {
		return &cached, nil
	}

	version, versionErr := s.cache.Version(ctx, cache.WalletKey(userID))
	if versionErr != nil {
		s.logger.Warn("wallet cache version read failed", zap.Error(versionErr), zap.Int64("userID", userID))
	}

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}

	v, err := s.repo.GetWalletView(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, ledgerErr(err)
	}
	v.MaxWithdrawal = money.MaxWithdrawal(v.TotalDeposited, v.ReferralEarnings, cfg.WithdrawalFeePercentage)

	// без версии запись могла бы перекрыть свежую инвалидацию
	if versionErr == nil {
		if _, err := s.cache.SetIfVersion(ctx, cache.WalletKey(userID), version, v, walletCacheTTL); err != nil {
			s.logger.Warn("wallet cache write failed", zap.Error(err), zap.Int64("userID", userID))
		}
	}
	return v, nil
}

// GetDeposits возвращает пополнения пользователя.
func (s *Service) GetDeposits(ctx context.Context, userID int64) ([]model.Deposit, error) {
	return s.repo.GetDepositsByUser(ctx, userID)
}

func newReferralCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}
