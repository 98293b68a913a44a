// Package model содержит доменные сущности лотерейного сервиса.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного участника лотереи.
type User struct {
	ID                int64
	Username          string
	PasswordHash      []byte
	Location          string
	Role              Role
	ReferralCode      string
	ReferredBy        *int64
	DepositCount      int
	SurpriseActivated bool
	CreatedAt         time.Time
}

// UserSummary описывает строку административного списка пользователей.
type UserSummary struct {
	ID                int64           `json:"id"`
	Username          string          `json:"username"`
	Location          string          `json:"location"`
	Role              Role            `json:"role"`
	ReferralCode      string          `json:"referralCode"`
	DepositCount      int             `json:"depositCount"`
	SurpriseActivated bool            `json:"surpriseActivated"`
	Balance           decimal.Decimal `json:"balance"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// Wallet содержит денежное состояние пользователя. Создаётся вместе с пользователем.
type Wallet struct {
	UserID           int64           `json:"userId"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDeposited   decimal.Decimal `json:"totalDeposited"`
	TotalWithdrawn   decimal.Decimal `json:"totalWithdrawn"`
	ReferralEarnings decimal.Decimal `json:"referralEarnings"`
	DepositAddress   string          `json:"depositAddress"`
}

// WalletDelta описывает приращения полей кошелька в рамках одной операции.
// Нулевые поля не изменяются.
type WalletDelta struct {
	Balance          decimal.Decimal
	TotalDeposited   decimal.Decimal
	TotalWithdrawn   decimal.Decimal
	ReferralEarnings decimal.Decimal
}

// WalletView объединяет кошелёк с данными пользователя, которые влияют на лимиты.
type WalletView struct {
	Wallet
	DepositCount      int             `json:"depositCount"`
	SurpriseActivated bool            `json:"surpriseActivated"`
	MaxWithdrawal     decimal.Decimal `json:"maxWithdrawal"`
}

// DepositStatus описывает статус пополнения.
type DepositStatus string

const DepositStatusCompleted DepositStatus = "completed"

// Deposit описывает зачисление по внешней транзакции.
type Deposit struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId"`
	Status        DepositStatus   `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// WithdrawalStatus описывает статус заявки на вывод.
type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
)

// Withdrawal описывает заявку на вывод средств.
type Withdrawal struct {
	ID            int64            `json:"id"`
	UserID        int64            `json:"userId"`
	Amount        decimal.Decimal  `json:"amount"`
	WalletAddress string           `json:"walletAddress"`
	Status        WithdrawalStatus `json:"status"`
	RequestedAt   time.Time        `json:"requestedAt"`
	ProcessedAt   *time.Time       `json:"processedAt,omitempty"`
}

// WithdrawalAction описывает решение администратора по заявке.
type WithdrawalAction string

const (
	WithdrawalApprove WithdrawalAction = "approve"
	WithdrawalReject  WithdrawalAction = "reject"
)

// DrawStatus описывает статус розыгрыша.
type DrawStatus string

const (
	DrawStatusActive    DrawStatus = "active"
	DrawStatusCompleted DrawStatus = "completed"
	DrawStatusCancelled DrawStatus = "cancelled"
)

// Draw представляет один тираж лотереи.
type Draw struct {
	ID                int64           `json:"id"`
	StartDate         time.Time       `json:"startDate"`
	EndDate           time.Time       `json:"endDate"`
	Status            DrawStatus      `json:"status"`
	TotalTickets      int             `json:"totalTickets"`
	PrizePool         decimal.Decimal `json:"prizePool"`
	FirstPrizeWinner  *int64          `json:"firstPrizeWinner,omitempty"`
	SecondPrizeWinner *int64          `json:"secondPrizeWinner,omitempty"`
	ThirdPrizeWinner  *int64          `json:"thirdPrizeWinner,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// TicketType описывает вид билета из каталога.
type TicketType struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Color       string          `json:"color"`
	IsActive    bool            `json:"isActive"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// TicketTypeStats дополняет вид билета количеством проданных билетов.
type TicketTypeStats struct {
	TicketType
	TicketsSold int `json:"ticketsSold"`
}

// TicketStatus описывает статус билета.
type TicketStatus string

const (
	TicketStatusActive  TicketStatus = "active"
	TicketStatusExpired TicketStatus = "expired"
	TicketStatusWinner  TicketStatus = "winner"
)

// Ticket описывает купленный билет. PurchasePrice фиксирует цену на момент покупки.
type Ticket struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"userId"`
	DrawID        int64           `json:"drawId"`
	TicketTypeID  int64           `json:"ticketTypeId"`
	TicketNumber  string          `json:"ticketNumber"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Status        TicketStatus    `json:"status"`
	PurchasedAt   time.Time       `json:"purchasedAt"`
}

// TicketWithDraw дополняет билет сроками тиража и видом билета.
type TicketWithDraw struct {
	Ticket
	TicketTypeName string     `json:"ticketTypeName"`
	DrawStatus     DrawStatus `json:"drawStatus"`
	DrawEndDate    time.Time  `json:"drawEndDate"`
}

// TicketEntry описывает билет розыгрыша вместе с локацией владельца.
type TicketEntry struct {
	Ticket
	Location string
}

// Notification описывает уведомление пользователю или глобальное уведомление.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"userId,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsGlobal  bool      `json:"isGlobal"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// DashboardStats содержит агрегаты для панели администратора.
type DashboardStats struct {
	TotalUsers         int             `json:"totalUsers"`
	ActiveDraws        int             `json:"activeDraws"`
	CompletedDraws     int             `json:"completedDraws"`
	ActiveTickets      int             `json:"activeTickets"`
	PendingWithdrawals int             `json:"pendingWithdrawals"`
	TotalDeposits      decimal.Decimal `json:"totalDeposits"`
	TotalWithdrawals   decimal.Decimal `json:"totalWithdrawals"`
	TotalWalletBalance decimal.Decimal `json:"totalWalletBalance"`
}
