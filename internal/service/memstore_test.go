package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/settings"
)

// memState хранит содержимое хранилища в памяти.
type memState struct {
	users       map[int64]model.User
	wallets     map[int64]model.Wallet
	deposits    []model.Deposit
	withdrawals map[int64]model.Withdrawal
	draws       map[int64]model.Draw
	ticketTypes map[int64]model.TicketType
	tickets     []model.Ticket
	serial      int64
	nextID      int64
}

func (s *memState) clone() *memState {
	c := &memState{
		users:       make(map[int64]model.User, len(s.users)),
		wallets:     make(map[int64]model.Wallet, len(s.wallets)),
		deposits:    append([]model.Deposit(nil), s.deposits...),
		withdrawals: make(map[int64]model.Withdrawal, len(s.withdrawals)),
		draws:       make(map[int64]model.Draw, len(s.draws)),
		ticketTypes: make(map[int64]model.TicketType, len(s.ticketTypes)),
		tickets:     append([]model.Ticket(nil), s.tickets...),
		serial:      s.serial,
		nextID:      s.nextID,
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.draws {
		c.draws[k] = v
	}
	for k, v := range s.ticketTypes {
		c.ticketTypes[k] = v
	}
	return c
}

// memStore реализует Store и часть Repository в памяти. Транзакции выполняются
// строго по очереди; при ошибке состояние откатывается к снимку.
type memStore struct {
	Repository

	mu            sync.Mutex
	state         *memState
	txs           int
	notifications []model.Notification
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			users:       map[int64]model.User{},
			wallets:     map[int64]model.Wallet{},
			withdrawals: map[int64]model.Withdrawal{},
			draws:       map[int64]model.Draw{},
			ticketTypes: map[int64]model.TicketType{},
		},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(repository.Ledger) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs++
	snapshot := m.state.clone()
	if err := fn(&memLedger{s: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

// addUser создаёт пользователя с кошельком напрямую, минуя сервис.
func (m *memStore) addUser(location string, referredBy *int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id()
	m.state.users[id] = model.User{
		ID:           id,
		Username:     fmt.Sprintf("user%d", id),
		Location:     location,
		Role:         model.RoleUser,
		ReferralCode: fmt.Sprintf("REF%d", id),
		ReferredBy:   referredBy,
	}
	m.state.wallets[id] = model.Wallet{UserID: id, DepositAddress: "addr"}
	return id
}

func (m *memStore) addTicketType(price int64, active bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id()
	m.state.ticketTypes[id] = model.TicketType{
		ID:       id,
		Name:     fmt.Sprintf("type%d", id),
		Price:    decimal.NewFromInt(price),
		IsActive: active,
	}
	return id
}

func (m *memStore) addDraw(start, end time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.id()
	m.state.draws[id] = model.Draw{ID: id, StartDate: start, EndDate: end, Status: model.DrawStatusActive}
	return id
}

func (m *memStore) setBalance(userID int64, balance, deposited, referral int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.state.wallets[userID]
	w.Balance = decimal.NewFromInt(balance)
	w.TotalDeposited = decimal.NewFromInt(deposited)
	w.ReferralEarnings = decimal.NewFromInt(referral)
	m.state.wallets[userID] = w
}

func (m *memStore) wallet(userID int64) model.Wallet {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.wallets[userID]
}

func (m *memStore) user(userID int64) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[userID]
}

func (m *memStore) draw(id int64) model.Draw {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.draws[id]
}

func (m *memStore) drawList() []model.Draw {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]model.Draw, 0, len(m.state.draws))
	for _, d := range m.state.draws {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (m *memStore) ticketList() []model.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Ticket(nil), m.state.tickets...)
}

func (m *memStore) depositCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.deposits)
}

// Методы Repository, которые нужны тестам.

func (m *memStore) GetWalletView(ctx context.Context, userID int64) (*model.WalletView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.state.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	u := m.state.users[userID]
	return &model.WalletView{Wallet: w, DepositCount: u.DepositCount, SurpriseActivated: u.SurpriseActivated}, nil
}

func (m *memStore) GetCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memLedger{s: m.state}).currentDraw(now), nil
}

func (m *memStore) GetDrawHistory(ctx context.Context, limit int) ([]model.Draw, error) {
	var res []model.Draw
	for _, d := range m.drawList() {
		if d.Status == model.DrawStatusCompleted {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EndDate.After(res[j].EndDate) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type memLedger struct {
	s *memState
}

func (l *memLedger) newID() int64 {
	l.s.nextID++
	return l.s.nextID
}

func (l *memLedger) LockUser(ctx context.Context, userID int64) (*model.User, error) {
	u, ok := l.s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (l *memLedger) UpdateUserDeposits(ctx context.Context, userID int64, depositCount int, surpriseActivated bool) error {
	u := l.s.users[userID]
	u.DepositCount = depositCount
	u.SurpriseActivated = u.SurpriseActivated || surpriseActivated
	l.s.users[userID] = u
	return nil
}

func (l *memLedger) LockWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	w, ok := l.s.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	return &w, nil
}

func (l *memLedger) AdjustWallet(ctx context.Context, userID int64, d model.WalletDelta) (*model.Wallet, error) {
	w, ok := l.s.wallets[userID]
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	w.Balance = w.Balance.Add(d.Balance)
	w.TotalDeposited = w.TotalDeposited.Add(d.TotalDeposited)
	w.TotalWithdrawn = w.TotalWithdrawn.Add(d.TotalWithdrawn)
	w.ReferralEarnings = w.ReferralEarnings.Add(d.ReferralEarnings)
	if w.Balance.IsNegative() {
		return nil, repository.ErrInsufficientFunds
	}
	l.s.wallets[userID] = w
	return &w, nil
}

func (l *memLedger) DepositExists(ctx context.Context, transactionID string) (bool, error) {
	for _, d := range l.s.deposits {
		if d.TransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (l *memLedger) CreateDeposit(ctx context.Context, d *model.Deposit) error {
	if ok, _ := l.DepositExists(ctx, d.TransactionID); ok {
		return repository.ErrDuplicateTransaction
	}
	d.ID = l.newID()
	d.CreatedAt = time.Now()
	l.s.deposits = append(l.s.deposits, *d)
	return nil
}

func (l *memLedger) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	w.ID = l.newID()
	w.RequestedAt = time.Now()
	l.s.withdrawals[w.ID] = *w
	return nil
}

func (l *memLedger) LockWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, ok := l.s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (l *memLedger) FinalizeWithdrawal(ctx context.Context, id int64, status model.WithdrawalStatus, processedAt time.Time) error {
	w := l.s.withdrawals[id]
	if w.Status != model.WithdrawalStatusPending {
		return fmt.Errorf("finalize withdrawal %d: no pending row", id)
	}
	w.Status = status
	w.ProcessedAt = &processedAt
	l.s.withdrawals[id] = w
	return nil
}

func (l *memLedger) GetTicketType(ctx context.Context, id int64) (*model.TicketType, error) {
	tt, ok := l.s.ticketTypes[id]
	if !ok {
		return nil, repository.ErrTicketTypeNotFound
	}
	return &tt, nil
}

func (l *memLedger) NextTicketSerial(ctx context.Context) (int64, error) {
	l.s.serial++
	return l.s.serial, nil
}

func (l *memLedger) CreateTicket(ctx context.Context, t *model.Ticket) error {
	for _, existing := range l.s.tickets {
		if existing.TicketNumber == t.TicketNumber {
			return fmt.Errorf("duplicate ticket number %s", t.TicketNumber)
		}
	}
	t.ID = l.newID()
	t.PurchasedAt = time.Now()
	l.s.tickets = append(l.s.tickets, *t)
	return nil
}

func (l *memLedger) currentDraw(now time.Time) *model.Draw {
	for _, d := range l.s.draws {
		if d.Status == model.DrawStatusActive && d.EndDate.After(now) {
			return &d
		}
	}
	return nil
}

func (l *memLedger) LockCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error) {
	return l.currentDraw(now), nil
}

func (l *memLedger) ActiveDrawExists(ctx context.Context, now time.Time) (bool, error) {
	return l.currentDraw(now) != nil, nil
}

func (l *memLedger) CreateDraw(ctx context.Context, d *model.Draw) error {
	d.ID = l.newID()
	d.CreatedAt = time.Now()
	l.s.draws[d.ID] = *d
	return nil
}

func (l *memLedger) AddDrawSales(ctx context.Context, drawID int64, tickets int, amount decimal.Decimal) error {
	d := l.s.draws[drawID]
	d.TotalTickets += tickets
	d.PrizePool = d.PrizePool.Add(amount)
	l.s.draws[drawID] = d
	return nil
}

func (l *memLedger) LockExpiredDraws(ctx context.Context, now time.Time) ([]model.Draw, error) {
	var res []model.Draw
	for _, d := range l.s.draws {
		if d.Status == model.DrawStatusActive && !d.EndDate.After(now) {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].EndDate.Before(res[j].EndDate) })
	return res, nil
}

func (l *memLedger) DrawTickets(ctx context.Context, drawID int64) ([]model.TicketEntry, error) {
	var res []model.TicketEntry
	for _, t := range l.s.tickets {
		if t.DrawID == drawID && t.Status == model.TicketStatusActive {
			res = append(res, model.TicketEntry{Ticket: t, Location: l.s.users[t.UserID].Location})
		}
	}
	return res, nil
}

func (l *memLedger) CancelDraw(ctx context.Context, drawID int64) error {
	d := l.s.draws[drawID]
	d.Status = model.DrawStatusCancelled
	l.s.draws[drawID] = d
	return nil
}

func (l *memLedger) CompleteDraw(ctx context.Context, drawID int64, winners [3]*int64) error {
	d := l.s.draws[drawID]
	d.Status = model.DrawStatusCompleted
	d.FirstPrizeWinner, d.SecondPrizeWinner, d.ThirdPrizeWinner = winners[0], winners[1], winners[2]
	l.s.draws[drawID] = d
	return nil
}

func (l *memLedger) SettleTickets(ctx context.Context, drawID int64, winningTicketIDs []int64) error {
	won := make(map[int64]bool, len(winningTicketIDs))
	for _, id := range winningTicketIDs {
		won[id] = true
	}
	for i, t := range l.s.tickets {
		if t.DrawID != drawID || t.Status != model.TicketStatusActive {
			continue
		}
		if won[t.ID] {
			l.s.tickets[i].Status = model.TicketStatusWinner
		} else {
			l.s.tickets[i].Status = model.TicketStatusExpired
		}
	}
	return nil
}

// staticSettings отдаёт фиксированный набор настроек.
type staticSettings struct {
	values map[string]string
}

func (s *staticSettings) Current(ctx context.Context) (settings.Lottery, error) {
	return settings.Parse(s.values), nil
}

func (s *staticSettings) Values(ctx context.Context) (map[string]string, error) {
	return settings.Effective(s.values), nil
}

func (s *staticSettings) Update(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if err := settings.Validate(k, v); err != nil {
			return err
		}
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []model.Notification
}

func (n *recordingNotifier) Notify(ns ...model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, ns...)
}

func (n *recordingNotifier) byType(typ string) []model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var res []model.Notification
	for _, x := range n.got {
		if x.Type == typ {
			res = append(res, x)
		}
	}
	return res
}

type testEnv struct {
	svc      *Service
	store    *memStore
	settings *staticSettings
	notifier *recordingNotifier
	now      time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:    newMemStore(),
		settings: &staticSettings{values: map[string]string{}},
		notifier: &recordingNotifier{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(env.store, env.store, env.settings, env.notifier, nil, nil)
	env.svc.now = func() time.Time { return env.now }
	env.svc.shuffle = func([]model.TicketEntry) {}
	return env
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (m *memStore) CreateUser(ctx context.Context, u *model.User, referralCode, depositAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.state.users {
		if existing.Username == u.Username {
			return repository.ErrUserExists
		}
	}
	if referralCode != "" {
		var found bool
		for _, existing := range m.state.users {
			if existing.ReferralCode == referralCode {
				id := existing.ID
				u.ReferredBy = &id
				found = true
				break
			}
		}
		if !found {
			return repository.ErrReferralCodeNotFound
		}
	}

	u.ID = m.id()
	m.state.users[u.ID] = *u
	m.state.wallets[u.ID] = model.Wallet{UserID: u.ID, DepositAddress: depositAddress}
	return nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.state.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.state.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memStore) CreateTicketType(ctx context.Context, tt *model.TicketType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tt.ID = m.id()
	m.state.ticketTypes[tt.ID] = *tt
	return nil
}

func (m *memStore) ListDraws(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Draw, error) {
	var res []model.Draw
	for _, d := range m.drawList() {
		keep := true
		for _, f := range filters {
			if f.Field != repository.FilterDrawStatus {
				return nil, repository.ErrUnsupportedFilter
			}
			keep = keep && string(d.Status) == f.Value
		}
		if keep {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartDate.After(res[j].StartDate) })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *memStore) addNotification(n model.Notification) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = m.id()
	m.notifications = append(m.notifications, n)
	return n.ID
}

func (m *memStore) ListAllNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]model.Notification, 0, len(m.notifications))
	for i := len(m.notifications) - 1; i >= 0; i-- {
		res = append(res, m.notifications[i])
	}
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (m *memStore) deleteNotification(match func(model.Notification) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, n := range m.notifications {
		if match(n) {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

func (m *memStore) DeleteNotification(ctx context.Context, userID, id int64) error {
	return m.deleteNotification(func(n model.Notification) bool {
		return n.ID == id && n.UserID != nil && *n.UserID == userID
	})
}

func (m *memStore) DeleteNotificationByID(ctx context.Context, id int64) error {
	return m.deleteNotification(func(n model.Notification) bool { return n.ID == id })
}
