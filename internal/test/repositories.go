package test

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/payouts/internal/domain/errors"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
)

type balanceKey struct {
	userID      int64
	balanceType model.BalanceType
}

type memoryState struct {
	users       map[int64]model.User
	promotions  map[int64][]model.Promotion
	notes       map[int64][]string
	balances    map[balanceKey]decimal.Decimal
	ledger      []model.LedgerTransaction
	withdrawals map[uuid.UUID]model.Withdrawal
	order       []uuid.UUID
	outbox      []model.OutboxEvent
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		users:       make(map[int64]model.User, len(s.users)),
		promotions:  make(map[int64][]model.Promotion, len(s.promotions)),
		notes:       make(map[int64][]string, len(s.notes)),
		balances:    make(map[balanceKey]decimal.Decimal, len(s.balances)),
		ledger:      slices.Clone(s.ledger),
		withdrawals: make(map[uuid.UUID]model.Withdrawal, len(s.withdrawals)),
		order:       slices.Clone(s.order),
		outbox:      slices.Clone(s.outbox),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.promotions {
		out.promotions[k] = slices.Clone(v)
	}
	for k, v := range s.notes {
		out.notes[k] = slices.Clone(v)
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for k, v := range s.withdrawals {
		out.withdrawals[k] = v
	}
	return out
}

// MemoryStore is an in-memory Transactor with the same compare-and-set and
// rollback semantics as the PostgreSQL storage. A unit of work holds the
// store lock for its whole duration.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState

	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time

	// AppendErr makes ledger audit writes fail without touching balances.
	AppendErr error
	// CreateErr makes withdrawal creation fail.
	CreateErr error
	// TransitionErr is consulted before every transition.
	TransitionErr func(model.Transition) error
	// AdjustErr makes balance mutations fail.
	AdjustErr error
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{}.clone()}
}

func (m *MemoryStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MemoryStore) enter(inTx bool) func() {
	if inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// WithinUnitOfWork runs fn and restores the previous state when fn fails.
func (m *MemoryStore) WithinUnitOfWork(ctx context.Context, fn func(context.Context, repository.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx, &memoryUnit{store: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memoryUnit struct {
	store *MemoryStore
}

func (u *memoryUnit) Users() repository.UserRepository {
	return &memoryUsers{store: u.store, inTx: true}
}

func (u *memoryUnit) Ledger() repository.LedgerRepository {
	return &memoryLedger{store: u.store, inTx: true}
}

func (u *memoryUnit) Withdrawals() repository.WithdrawalRepository {
	return &memoryWithdrawals{store: u.store, inTx: true}
}

func (u *memoryUnit) Outbox() repository.OutboxRepository {
	return &memoryOutbox{store: u.store, inTx: true}
}

// Users returns a repository outside any unit of work.
func (m *MemoryStore) Users() repository.UserRepository { return &memoryUsers{store: m} }

func (m *MemoryStore) Ledger() repository.LedgerRepository { return &memoryLedger{store: m} }

func (m *MemoryStore) Withdrawals() repository.WithdrawalRepository {
	return &memoryWithdrawals{store: m}
}

func (m *MemoryStore) Outbox() repository.OutboxRepository { return &memoryOutbox{store: m} }

// PutUser stores or replaces u.
func (m *MemoryStore) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = u
}

// PutPromotion attaches p to its user.
func (m *MemoryStore) PutPromotion(p model.Promotion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.promotions[p.UserID] = append(m.state.promotions[p.UserID], p)
}

// SetBalance overwrites a balance without writing a ledger row.
func (m *MemoryStore) SetBalance(userID int64, balanceType model.BalanceType, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.balances[balanceKey{userID, balanceType}] = amount
}

// PutWithdrawal stores w as is, bypassing the state machine.
func (m *MemoryStore) PutWithdrawal(w model.Withdrawal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.withdrawals[w.ID]; !ok {
		m.state.order = append(m.state.order, w.ID)
	}
	m.state.withdrawals[w.ID] = w
}

// Withdrawal returns a copy of the stored record.
func (m *MemoryStore) Withdrawal(id uuid.UUID) (model.Withdrawal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.state.withdrawals[id]
	return w, ok
}

// AllWithdrawals returns records in creation order.
func (m *MemoryStore) AllWithdrawals() []model.Withdrawal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Withdrawal, 0, len(m.state.order))
	for _, id := range m.state.order {
		out = append(out, m.state.withdrawals[id])
	}
	return out
}

// LedgerRows returns every audit row for userID.
func (m *MemoryStore) LedgerRows(userID int64) []model.LedgerTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerTransaction
	for _, e := range m.state.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// BalanceOf reads a balance.
func (m *MemoryStore) BalanceOf(userID int64, balanceType model.BalanceType) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.balances[balanceKey{userID, balanceType}]
}

// Notes returns review notes written for userID.
func (m *MemoryStore) Notes(userID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.notes[userID])
}

// Events returns every outbox event in append order.
func (m *MemoryStore) Events() []model.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.outbox)
}

type memoryUsers struct {
	store *MemoryStore
	inTx  bool
}

func (r *memoryUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	defer r.store.enter(r.inTx)()
	u, ok := r.store.state.users[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) ActivePromotions(_ context.Context, userID int64) ([]model.Promotion, error) {
	defer r.store.enter(r.inTx)()
	var out []model.Promotion
	for _, p := range r.store.state.promotions[userID] {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryUsers) AddNote(_ context.Context, userID int64, note string) error {
	defer r.store.enter(r.inTx)()
	r.store.state.notes[userID] = append(r.store.state.notes[userID], note)
	return nil
}

func (r *memoryUsers) AddLifetimeWithdrawn(_ context.Context, userID int64, amount decimal.Decimal) error {
	defer r.store.enter(r.inTx)()
	u, ok := r.store.state.users[userID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	u.LifetimeWithdrawn = u.LifetimeWithdrawn.Add(amount)
	r.store.state.users[userID] = u
	return nil
}

func (r *memoryUsers) DisableWithdrawals(_ context.Context, userID int64) error {
	defer r.store.enter(r.inTx)()
	u, ok := r.store.state.users[userID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	u.WithdrawalsEnabled = false
	r.store.state.users[userID] = u
	return nil
}

type memoryLedger struct {
	store *MemoryStore
	inTx  bool
}

func (r *memoryLedger) Adjust(_ context.Context, userID int64, balanceType model.BalanceType, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	defer r.store.enter(r.inTx)()
	if r.store.AdjustErr != nil {
		return decimal.Zero, r.store.AdjustErr
	}
	key := balanceKey{userID, balanceType}
	next := r.store.state.balances[key].Add(delta)
	if delta.IsNegative() && next.IsNegative() && !allowNegative {
		return decimal.Zero, domainErrors.ErrInsufficientBalance
	}
	r.store.state.balances[key] = next
	return next, nil
}

func (r *memoryLedger) Append(_ context.Context, entry *model.LedgerTransaction) error {
	defer r.store.enter(r.inTx)()
	if r.store.AppendErr != nil {
		return r.store.AppendErr
	}
	r.store.state.ledger = append(r.store.state.ledger, *entry)
	return nil
}

func (r *memoryLedger) Balance(_ context.Context, userID int64, balanceType model.BalanceType) (decimal.Decimal, error) {
	defer r.store.enter(r.inTx)()
	return r.store.state.balances[balanceKey{userID, balanceType}], nil
}

func (r *memoryLedger) History(_ context.Context, userID int64, balanceType model.BalanceType) ([]model.LedgerTransaction, error) {
	defer r.store.enter(r.inTx)()
	var out []model.LedgerTransaction
	for _, e := range r.store.state.ledger {
		if e.UserID == userID && e.BalanceType == balanceType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryLedger) DepositsSince(_ context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	defer r.store.enter(r.inTx)()
	total := decimal.Zero
	for _, e := range r.store.state.ledger {
		if e.UserID == userID && e.TransactionType == model.TxDeposit && !e.CreatedAt.Before(since) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

type memoryWithdrawals struct {
	store *MemoryStore
	inTx  bool
}

func (r *memoryWithdrawals) Create(_ context.Context, w *model.Withdrawal) error {
	defer r.store.enter(r.inTx)()
	if r.store.CreateErr != nil {
		return r.store.CreateErr
	}
	if err := w.RequestFields.Validate(); err != nil {
		return err
	}
	if _, exists := r.store.state.withdrawals[w.ID]; exists {
		return domainErrors.ErrAlreadyExists
	}
	now := r.store.now()
	w.Status = model.StatusInitiated
	w.Attempts = 0
	w.CreatedAt = now
	w.UpdatedAt = now
	r.store.state.withdrawals[w.ID] = *w
	r.store.state.order = append(r.store.state.order, w.ID)
	return nil
}

func (r *memoryWithdrawals) GetByID(_ context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	defer r.store.enter(r.inTx)()
	w, ok := r.store.state.withdrawals[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &w, nil
}

func (r *memoryWithdrawals) Transition(_ context.Context, id uuid.UUID, t model.Transition) (*model.Withdrawal, error) {
	defer r.store.enter(r.inTx)()
	if !t.Allowed() {
		return nil, domainErrors.ErrInvalidTransition
	}
	if r.store.TransitionErr != nil {
		if err := r.store.TransitionErr(t); err != nil {
			return nil, err
		}
	}
	w, ok := r.store.state.withdrawals[id]
	if !ok || !slices.Contains(t.From, w.Status) {
		return nil, domainErrors.ErrStaleTransition
	}
	w.Status = t.To
	if t.Reason != nil {
		reason := *t.Reason
		w.Reason = &reason
	}
	if t.TransactionID != "" && w.TransactionID == nil {
		txID := t.TransactionID
		w.TransactionID = &txID
	}
	w.UpdatedAt = r.store.now()
	r.store.state.withdrawals[id] = w
	return &w, nil
}

func (r *memoryWithdrawals) Claim(_ context.Context, id uuid.UUID) (*model.Withdrawal, bool, error) {
	defer r.store.enter(r.inTx)()
	w, ok := r.store.state.withdrawals[id]
	if !ok || w.Status != model.StatusPending {
		return nil, false, nil
	}
	w.Status = model.StatusProcessing
	w.UpdatedAt = r.store.now()
	r.store.state.withdrawals[id] = w
	return &w, true, nil
}

func (r *memoryWithdrawals) RecordFailure(_ context.Context, id uuid.UUID, observedAttempts, retryLimit int) (*model.Withdrawal, error) {
	defer r.store.enter(r.inTx)()
	w, ok := r.store.state.withdrawals[id]
	if !ok || w.Status != model.StatusProcessing || w.Attempts != observedAttempts {
		return nil, domainErrors.ErrStaleTransition
	}
	w.Attempts = observedAttempts + 1
	w.Status = model.StatusAfterFailure(w.Attempts, retryLimit)
	w.UpdatedAt = r.store.now()
	r.store.state.withdrawals[id] = w
	return &w, nil
}

func (r *memoryWithdrawals) ListPending(_ context.Context, rails []model.Rail, limit int) ([]model.Withdrawal, error) {
	defer r.store.enter(r.inTx)()
	var out []model.Withdrawal
	for _, id := range r.store.state.order {
		w := r.store.state.withdrawals[id]
		if w.Status == model.StatusPending && slices.Contains(rails, w.Plugin) {
			out = append(out, w)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Withdrawal) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryWithdrawals) ListByStatus(_ context.Context, status model.WithdrawalStatus, limit int) ([]model.Withdrawal, error) {
	defer r.store.enter(r.inTx)()
	var out []model.Withdrawal
	for _, id := range r.store.state.order {
		if w := r.store.state.withdrawals[id]; w.Status == status {
			out = append(out, w)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryWithdrawals) ResetStale(_ context.Context, olderThan time.Duration) ([]uuid.UUID, error) {
	defer r.store.enter(r.inTx)()
	now := r.store.now()
	cutoff := now.Add(-olderThan)
	var ids []uuid.UUID
	for _, id := range r.store.state.order {
		w := r.store.state.withdrawals[id]
		if (w.Status == model.StatusProcessing || w.Status == model.StatusReprocessing) && w.UpdatedAt.Before(cutoff) {
			w.Status = model.StatusPending
			w.UpdatedAt = now
			r.store.state.withdrawals[id] = w
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memoryWithdrawals) SumSince(_ context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	defer r.store.enter(r.inTx)()
	total := decimal.Zero
	for _, w := range r.store.state.withdrawals {
		if w.UserID != userID || w.CreatedAt.Before(since) {
			continue
		}
		switch w.Status {
		case model.StatusFailed, model.StatusDeclined, model.StatusCancelled:
			continue
		}
		total = total.Add(w.TotalValue)
	}
	return total, nil
}

type memoryOutbox struct {
	store *MemoryStore
	inTx  bool
}

func (r *memoryOutbox) Append(_ context.Context, event model.OutboxEvent) error {
	defer r.store.enter(r.inTx)()
	r.store.state.outbox = append(r.store.state.outbox, event)
	return nil
}

func (r *memoryOutbox) Drain(ctx context.Context, limit int, publish func(context.Context, []model.OutboxEvent) error) (int, error) {
	defer r.store.enter(r.inTx)()
	var (
		batch []model.OutboxEvent
		idx   []int
	)
	for i, e := range r.store.state.outbox {
		if e.PublishedAt != nil {
			continue
		}
		if limit > 0 && len(batch) == limit {
			break
		}
		batch = append(batch, e)
		idx = append(idx, i)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := publish(ctx, batch); err != nil {
		return 0, err
	}
	now := r.store.now()
	for _, i := range idx {
		published := now
		r.store.state.outbox[i].PublishedAt = &published
	}
	return len(batch), nil
}

var _ repository.Transactor = (*MemoryStore)(nil)
