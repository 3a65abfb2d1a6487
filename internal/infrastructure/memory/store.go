// Package memory is a process-local implementation of domain.Store. It has no
// real transactions, so partner-scoped units of work are serialized with a
// per-partner mutex and applied under the store lock with an undo log.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu            sync.RWMutex
	partners      map[string]*domain.PartnerNode
	partnerByUser map[string]string
	partnerByCode map[string]string
	children      map[string][]string

	commissions   []*domain.CommissionEntry
	commissionIDs map[string]struct{}

	withdrawals     map[string]*domain.WithdrawalRequest
	withdrawalOrder []string
	references      map[string]string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

var _ domain.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		partners:      make(map[string]*domain.PartnerNode),
		partnerByUser: make(map[string]string),
		partnerByCode: make(map[string]string),
		children:      make(map[string][]string),
		commissionIDs: make(map[string]struct{}),
		withdrawals:   make(map[string]*domain.WithdrawalRequest),
		references:    make(map[string]string),
		locks:         make(map[string]*sync.Mutex),
	}
}

func (s *Store) partnerLock(partnerID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[partnerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[partnerID] = l
	}
	return l
}

func (s *Store) WithinPartnerTx(ctx context.Context, partnerID string, fn func(tx domain.Store) error) error {
	l := s.partnerLock(partnerID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.NewTransientError(err)
	}
	tx := newTxStore(s)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) ReadSnapshot(ctx context.Context, fn func(tx domain.Store) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransientError(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&snapshot{s: s})
}

// ---- public single-statement operations ----

func (s *Store) FindPartnerByID(_ context.Context, partnerID string) (*domain.PartnerNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partnerLocked(partnerID)
}

func (s *Store) FindPartnerByUser(_ context.Context, userID string) (*domain.PartnerNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partnerByUserLocked(userID)
}

func (s *Store) FindPartnerByCode(_ context.Context, code string) (*domain.PartnerNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partnerByCodeLocked(code)
}

func (s *Store) FindChildren(_ context.Context, partnerID string) ([]*domain.PartnerNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(partnerID), nil
}

func (s *Store) InsertPartner(_ context.Context, partner *domain.PartnerNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.insertPartnerLocked(partner)
	return err
}

func (s *Store) ActivatePartner(_ context.Context, partnerID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.activatePartnerLocked(partnerID, code)
	return err
}

func (s *Store) DebitPartner(_ context.Context, partnerID string, amount, expectedTotal decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.debitPartnerLocked(partnerID, amount, expectedTotal)
	return err
}

func (s *Store) SumCommissions(_ context.Context, filter domain.CommissionFilter) (domain.CommissionTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumCommissionsLocked(filter), nil
}

func (s *Store) AppendCommission(_ context.Context, entry *domain.CommissionEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added, _ := s.appendCommissionLocked(entry)
	return added, nil
}

func (s *Store) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.insertWithdrawalLocked(w)
	return err
}

func (s *Store) GetWithdrawal(_ context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.withdrawalLocked(withdrawalID)
}

func (s *Store) UpdateWithdrawal(_ context.Context, withdrawalID string, decision domain.WithdrawalDecision, expected domain.WithdrawalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.updateWithdrawalLocked(withdrawalID, decision, expected)
	return err
}

func (s *Store) SumWithdrawals(_ context.Context, partnerID string, statuses []domain.WithdrawalStatus) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumWithdrawalsLocked(partnerID, statuses), nil
}

func (s *Store) ListWithdrawals(_ context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listWithdrawalsLocked(filter), nil
}

func (s *Store) WithdrawalBacklog(_ context.Context, status domain.WithdrawalStatus, staleBefore time.Time) (domain.WithdrawalBacklog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return backlogOf(s.listWithdrawalsLocked(domain.WithdrawalFilter{Status: status}), staleBefore), nil
}

// ---- lock-held helpers; callers hold s.mu ----

func (s *Store) partnerLocked(partnerID string) (*domain.PartnerNode, error) {
	p, ok := s.partners[partnerID]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	return p.Clone(), nil
}

func (s *Store) partnerByUserLocked(userID string) (*domain.PartnerNode, error) {
	id, ok := s.partnerByUser[userID]
	if !ok {
		return nil, domain.ErrNoHierarchyRecord
	}
	return s.partnerLocked(id)
}

func (s *Store) partnerByCodeLocked(code string) (*domain.PartnerNode, error) {
	id, ok := s.partnerByCode[code]
	if !ok {
		return nil, domain.ErrReferralCodeNotFound
	}
	return s.partnerLocked(id)
}

func (s *Store) childrenLocked(partnerID string) []*domain.PartnerNode {
	ids := s.children[partnerID]
	out := make([]*domain.PartnerNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.partners[id].Clone())
	}
	return out
}

func (s *Store) sumCommissionsLocked(filter domain.CommissionFilter) domain.CommissionTotals {
	totals := domain.CommissionTotals{Amount: decimal.Zero, Volume: decimal.Zero}
	for _, e := range s.commissions {
		if !matchCommission(e, filter) {
			continue
		}
		totals.Amount = totals.Amount.Add(e.Amount)
		totals.Volume = totals.Volume.Add(e.Volume)
	}
	return totals
}

func (s *Store) withdrawalLocked(withdrawalID string) (*domain.WithdrawalRequest, error) {
	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return nil, domain.ErrWithdrawalNotFound
	}
	return w.Clone(), nil
}

func (s *Store) sumWithdrawalsLocked(partnerID string, statuses []domain.WithdrawalStatus) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range s.withdrawalOrder {
		w := s.withdrawals[id]
		if w.PartnerID == partnerID && hasStatus(statuses, w.Status) {
			sum = sum.Add(w.Amount)
		}
	}
	return sum
}

func (s *Store) listWithdrawalsLocked(filter domain.WithdrawalFilter) []*domain.WithdrawalRequest {
	var out []*domain.WithdrawalRequest
	for i := len(s.withdrawalOrder) - 1; i >= 0; i-- {
		w := s.withdrawals[s.withdrawalOrder[i]]
		if !matchWithdrawal(w, filter) {
			continue
		}
		out = append(out, w.Clone())
		if !filter.OldestFirst && filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return orderAndLimit(out, filter)
}

type undoFunc func()

func (s *Store) insertPartnerLocked(partner *domain.PartnerNode) (undoFunc, error) {
	if _, ok := s.partnerByUser[partner.OwnerUserID]; ok {
		return nil, domain.ErrAlreadyEnrolled
	}
	if partner.ReferralCode != "" {
		if _, ok := s.partnerByCode[partner.ReferralCode]; ok {
			return nil, domain.ErrDuplicateCode
		}
	}
	if partner.ParentID != nil {
		if _, ok := s.partners[*partner.ParentID]; !ok {
			return nil, domain.ErrPartnerNotFound.Withf("parent %s", *partner.ParentID)
		}
	}
	cp := partner.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.partners[cp.ID] = cp
	s.partnerByUser[cp.OwnerUserID] = cp.ID
	if cp.ReferralCode != "" {
		s.partnerByCode[cp.ReferralCode] = cp.ID
	}
	parentKey := ""
	if cp.ParentID != nil {
		parentKey = *cp.ParentID
		s.children[parentKey] = append(s.children[parentKey], cp.ID)
	}
	return func() {
		delete(s.partners, cp.ID)
		delete(s.partnerByUser, cp.OwnerUserID)
		if cp.ReferralCode != "" {
			delete(s.partnerByCode, cp.ReferralCode)
		}
		if cp.ParentID != nil {
			ids := s.children[parentKey]
			s.children[parentKey] = ids[:len(ids)-1]
		}
	}, nil
}

func (s *Store) activatePartnerLocked(partnerID, code string) (undoFunc, error) {
	p, ok := s.partners[partnerID]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	if p.Status != domain.PartnerPending || p.ReferralCode != "" {
		return nil, domain.ErrStaleStatus
	}
	if _, taken := s.partnerByCode[code]; taken {
		return nil, domain.ErrDuplicateCode
	}
	prev := p.Clone()
	p.ReferralCode = code
	p.Status = domain.PartnerActive
	p.UpdatedAt = time.Now().UTC()
	s.partnerByCode[code] = partnerID
	return func() {
		delete(s.partnerByCode, code)
		s.partners[partnerID] = prev
	}, nil
}

func (s *Store) debitPartnerLocked(partnerID string, amount, expectedTotal decimal.Decimal) (undoFunc, error) {
	p, ok := s.partners[partnerID]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	if !p.WithdrawnTotal.Equal(expectedTotal) {
		return nil, domain.ErrStaleStatus.Withf("partner %s debit total moved", partnerID)
	}
	prev := p.Clone()
	p.WithdrawnTotal = p.WithdrawnTotal.Add(amount)
	p.UpdatedAt = time.Now().UTC()
	return func() {
		s.partners[partnerID] = prev
	}, nil
}

func (s *Store) appendCommissionLocked(entry *domain.CommissionEntry) (bool, undoFunc) {
	if _, ok := s.commissionIDs[entry.ID]; ok {
		return false, func() {}
	}
	cp := *entry
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.commissions = append(s.commissions, &cp)
	s.commissionIDs[cp.ID] = struct{}{}
	return true, func() {
		s.commissions = s.commissions[:len(s.commissions)-1]
		delete(s.commissionIDs, cp.ID)
	}
}

func (s *Store) insertWithdrawalLocked(w *domain.WithdrawalRequest) (undoFunc, error) {
	if _, ok := s.references[w.Reference]; ok {
		return nil, domain.ErrDuplicateReference
	}
	cp := w.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.withdrawals[cp.ID] = cp
	s.withdrawalOrder = append(s.withdrawalOrder, cp.ID)
	s.references[cp.Reference] = cp.ID
	return func() {
		delete(s.withdrawals, cp.ID)
		delete(s.references, cp.Reference)
		s.withdrawalOrder = s.withdrawalOrder[:len(s.withdrawalOrder)-1]
	}, nil
}

func (s *Store) updateWithdrawalLocked(withdrawalID string, decision domain.WithdrawalDecision, expected domain.WithdrawalStatus) (undoFunc, error) {
	w, ok := s.withdrawals[withdrawalID]
	if !ok {
		return nil, domain.ErrWithdrawalNotFound
	}
	if w.Status != expected {
		return nil, domain.ErrStaleStatus.Withf("withdrawal %s is %s", withdrawalID, w.Status)
	}
	prev := w.Clone()
	s.withdrawals[withdrawalID] = applyDecision(w.Clone(), decision)
	return func() {
		s.withdrawals[withdrawalID] = prev
	}, nil
}

func applyDecision(w *domain.WithdrawalRequest, d domain.WithdrawalDecision) *domain.WithdrawalRequest {
	reviewedAt := d.ReviewedAt
	w.Status = d.Status
	w.ReviewerID = d.ReviewerID
	w.ReviewedAt = &reviewedAt
	w.RejectionReason = d.RejectionReason
	if d.Notes != "" {
		w.Notes = d.Notes
	}
	if d.ExternalTransactionID != "" {
		w.ExternalTransactionID = d.ExternalTransactionID
	}
	w.UpdatedAt = reviewedAt
	return w
}

func matchCommission(e *domain.CommissionEntry, filter domain.CommissionFilter) bool {
	if filter.PartnerID != "" && e.PartnerID != filter.PartnerID {
		return false
	}
	if filter.SourceUserID != "" && e.SourceUserID != filter.SourceUserID {
		return false
	}
	return true
}

func matchWithdrawal(w *domain.WithdrawalRequest, filter domain.WithdrawalFilter) bool {
	if filter.PartnerID != "" && w.PartnerID != filter.PartnerID {
		return false
	}
	if filter.Status != "" && w.Status != filter.Status {
		return false
	}
	if !filter.CreatedBefore.IsZero() && !w.CreatedAt.Before(filter.CreatedBefore) {
		return false
	}
	return true
}

// orderAndLimit takes a newest-first list and applies the filter's ordering
// and limit.
func orderAndLimit(list []*domain.WithdrawalRequest, filter domain.WithdrawalFilter) []*domain.WithdrawalRequest {
	if filter.OldestFirst {
		slices.SortStableFunc(list, func(a, b *domain.WithdrawalRequest) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list
}

func backlogOf(list []*domain.WithdrawalRequest, staleBefore time.Time) domain.WithdrawalBacklog {
	var b domain.WithdrawalBacklog
	for _, w := range list {
		b.Count++
		if w.CreatedAt.Before(staleBefore) {
			b.StaleCount++
		}
		if b.OldestCreatedAt == nil || w.CreatedAt.Before(*b.OldestCreatedAt) {
			at := w.CreatedAt
			b.OldestCreatedAt = &at
		}
	}
	return b
}

func hasStatus(statuses []domain.WithdrawalStatus, status domain.WithdrawalStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
