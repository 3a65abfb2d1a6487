package memory

import (
	"context"
	"errors"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/shopspring/decimal"
)

var errReadOnly = errors.New("memory: write inside read snapshot")

type stagedOp func(s *Store) (undoFunc, error)

// txStore stages writes over the base store. Reads see staged rows first.
// commit replays the staged ops under the store write lock and undoes them
// all if any of them fails.
type txStore struct {
	base *Store

	partners    map[string]*domain.PartnerNode
	newPartners []*domain.PartnerNode
	withdrawals map[string]*domain.WithdrawalRequest
	inserted    []*domain.WithdrawalRequest
	commissions []*domain.CommissionEntry

	ops []stagedOp
}

func newTxStore(base *Store) *txStore {
	return &txStore{
		base:        base,
		partners:    make(map[string]*domain.PartnerNode),
		withdrawals: make(map[string]*domain.WithdrawalRequest),
	}
}

func (t *txStore) commit() error {
	if len(t.ops) == 0 {
		return nil
	}
	t.base.mu.Lock()
	defer t.base.mu.Unlock()

	undo := make([]undoFunc, 0, len(t.ops))
	for _, op := range t.ops {
		u, err := op(t.base)
		if err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				undo[i]()
			}
			return err
		}
		undo = append(undo, u)
	}
	return nil
}

func (t *txStore) WithinPartnerTx(_ context.Context, _ string, fn func(tx domain.Store) error) error {
	return fn(t)
}

func (t *txStore) ReadSnapshot(_ context.Context, fn func(tx domain.Store) error) error {
	return fn(t)
}

func (t *txStore) FindPartnerByID(ctx context.Context, partnerID string) (*domain.PartnerNode, error) {
	if p, ok := t.partners[partnerID]; ok {
		return p.Clone(), nil
	}
	for _, p := range t.newPartners {
		if p.ID == partnerID {
			return p.Clone(), nil
		}
	}
	return t.base.FindPartnerByID(ctx, partnerID)
}

func (t *txStore) FindPartnerByUser(ctx context.Context, userID string) (*domain.PartnerNode, error) {
	for _, p := range t.newPartners {
		if p.OwnerUserID == userID {
			return p.Clone(), nil
		}
	}
	p, err := t.base.FindPartnerByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return t.overlayPartner(p), nil
}

func (t *txStore) FindPartnerByCode(ctx context.Context, code string) (*domain.PartnerNode, error) {
	for _, p := range t.partners {
		if p.ReferralCode == code {
			return p.Clone(), nil
		}
	}
	for _, p := range t.newPartners {
		if p.ReferralCode == code {
			return p.Clone(), nil
		}
	}
	p, err := t.base.FindPartnerByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return t.overlayPartner(p), nil
}

func (t *txStore) FindChildren(ctx context.Context, partnerID string) ([]*domain.PartnerNode, error) {
	children, err := t.base.FindChildren(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	for i, c := range children {
		children[i] = t.overlayPartner(c)
	}
	for _, p := range t.newPartners {
		if p.ParentID != nil && *p.ParentID == partnerID {
			children = append(children, p.Clone())
		}
	}
	return children, nil
}

func (t *txStore) overlayPartner(p *domain.PartnerNode) *domain.PartnerNode {
	if staged, ok := t.partners[p.ID]; ok {
		return staged.Clone()
	}
	return p
}

func (t *txStore) InsertPartner(ctx context.Context, partner *domain.PartnerNode) error {
	if _, err := t.FindPartnerByUser(ctx, partner.OwnerUserID); err == nil {
		return domain.ErrAlreadyEnrolled
	}
	if partner.ReferralCode != "" {
		if _, err := t.FindPartnerByCode(ctx, partner.ReferralCode); err == nil {
			return domain.ErrDuplicateCode
		}
	}
	cp := partner.Clone()
	t.newPartners = append(t.newPartners, cp)
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		return s.insertPartnerLocked(cp)
	})
	return nil
}

func (t *txStore) ActivatePartner(ctx context.Context, partnerID, code string) error {
	p, err := t.FindPartnerByID(ctx, partnerID)
	if err != nil {
		return err
	}
	if p.Status != domain.PartnerPending || p.ReferralCode != "" {
		return domain.ErrStaleStatus
	}
	if _, err := t.FindPartnerByCode(ctx, code); err == nil {
		return domain.ErrDuplicateCode
	}
	p.ReferralCode = code
	p.Status = domain.PartnerActive
	t.partners[partnerID] = p
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		return s.activatePartnerLocked(partnerID, code)
	})
	return nil
}

func (t *txStore) DebitPartner(ctx context.Context, partnerID string, amount, expectedTotal decimal.Decimal) error {
	p, err := t.FindPartnerByID(ctx, partnerID)
	if err != nil {
		return err
	}
	if !p.WithdrawnTotal.Equal(expectedTotal) {
		return domain.ErrStaleStatus.Withf("partner %s debit total moved", partnerID)
	}
	p.WithdrawnTotal = p.WithdrawnTotal.Add(amount)
	t.partners[partnerID] = p
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		return s.debitPartnerLocked(partnerID, amount, expectedTotal)
	})
	return nil
}

func (t *txStore) SumCommissions(ctx context.Context, filter domain.CommissionFilter) (domain.CommissionTotals, error) {
	totals, err := t.base.SumCommissions(ctx, filter)
	if err != nil {
		return totals, err
	}
	for _, e := range t.commissions {
		if matchCommission(e, filter) {
			totals.Amount = totals.Amount.Add(e.Amount)
			totals.Volume = totals.Volume.Add(e.Volume)
		}
	}
	return totals, nil
}

func (t *txStore) AppendCommission(_ context.Context, entry *domain.CommissionEntry) (bool, error) {
	for _, e := range t.commissions {
		if e.ID == entry.ID {
			return false, nil
		}
	}
	t.base.mu.RLock()
	_, exists := t.base.commissionIDs[entry.ID]
	t.base.mu.RUnlock()
	if exists {
		return false, nil
	}
	cp := *entry
	t.commissions = append(t.commissions, &cp)
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		_, undo := s.appendCommissionLocked(&cp)
		return undo, nil
	})
	return true, nil
}

func (t *txStore) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	for _, staged := range t.inserted {
		if staged.Reference == w.Reference {
			return domain.ErrDuplicateReference
		}
	}
	t.base.mu.RLock()
	_, exists := t.base.references[w.Reference]
	t.base.mu.RUnlock()
	if exists {
		return domain.ErrDuplicateReference
	}
	cp := w.Clone()
	t.inserted = append(t.inserted, cp)
	t.withdrawals[cp.ID] = cp
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		return s.insertWithdrawalLocked(cp)
	})
	return nil
}

func (t *txStore) GetWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	if w, ok := t.withdrawals[withdrawalID]; ok {
		return w.Clone(), nil
	}
	return t.base.GetWithdrawal(ctx, withdrawalID)
}

func (t *txStore) UpdateWithdrawal(ctx context.Context, withdrawalID string, decision domain.WithdrawalDecision, expected domain.WithdrawalStatus) error {
	w, err := t.GetWithdrawal(ctx, withdrawalID)
	if err != nil {
		return err
	}
	if w.Status != expected {
		return domain.ErrStaleStatus.Withf("withdrawal %s is %s", withdrawalID, w.Status)
	}
	t.withdrawals[withdrawalID] = applyDecision(w, decision)
	t.ops = append(t.ops, func(s *Store) (undoFunc, error) {
		return s.updateWithdrawalLocked(withdrawalID, decision, expected)
	})
	return nil
}

func (t *txStore) SumWithdrawals(ctx context.Context, partnerID string, statuses []domain.WithdrawalStatus) (decimal.Decimal, error) {
	list, err := t.ListWithdrawals(ctx, domain.WithdrawalFilter{PartnerID: partnerID})
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, w := range list {
		if hasStatus(statuses, w.Status) {
			sum = sum.Add(w.Amount)
		}
	}
	return sum, nil
}

func (t *txStore) ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, error) {
	base, err := t.base.ListWithdrawals(ctx, domain.WithdrawalFilter{PartnerID: filter.PartnerID})
	if err != nil {
		return nil, err
	}
	var out []*domain.WithdrawalRequest
	for i := len(t.inserted) - 1; i >= 0; i-- {
		out = append(out, t.withdrawals[t.inserted[i].ID].Clone())
	}
	for _, w := range base {
		if staged, ok := t.withdrawals[w.ID]; ok {
			w = staged.Clone()
		}
		out = append(out, w)
	}
	filtered := out[:0]
	for _, w := range out {
		if matchWithdrawal(w, filter) {
			filtered = append(filtered, w)
		}
	}
	return orderAndLimit(filtered, filter), nil
}

func (t *txStore) WithdrawalBacklog(ctx context.Context, status domain.WithdrawalStatus, staleBefore time.Time) (domain.WithdrawalBacklog, error) {
	list, err := t.ListWithdrawals(ctx, domain.WithdrawalFilter{Status: status})
	if err != nil {
		return domain.WithdrawalBacklog{}, err
	}
	return backlogOf(list, staleBefore), nil
}

// snapshot is a read-only view used while the store read lock is held.
type snapshot struct {
	s *Store
}

func (v *snapshot) WithinPartnerTx(context.Context, string, func(tx domain.Store) error) error {
	return errReadOnly
}

func (v *snapshot) ReadSnapshot(_ context.Context, fn func(tx domain.Store) error) error {
	return fn(v)
}

func (v *snapshot) FindPartnerByID(_ context.Context, partnerID string) (*domain.PartnerNode, error) {
	return v.s.partnerLocked(partnerID)
}

func (v *snapshot) FindPartnerByUser(_ context.Context, userID string) (*domain.PartnerNode, error) {
	return v.s.partnerByUserLocked(userID)
}

func (v *snapshot) FindPartnerByCode(_ context.Context, code string) (*domain.PartnerNode, error) {
	return v.s.partnerByCodeLocked(code)
}

func (v *snapshot) FindChildren(_ context.Context, partnerID string) ([]*domain.PartnerNode, error) {
	return v.s.childrenLocked(partnerID), nil
}

func (v *snapshot) SumCommissions(_ context.Context, filter domain.CommissionFilter) (domain.CommissionTotals, error) {
	return v.s.sumCommissionsLocked(filter), nil
}

func (v *snapshot) GetWithdrawal(_ context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	return v.s.withdrawalLocked(withdrawalID)
}

func (v *snapshot) SumWithdrawals(_ context.Context, partnerID string, statuses []domain.WithdrawalStatus) (decimal.Decimal, error) {
	return v.s.sumWithdrawalsLocked(partnerID, statuses), nil
}

func (v *snapshot) ListWithdrawals(_ context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, error) {
	return v.s.listWithdrawalsLocked(filter), nil
}

func (v *snapshot) WithdrawalBacklog(_ context.Context, status domain.WithdrawalStatus, staleBefore time.Time) (domain.WithdrawalBacklog, error) {
	return backlogOf(v.s.listWithdrawalsLocked(domain.WithdrawalFilter{Status: status}), staleBefore), nil
}

func (v *snapshot) InsertPartner(context.Context, *domain.PartnerNode) error { return errReadOnly }

func (v *snapshot) ActivatePartner(context.Context, string, string) error { return errReadOnly }

func (v *snapshot) DebitPartner(context.Context, string, decimal.Decimal, decimal.Decimal) error {
	return errReadOnly
}

func (v *snapshot) AppendCommission(context.Context, *domain.CommissionEntry) (bool, error) {
	return false, errReadOnly
}

func (v *snapshot) InsertWithdrawal(context.Context, *domain.WithdrawalRequest) error {
	return errReadOnly
}

func (v *snapshot) UpdateWithdrawal(context.Context, string, domain.WithdrawalDecision, domain.WithdrawalStatus) error {
	return errReadOnly
}
