package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/postgres/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultStore is the gorm-backed domain.Store. A DefaultStore created by
// WithinPartnerTx or ReadSnapshot is bound to that transaction.
type DefaultStore struct {
	DB   *gorm.DB
	inTx bool
}

var _ domain.Store = (*DefaultStore)(nil)

func NewDefaultStore(db *gorm.DB) *DefaultStore {
	return &DefaultStore{DB: db}
}

// WithinPartnerTx runs fn in a READ COMMITTED transaction that first locks
// the partner row with SELECT ... FOR UPDATE. Every writer for the partner
// takes the same lock, so the balance fn reads cannot move before commit.
func (s *DefaultStore) WithinPartnerTx(ctx context.Context, partnerID string, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx := s.DB.WithContext(ctx).Begin(&sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if tx.Error != nil {
		return translateError(tx.Error)
	}

	var locked models.PartnerModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&locked, "id = ?", partnerID).Error; err != nil {
		return rollback(tx, notFound(err, domain.ErrPartnerNotFound))
	}

	if err := fn(&DefaultStore{DB: tx, inTx: true}); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit().Error; err != nil {
		return translateError(err)
	}
	return nil
}

// ReadSnapshot runs fn in a read-only REPEATABLE READ transaction so every
// query inside sees the same snapshot.
func (s *DefaultStore) ReadSnapshot(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx := s.DB.WithContext(ctx).Begin(&sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if tx.Error != nil {
		return translateError(tx.Error)
	}
	if err := fn(&DefaultStore{DB: tx, inTx: true}); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit().Error; err != nil {
		return translateError(err)
	}
	return nil
}

// rollback discards tx and returns cause. A rollback that itself fails may
// leave partial writes behind and escalates to ErrRollbackFailed.
func rollback(tx *gorm.DB, cause error) error {
	if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
		return domain.ErrRollbackFailed.Wrap(errors.Join(cause, err))
	}
	return cause
}

// ---- partners ----

func (s *DefaultStore) FindPartnerByID(ctx context.Context, partnerID string) (*domain.PartnerNode, error) {
	var model models.PartnerModel
	if err := s.DB.WithContext(ctx).First(&model, "id = ?", partnerID).Error; err != nil {
		return nil, notFound(err, domain.ErrPartnerNotFound)
	}
	return mappers.ToDomainPartner(&model), nil
}

func (s *DefaultStore) FindPartnerByUser(ctx context.Context, userID string) (*domain.PartnerNode, error) {
	var model models.PartnerModel
	if err := s.DB.WithContext(ctx).First(&model, "owner_user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, domain.ErrNoHierarchyRecord)
	}
	return mappers.ToDomainPartner(&model), nil
}

func (s *DefaultStore) FindPartnerByCode(ctx context.Context, code string) (*domain.PartnerNode, error) {
	var model models.PartnerModel
	if err := s.DB.WithContext(ctx).First(&model, "referral_code = ?", code).Error; err != nil {
		return nil, notFound(err, domain.ErrReferralCodeNotFound)
	}
	return mappers.ToDomainPartner(&model), nil
}

func (s *DefaultStore) FindChildren(ctx context.Context, partnerID string) ([]*domain.PartnerNode, error) {
	var rows []models.PartnerModel
	if err := s.DB.WithContext(ctx).
		Where("parent_id = ?", partnerID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.PartnerNode, 0, len(rows))
	for i := range rows {
		out = append(out, mappers.ToDomainPartner(&rows[i]))
	}
	return out, nil
}

func (s *DefaultStore) InsertPartner(ctx context.Context, partner *domain.PartnerNode) error {
	model := mappers.ToGORMPartner(partner)
	if err := s.DB.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err)
	}
	partner.CreatedAt = model.CreatedAt
	partner.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *DefaultStore) ActivatePartner(ctx context.Context, partnerID, code string) error {
	res := s.DB.WithContext(ctx).
		Model(&models.PartnerModel{}).
		Where("id = ? AND status = ? AND referral_code IS NULL", partnerID, string(domain.PartnerPending)).
		Updates(map[string]any{
			"referral_code": code,
			"status":        string(domain.PartnerActive),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindPartnerByID(ctx, partnerID); err != nil {
			return err
		}
		return domain.ErrStaleStatus
	}
	return nil
}

func (s *DefaultStore) DebitPartner(ctx context.Context, partnerID string, amount, expectedTotal decimal.Decimal) error {
	res := s.DB.WithContext(ctx).
		Model(&models.PartnerModel{}).
		Where("id = ? AND withdrawn_total = ?", partnerID, expectedTotal).
		Updates(map[string]any{
			"withdrawn_total": gorm.Expr("withdrawn_total + ?", amount),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.FindPartnerByID(ctx, partnerID); err != nil {
			return err
		}
		return domain.ErrStaleStatus.Withf("partner %s debit total moved", partnerID)
	}
	return nil
}

// ---- commissions ----

type commissionSums struct {
	Amount decimal.Decimal
	Volume decimal.Decimal
}

func (s *DefaultStore) SumCommissions(ctx context.Context, filter domain.CommissionFilter) (domain.CommissionTotals, error) {
	q := s.DB.WithContext(ctx).
		Model(&models.CommissionModel{}).
		Select("COALESCE(SUM(amount), 0) AS amount, COALESCE(SUM(volume), 0) AS volume")
	if filter.PartnerID != "" {
		q = q.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.SourceUserID != "" {
		q = q.Where("source_user_id = ?", filter.SourceUserID)
	}

	var sums commissionSums
	if err := q.Scan(&sums).Error; err != nil {
		return domain.CommissionTotals{}, translateError(err)
	}
	return domain.CommissionTotals{Amount: sums.Amount, Volume: sums.Volume}, nil
}

func (s *DefaultStore) AppendCommission(ctx context.Context, entry *domain.CommissionEntry) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(mappers.ToGORMCommission(entry))
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ---- withdrawals ----

func (s *DefaultStore) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	if err := s.DB.WithContext(ctx).Create(mappers.ToGORMWithdrawal(w)).Error; err != nil {
		return translateError(err)
	}
	return nil
}

func (s *DefaultStore) GetWithdrawal(ctx context.Context, withdrawalID string) (*domain.WithdrawalRequest, error) {
	var model models.WithdrawalModel
	if err := s.DB.WithContext(ctx).First(&model, "id = ?", withdrawalID).Error; err != nil {
		return nil, notFound(err, domain.ErrWithdrawalNotFound)
	}
	return mappers.ToDomainWithdrawal(&model), nil
}

func (s *DefaultStore) UpdateWithdrawal(ctx context.Context, withdrawalID string, decision domain.WithdrawalDecision, expected domain.WithdrawalStatus) error {
	patch := map[string]any{
		"status":      string(decision.Status),
		"reviewer_id": decision.ReviewerID,
		"reviewed_at": decision.ReviewedAt,
		"updated_at":  decision.ReviewedAt,
	}
	if decision.RejectionReason != "" {
		patch["rejection_reason"] = decision.RejectionReason
	}
	if decision.Notes != "" {
		patch["notes"] = decision.Notes
	}
	if decision.ExternalTransactionID != "" {
		patch["external_transaction_id"] = decision.ExternalTransactionID
	}

	res := s.DB.WithContext(ctx).
		Model(&models.WithdrawalModel{}).
		Where("id = ? AND status = ?", withdrawalID, string(expected)).
		Updates(patch)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}
		return domain.ErrStaleStatus.Withf("withdrawal %s is %s", withdrawalID, current.Status)
	}
	return nil
}

func (s *DefaultStore) SumWithdrawals(ctx context.Context, partnerID string, statuses []domain.WithdrawalStatus) (decimal.Decimal, error) {
	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}

	var row struct {
		Total decimal.Decimal
	}
	if err := s.DB.WithContext(ctx).
		Model(&models.WithdrawalModel{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("partner_id = ? AND status IN ?", partnerID, values).
		Scan(&row).Error; err != nil {
		return decimal.Zero, translateError(err)
	}
	return row.Total, nil
}

func (s *DefaultStore) ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, error) {
	q := s.DB.WithContext(ctx).Model(&models.WithdrawalModel{})
	if filter.PartnerID != "" {
		q = q.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.CreatedBefore.IsZero() {
		q = q.Where("created_at < ?", filter.CreatedBefore)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	order := "created_at DESC, id DESC"
	if filter.OldestFirst {
		order = "created_at ASC, id ASC"
	}

	var rows []models.WithdrawalModel
	if err := q.Order(order).Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]*domain.WithdrawalRequest, 0, len(rows))
	for i := range rows {
		out = append(out, mappers.ToDomainWithdrawal(&rows[i]))
	}
	return out, nil
}

func (s *DefaultStore) WithdrawalBacklog(ctx context.Context, status domain.WithdrawalStatus, staleBefore time.Time) (domain.WithdrawalBacklog, error) {
	var row struct {
		Total  int64
		Stale  int64
		Oldest sql.NullTime
	}
	if err := s.DB.WithContext(ctx).
		Model(&models.WithdrawalModel{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE created_at < ?) AS stale, MIN(created_at) AS oldest", staleBefore).
		Where("status = ?", string(status)).
		Scan(&row).Error; err != nil {
		return domain.WithdrawalBacklog{}, translateError(err)
	}

	backlog := domain.WithdrawalBacklog{Count: int(row.Total), StaleCount: int(row.Stale)}
	if row.Oldest.Valid {
		oldest := row.Oldest.Time
		backlog.OldestCreatedAt = &oldest
	}
	return backlog, nil
}
