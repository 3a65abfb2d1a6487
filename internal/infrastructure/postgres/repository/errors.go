package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	uqReferralCode = "uq_partner_nodes_referral_code"
	uqOwnerUserID  = "uq_partner_nodes_owner_user_id"
	uqReference    = "uq_withdrawal_requests_reference"
)

// translateError maps driver failures onto the domain taxonomy. Anything it
// does not recognise is returned unchanged and reported as internal.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			switch pgErr.ConstraintName {
			case uqReferralCode:
				return domain.ErrDuplicateCode.Wrap(err)
			case uqOwnerUserID:
				return domain.ErrAlreadyEnrolled.Wrap(err)
			case uqReference:
				return domain.ErrDuplicateReference.Wrap(err)
			}
		case pgErr.Code == "23503":
			return domain.ErrPartnerNotFound.Wrap(err)
		case pgErr.Code == "22P02":
			return domain.ErrInvalidInput.Wrap(err)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03", pgErr.Code == "57014":
			return domain.NewTransientError(err)
		case strings.HasPrefix(pgErr.Code, "08"):
			return domain.NewTransientError(err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) {
		return domain.NewTransientError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.NewTransientError(err)
	}
	return err
}

// notFound maps gorm's missing-row error onto sentinel.
func notFound(err error, sentinel *domain.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return translateError(err)
}
