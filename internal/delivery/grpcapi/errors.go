package grpcapi

import (
	"errors"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const internalMessage = "internal error"

// toStatus maps a core error to a gRPC status. The error code travels as
// the message prefix ("code: reason") so clients can branch on it.
// Integrity and unknown faults are logged and returned opaque.
func toStatus(logger *zap.Logger, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		if domain.KindOf(err) == domain.KindTransient {
			return status.Error(codes.Unavailable, domain.ErrStoreUnavailable.Code+": "+domain.ErrStoreUnavailable.Msg)
		}
		logger.Error("unhandled error", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Internal, internalMessage)
	}

	var code codes.Code
	switch de.Kind {
	case domain.KindValidation:
		code = codes.InvalidArgument
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindStateConflict, domain.KindInsufficientBalance:
		code = codes.FailedPrecondition
	case domain.KindTransient:
		logger.Warn("transient failure", zap.String("method", method), zap.Error(err))
		return status.Error(codes.Unavailable, de.Code+": "+domain.ErrStoreUnavailable.Msg)
	default:
		logger.Error("integrity failure", zap.String("method", method), zap.String("code", de.Code), zap.Error(err))
		return status.Error(codes.Internal, de.Code+": "+internalMessage)
	}
	return status.Error(code, de.Code+": "+de.Msg)
}
