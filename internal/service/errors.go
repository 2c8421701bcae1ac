package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/classifier"
	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/reconcile"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/internal/submission"
)

var (
	errNotMember   = errors.New("not a member of this trip")
	errNoLedger    = errors.New("remote ledger not configured")
	errLocalGroup  = errors.New("trip is not linked to a remote group")
	errMissingUser = errors.New("authenticated user no longer exists")
)

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var code connect.Code
	switch {
	case errors.Is(err, classifier.ErrInvalidShare),
		errors.Is(err, submission.ErrInvalidSubmission),
		errors.Is(err, currency.ErrUnknownCurrency):
		code = connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, errNotMember):
		code = connect.CodePermissionDenied
	case errors.Is(err, submission.ErrLedgerUnavailable),
		errors.Is(err, errNoLedger),
		errors.Is(err, errLocalGroup):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, reconcile.ErrReconciliation):
		code = connect.CodeInternal
	case errors.Is(err, ledger.ErrRemoteLedger):
		if ledger.IsRetryable(err) {
			code = connect.CodeUnavailable
		} else {
			code = connect.CodeFailedPrecondition
		}
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}
