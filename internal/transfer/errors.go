package transfer

import "errors"

var (
	ErrTransferNotFound = errors.New("transfer not found")
	ErrNotPending       = errors.New("transfer is not pending review")
	ErrNotApproved      = errors.New("transfer is not approved")
	ErrAlreadyApplied   = errors.New("transfer has already been applied")
	ErrSameWarehouse    = errors.New("source and destination warehouses are identical")
	ErrLotNotInSource   = errors.New("lot does not belong to the source warehouse")
	ErrNoLines          = errors.New("transfer has no lines")
)
