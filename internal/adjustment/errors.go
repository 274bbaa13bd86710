package adjustment

import "errors"

var (
	ErrAdjustmentNotFound = errors.New("adjustment not found")
	ErrNotPending         = errors.New("adjustment is not pending review")
	ErrNotApproved        = errors.New("adjustment is not approved")
	ErrAlreadyApplied     = errors.New("adjustment has already been applied")
	ErrLotNotInWarehouse  = errors.New("lot does not belong to the adjustment warehouse")
	ErrNoLines            = errors.New("adjustment has no lines")
)
