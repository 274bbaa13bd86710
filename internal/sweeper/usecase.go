package sweeper

import "context"

// Summary reports what a single sweep pass did.
type Summary struct {
	SweptLots            int64 `json:"swept_lots"`
	ReleasedReservations int64 `json:"released_reservations"`
	FailedReservations   int64 `json:"failed_reservations"`
}

// UseCase drives the background expiry sweep. Each pass returns the stock
// held by timed-out reservations and retires lots past their expiry date.
type UseCase interface {
	// Run sweeps on the configured interval until ctx is cancelled.
	Run(ctx context.Context)
	// RunOnce performs a single sweep pass.
	RunOnce(ctx context.Context) (*Summary, error)
}
