package ledger

import "errors"

var (
	ErrLotNotFound            = errors.New("stock lot not found")
	ErrInvalidQuantity        = errors.New("quantity must be positive")
	ErrInsufficientStock      = errors.New("insufficient available stock")
	ErrInvalidReleaseQuantity = errors.New("release exceeds reserved quantity")
	ErrInvalidCommitQuantity  = errors.New("commit exceeds reserved or on-hand quantity")
	ErrNegativeStock          = errors.New("adjustment would drive on-hand stock negative")
	ErrProductInactive        = errors.New("product is inactive")
	ErrUntrackedProduct       = errors.New("product does not track inventory")
)
