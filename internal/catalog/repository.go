package catalog

import (
	"context"
	"errors"

	"github.com/wareflow/inventory-service/internal/model"
)

var ErrProductNotFound = errors.New("product not found")

// Repository is the read-only view of the product catalog the engine depends
// on. Catalog ownership (CRUD, search) lives elsewhere.
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}
