package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/stockline-wms/stockline/internal/inventory"
	"github.com/stockline-wms/stockline/internal/masterdata/shared"
)

// Catalog adapts the item repository to the lookup the stock ledger needs.
// A missing or inactive item fails the lookup so a movement never posts
// against an unknown SKU.
type Catalog struct {
	repo Repository
}

func NewCatalog(repo Repository) Catalog {
	return Catalog{repo: repo}
}

func (c Catalog) GetItemMeta(ctx context.Context, itemID int64) (inventory.ItemMeta, error) {
	it, err := c.repo.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return inventory.ItemMeta{}, fmt.Errorf("%w: item %d", inventory.ErrItemUnknown, itemID)
		}
		return inventory.ItemMeta{}, err
	}
	if !it.IsActive {
		return inventory.ItemMeta{}, fmt.Errorf("%w: item %s is inactive", inventory.ErrItemUnknown, it.Code)
	}
	return inventory.ItemMeta{
		Code:     it.Code,
		Name:     it.Name,
		Category: it.Category,
		Unit:     it.Unit,
	}, nil
}
