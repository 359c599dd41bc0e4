package persistence

import "github.com/foodcourt/storefront/internal/infrastructure/persistence/models"

// Models lists every persisted model, in dependency order
func Models() []any {
	return []any{
		&models.CartLineModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.DeliveryTrackingModel{},
	}
}
