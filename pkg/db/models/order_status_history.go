package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/freshlane/pkg/db/types"
	"github.com/angelmondragon/freshlane/pkg/enums"
)

// OrderStatusHistory is the append-only audit row written with every order transition.
type OrderStatusHistory struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null"`
	ActorID        *uuid.UUID        `gorm:"column:actor_id;type:uuid"`
	ActorRole      enums.ActorRole   `gorm:"column:actor_role;type:text;not null"`
	Note           *string           `gorm:"column:note"`
	Metadata       dbtypes.JSONMap   `gorm:"column:metadata;type:jsonb;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;not null"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}
