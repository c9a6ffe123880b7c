package delivery

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusDelivered Status = "DELIVERED"
)

// Delivery is the fulfilment record of a paid order. Driver and route are
// assigned later by dispatch.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"orderId"`
	Status    Status    `json:"status"`
	DriverID  *string   `json:"driverId,omitempty"`
	RouteID   *string   `json:"routeId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
