package models

const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderShipped   = "shipped"
	OrderDelivered = "delivered"
	OrderCancelled = "cancelled"
)

// OrderActor is the relation of the caller to an order.
type OrderActor int

const (
	ActorNone OrderActor = iota
	ActorBuyer
	ActorSeller
	ActorAdmin
)

type orderEdge struct{ from, to string }

var orderEdges = map[orderEdge][]OrderActor{
	{OrderPending, OrderCancelled}: {ActorBuyer, ActorAdmin},
	{OrderPending, OrderPaid}:      {ActorAdmin},
	{OrderPaid, OrderShipped}:      {ActorSeller, ActorAdmin},
	{OrderShipped, OrderDelivered}: {ActorSeller, ActorAdmin},
}

// ValidOrderTransition reports whether from→to is an edge of the order lifecycle.
func ValidOrderTransition(from, to string) bool {
	_, ok := orderEdges[orderEdge{from, to}]
	return ok
}

// CanTransitionOrder reports whether actor may move an order from→to.
func CanTransitionOrder(actor OrderActor, from, to string) bool {
	for _, a := range orderEdges[orderEdge{from, to}] {
		if a == actor {
			return true
		}
	}
	return false
}

func IsOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderPaid, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}
