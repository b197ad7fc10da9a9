package domain

import "fmt"

// Transition tables for the two status machines. Every declared status has an
// entry; terminal statuses map to an empty edge set. ValidateTransitionTables
// is called at startup so a table edit that orphans a status fails fast.

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:   {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:     {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusAwaitingPickup:            {BookingStatusPickedUp, BookingStatusCancelled, BookingStatusRequiresManualReview},
	BookingStatusPickedUp:                  {BookingStatusReturnedPendingInspection, BookingStatusRequiresManualReview},
	BookingStatusReturnedPendingInspection: {BookingStatusCompleted, BookingStatusRequiresManualReview},
	BookingStatusCompleted:                 {},
	BookingStatusCancelled:                 {},
	BookingStatusRequiresManualReview:      {},
}

// CanTransitionOrder reports whether an order may move to the requested
// status under the actor's role. Elevated roles may force-cancel from any
// non-terminal state.
func CanTransitionOrder(from, to OrderStatus, role UserRole) bool {
	if to == OrderStatusCancelled && role.Elevated() && !from.Terminal() {
		return true
	}
	edges, ok := orderTransitions[from]
	if !ok {
		return false
	}
	for _, e := range edges {
		if e == to {
			return true
		}
	}
	return false
}

// CanTransitionBooking reports whether a booking may move to the requested
// status.
func CanTransitionBooking(from, to BookingStatus) bool {
	edges, ok := bookingTransitions[from]
	if !ok {
		return false
	}
	for _, e := range edges {
		if e == to {
			return true
		}
	}
	return false
}

// ValidateTransitionTables checks both tables are closed: every reachable
// status has a defined outgoing edge set and terminal statuses have none.
func ValidateTransitionTables() error {
	for from, edges := range orderTransitions {
		if from.Terminal() && len(edges) != 0 {
			return fmt.Errorf("terminal order status %s has outgoing edges", from)
		}
		for _, to := range edges {
			if _, ok := orderTransitions[to]; !ok {
				return fmt.Errorf("order status %s reachable from %s has no table entry", to, from)
			}
		}
	}
	for from, edges := range bookingTransitions {
		if from.Terminal() && len(edges) != 0 {
			return fmt.Errorf("terminal booking status %s has outgoing edges", from)
		}
		for _, to := range edges {
			if _, ok := bookingTransitions[to]; !ok {
				return fmt.Errorf("booking status %s reachable from %s has no table entry", to, from)
			}
		}
	}
	return nil
}

// OrderStatuses lists every declared order status
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(orderTransitions))
	for s := range orderTransitions {
		out = append(out, s)
	}
	return out
}

// BookingStatuses lists every declared booking status
func BookingStatuses() []BookingStatus {
	out := make([]BookingStatus, 0, len(bookingTransitions))
	for s := range bookingTransitions {
		out = append(out, s)
	}
	return out
}

// ParseOrderStatus validates a requested status string against the table
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := orderTransitions[st]; !ok {
		return "", InvalidArgument("error.order.unknown_status", s)
	}
	return st, nil
}
