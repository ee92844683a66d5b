package model

import "fmt"

// Plan is a purchasable ticket tier of an event.  Capacity is the maximum
// number of units that may be held by live reservations at any moment.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – event the plan belongs to.
//  Name       – tier name (e.g. VIP).
//  PriceCents – unit price in cents.
//  Capacity   – max sellable units.
type Plan struct {
	ID         uint64 // event_plans.id
	EventID    uint64 // event_plans.event_id
	Name       string // event_plans.name
	PriceCents int64  // event_plans.price_cents
	Capacity   int    // event_plans.max_tickets
}

// Total returns the price of amount units in cents.
func (p Plan) Total(amount int) int64 { return p.PriceCents * int64(amount) }

// Price returns a float representation of cents for API responses.
func Price(cents int64) float64 { return float64(cents) / 100 }

// FormatCents renders cents as a decimal string with two fraction digits,
// the format payment gateways expect.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
