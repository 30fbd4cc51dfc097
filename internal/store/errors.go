// Package store persists the sales, installment, payment and trip state in
// PostgreSQL. Sentinel errors defined here let callers distinguish business
// outcomes from plain database failures with errors.Is.
package store

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientSeats is returned when a reservation asks for more seats
// than the trip has available. The reservation is a no-op in that case.
var ErrInsufficientSeats = errors.New("insufficient seats")
