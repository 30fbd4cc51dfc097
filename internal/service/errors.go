// Package service holds the business logic of the sales core: schedule
// generation, the payment ledger with its settlement reconciler, the sale
// lifecycle and the gateway bridge. Sentinel errors mirror the failure
// taxonomy the HTTP layer translates into status codes.
package service

import "errors"

// ErrInvalidInput is returned for malformed input (bad amount, unknown enum,
// out-of-range schedule parameters) before any write happens.
var ErrInvalidInput = errors.New("invalid input")

// ErrExceedsBalance is returned when a payment amount is larger than the
// outstanding balance of its target sale or installment.
var ErrExceedsBalance = errors.New("amount exceeds outstanding balance")

// ErrSaleHasPayments is returned when cancelling a sale that already has
// payment records. Refunds must be handled first.
var ErrSaleHasPayments = errors.New("sale has payments")

// ErrGatewayUnavailable wraps failures talking to the QR payment provider.
// The enclosing transaction rolls back and the operator may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")
