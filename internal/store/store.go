package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"travel-sales-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// WithTx runs fn inside a single transaction, committing on nil return and
// rolling back otherwise. Every money-changing use case funnels through this
// so that seat, sale, installment and payment writes stay all-or-nothing.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrip retrieves a trip by ID
func (s *Store) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.GetContext(ctx, &trip, "SELECT * FROM trips WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetTripForUpdateTx locks and retrieves a trip row inside tx
func (s *Store) GetTripForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Trip, error) {
	var trip models.Trip
	err := tx.GetContext(ctx, &trip, "SELECT * FROM trips WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// ReserveSeatsTx decrements available seats under a row lock, flipping the
// trip to FULL when availability reaches zero. Returns ErrInsufficientSeats
// with no mutation if the trip cannot hold the requested count.
func (s *Store) ReserveSeatsTx(ctx context.Context, tx *sqlx.Tx, tripID int64, count int) error {
	trip, err := s.GetTripForUpdateTx(ctx, tx, tripID)
	if err != nil {
		return fmt.Errorf("failed to lock trip: %w", err)
	}

	if trip.AvailableSeats < count {
		return fmt.Errorf("trip %d has %d seats, requested %d: %w",
			tripID, trip.AvailableSeats, count, ErrInsufficientSeats)
	}

	remaining := trip.AvailableSeats - count
	status := trip.Status
	if remaining == 0 {
		status = models.TripStatusFull
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE trips SET available_seats = $1, status = $2, updated_at = NOW() WHERE id = $3",
		remaining, status, tripID)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}
	return nil
}

// ReleaseSeatsTx increments available seats under a row lock, never exceeding
// the trip's total, and flips FULL back to OPEN.
func (s *Store) ReleaseSeatsTx(ctx context.Context, tx *sqlx.Tx, tripID int64, count int) error {
	trip, err := s.GetTripForUpdateTx(ctx, tx, tripID)
	if err != nil {
		return fmt.Errorf("failed to lock trip: %w", err)
	}

	remaining := trip.AvailableSeats + count
	if remaining > trip.TotalSeats {
		remaining = trip.TotalSeats
	}
	status := trip.Status
	if status == models.TripStatusFull && remaining > 0 {
		status = models.TripStatusOpen
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE trips SET available_seats = $1, status = $2, updated_at = NOW() WHERE id = $3",
		remaining, status, tripID)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}
	return nil
}
