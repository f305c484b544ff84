package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings"`

	ID           string    `bun:"id,pk"`
	Confirmation string    `bun:"confirmation,notnull,unique"`
	UserID       string    `bun:"user_id,notnull"`
	GuideID      string    `bun:"guide_id,notnull"`
	Date         string    `bun:"tour_date,notnull"`
	Price        float64   `bun:"price,notnull"`
	Status       string    `bun:"status,notnull,default:'confirmed'"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BookingRepository implements the booking-write capability. Replays of the
// same confirmation number land on the unique constraint and return the
// existing id, which keeps retried writes idempotent.
type BookingRepository struct {
	db *bun.DB
}

var _ contractx.BookingWriter = (*BookingRepository)(nil)

func NewBookingRepository(db *bun.DB) (*BookingRepository, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &BookingRepository{db: db}, nil
}

func (r *BookingRepository) Create(ctx context.Context, booking contractx.Booking) (string, error) {
	row := &bookingRow{
		ID:           booking.ID,
		Confirmation: booking.Confirmation,
		UserID:       booking.UserID,
		GuideID:      booking.GuideID,
		Date:         booking.Date,
		Price:        booking.Price,
		Status:       "confirmed",
		CreatedAt:    booking.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return r.lookupByConfirmation(ctx, booking.Confirmation)
		}
		return "", gatewayErr("booking create", err)
	}
	return row.ID, nil
}

func (r *BookingRepository) lookupByConfirmation(ctx context.Context, confirmation string) (string, error) {
	row := new(bookingRow)
	err := r.db.NewSelect().Model(row).Where("confirmation = ?", confirmation).Scan(ctx)
	if err != nil {
		return "", gatewayErr("booking lookup", err)
	}
	return row.ID, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
