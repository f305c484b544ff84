// Package gateway holds the concrete capability gateway implementations:
// bun-backed marketplace repositories and the media-storage client. The
// engine core only depends on the contract interfaces.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	contractx "github.com/jirapatw/guidebot/agent/contract"
)

const defaultSearchLimit = 20

type guideRow struct {
	bun.BaseModel `bun:"table:guides"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Location    string    `bun:"location,notnull"`
	Specialties []string  `bun:"specialties,array"`
	Languages   []string  `bun:"languages,array"`
	Phone       string    `bun:"phone,nullzero"`
	Bio         string    `bun:"bio,nullzero"`
	Rating      float64   `bun:"rating,notnull,default:0"`
	DailyRate   float64   `bun:"daily_rate,notnull,default:0"`
	Status      string    `bun:"status,notnull,default:'pending'"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// GuideRepository implements both the guide-search and guide-write
// capabilities on one Postgres table.
type GuideRepository struct {
	db    *bun.DB
	limit int
}

var (
	_ contractx.GuideSearch = (*GuideRepository)(nil)
	_ contractx.GuideWriter = (*GuideRepository)(nil)
)

func NewGuideRepository(db *bun.DB) (*GuideRepository, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &GuideRepository{db: db, limit: defaultSearchLimit}, nil
}

// Search filters active guides by location and, when given, specialty
// overlap, ordered by rating. Final ranking is the caller's concern.
func (r *GuideRepository) Search(ctx context.Context, criteria contractx.Criteria) ([]contractx.Guide, error) {
	var rows []guideRow

	if err := r.searchQuery(&rows, criteria).Scan(ctx); err != nil {
		return nil, gatewayErr("guide search", err)
	}

	guides := make([]contractx.Guide, 0, len(rows))
	for _, row := range rows {
		guides = append(guides, contractx.Guide{
			ID:          row.ID,
			Name:        row.Name,
			Location:    row.Location,
			Specialties: row.Specialties,
			Languages:   row.Languages,
			Rating:      row.Rating,
			DailyRate:   row.DailyRate,
		})
	}
	return guides, nil
}

// Interests match via the Postgres array-overlap operator, so the value side
// must be an array literal, never an expanded scalar list.
func (r *GuideRepository) searchQuery(rows *[]guideRow, criteria contractx.Criteria) *bun.SelectQuery {
	q := r.db.NewSelect().
		Model(rows).
		Where("status = ?", "active").
		OrderExpr("rating DESC").
		Limit(r.limit)

	if location := strings.TrimSpace(criteria.Location); location != "" {
		q = q.Where("lower(location) = lower(?)", location)
	}
	if len(criteria.Interests) > 0 {
		q = q.Where("specialties && ?", pgdialect.Array(criteria.Interests))
	}
	return q
}

// Create registers a new guide profile in pending status.
func (r *GuideRepository) Create(ctx context.Context, profile contractx.GuideProfile) (string, error) {
	if missing := profile.MissingFields(); len(missing) > 0 {
		return "", fmt.Errorf("%w: missing %s", contractx.ErrValidation, strings.Join(missing, ", "))
	}

	row := &guideRow{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(profile.Name),
		Location:    strings.TrimSpace(profile.Location),
		Specialties: []string{strings.TrimSpace(profile.Specialty)},
		Languages:   profile.Languages,
		Phone:       strings.TrimSpace(profile.Phone),
		Bio:         strings.TrimSpace(profile.Bio),
		Status:      "pending",
		CreatedAt:   time.Now().UTC(),
	}

	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", gatewayErr("guide create", err)
	}
	return row.ID, nil
}

func gatewayErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", contractx.ErrCapabilityTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", contractx.ErrCapability, op, err)
}
