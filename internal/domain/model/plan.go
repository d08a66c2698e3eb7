package model

import (
	"time"

	"github.com/kamol666/finish/internal/domain"
)

// Plan represents a purchasable channel subscription with a fixed duration
// and a price in som (major currency unit). Plans are immutable once a
// settled transaction references them.
type Plan struct {
	ID           string
	Name         string
	SelectedName string // short alias users pick in the bot menu
	Price        int64  // som
	DurationDays int
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// PriceTiyin returns the plan price in tiyin, the minor unit every payment
// provider quotes amounts in. All amount comparisons happen in tiyin.
func (p *Plan) PriceTiyin() int64 { return p.Price * 100 }

// NewPlan validates and constructs a plan.
func NewPlan(id, name, selectedName string, price int64, durationDays int) (*Plan, error) {
	if id == "" || name == "" || price <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		SelectedName: selectedName,
		Price:        price,
		DurationDays: durationDays,
		CreatedAt:    time.Now(),
	}, nil
}
