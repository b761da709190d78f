package models

import (
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
)

// Target is a monitored URL owned by an account.
type Target struct {
	ID          string               `json:"id"`
	URL         string               `json:"url"`
	AccountID   string               `json:"userId"`
	Disabled    bool                 `json:"disabled"`
	Status      constants.TickStatus `json:"status,omitempty"`
	LastChecked *time.Time           `json:"lastChecked,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}
