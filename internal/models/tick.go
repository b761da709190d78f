package models

import (
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
)

// Tick is one immutable probe outcome for a target.
type Tick struct {
	ID          int64                `json:"id"`
	TargetID    string               `json:"websiteId"`
	ValidatorID string               `json:"validatorId"`
	Status      constants.TickStatus `json:"status"`
	Latency     float64              `json:"latency"` // seconds
	Details     TickDetails          `json:"details"`
	CreatedAt   time.Time            `json:"createdAt"`
}

// TickDetails carries optional diagnostic context for a tick.
type TickDetails struct {
	ResponseCode  int    `json:"responseCode,omitempty"`
	StatusText    string `json:"statusText,omitempty"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	ContentType   string `json:"contentType,omitempty"`
	ContentLength int64  `json:"contentLength,omitempty"`
	ServerInfo    string `json:"serverInfo,omitempty"`
	ValidatorIP   string `json:"validatorIp,omitempty"`
	Cached        bool   `json:"cached,omitempty"`
}

// Before reports whether t sorts before other in tick order.
func (t Tick) Before(other Tick) bool {
	if t.CreatedAt.Equal(other.CreatedAt) {
		return t.ID < other.ID
	}
	return t.CreatedAt.Before(other.CreatedAt)
}
