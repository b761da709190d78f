package models

import (
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
)

// Validator is a registered probe agent.
type Validator struct {
	ID               string                    `json:"id"`
	PublicKey        string                    `json:"publicKey"`
	Address          string                    `json:"address"`
	Location         string                    `json:"location"`
	Version          string                    `json:"version"`
	Capabilities     []string                  `json:"capabilities,omitempty"`
	Status           constants.ValidatorStatus `json:"status"`
	LastSeen         time.Time                 `json:"lastSeen"`
	TotalValidations int64                     `json:"totalValidations"`
	CreatedAt        time.Time                 `json:"createdAt"`
}

// Online reports whether the validator is currently marked online.
func (v *Validator) Online() bool {
	return v.Status == constants.ValidatorOnline
}

// HostLoad is a snapshot of a validator host's resource usage.
type HostLoad struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
}
