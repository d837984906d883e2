// Package models provides data models for the token curation service.
package models

import (
	"time"

	"github.com/token-curator/internal/types"
)

// Project is a submitted token and its community lifecycle
type Project struct {
	ID              string `json:"id" db:"id"`
	ContractAddress string `json:"contractAddress" db:"contract_address"`
	Name            string `json:"name" db:"name"`
	Symbol          string `json:"symbol" db:"symbol"`
	Logo            string `json:"logo,omitempty" db:"logo"`
	ChartURL        string `json:"chartUrl,omitempty" db:"chart_url"`

	MarketCap    float64  `json:"marketCap" db:"market_cap"`
	Liquidity    float64  `json:"liquidity" db:"liquidity"`
	InitialPrice float64  `json:"initialPrice" db:"initial_price"`
	CurrentPrice float64  `json:"currentPrice" db:"current_price"`
	ROI          *float64 `json:"roi,omitempty" db:"roi"`

	Bulls int64 `json:"bulls" db:"bulls"`
	Bears int64 `json:"bears" db:"bears"`
	Votes int64 `json:"votes" db:"votes"`

	Status     types.ProjectStatus `json:"status" db:"status"`
	ApprovedAt *time.Time          `json:"approvedAt,omitempty" db:"approved_at"`
	ApprovedBy *string             `json:"approvedBy,omitempty" db:"approved_by"`

	SubmittedBy     string    `json:"submittedBy" db:"submitted_by"`
	SubmittedInChat *string   `json:"submittedInChat,omitempty" db:"submitted_in_chat"`
	SubmittedAt     time.Time `json:"submittedAt" db:"submitted_at"`

	// Version increments on every tally or status write
	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// BullPercent returns the share of bull votes in percent, 0 when there are no votes
func (p *Project) BullPercent() float64 {
	if p.Votes == 0 {
		return 0
	}
	return float64(p.Bulls) * 100 / float64(p.Votes)
}

// TalliesConsistent reports whether votes == bulls + bears
func (p *Project) TalliesConsistent() bool {
	return p.Votes == p.Bulls+p.Bears && p.Bulls >= 0 && p.Bears >= 0
}

// Clone returns a deep copy
func (p *Project) Clone() *Project {
	c := *p
	if p.ROI != nil {
		roi := *p.ROI
		c.ROI = &roi
	}
	if p.ApprovedAt != nil {
		at := *p.ApprovedAt
		c.ApprovedAt = &at
	}
	if p.ApprovedBy != nil {
		by := *p.ApprovedBy
		c.ApprovedBy = &by
	}
	if p.SubmittedInChat != nil {
		chat := *p.SubmittedInChat
		c.SubmittedInChat = &chat
	}
	return &c
}
