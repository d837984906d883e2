// Package types provides common type definitions for the token curation service.
package types

import (
	"fmt"
	"strings"
)

// ProjectStatus represents the lifecycle state of a submitted project
type ProjectStatus string

const (
	// StatusPending is the initial state after submission
	StatusPending ProjectStatus = "pending"
	// StatusVetting is the state during which community votes can trigger auto-approval
	StatusVetting ProjectStatus = "vetting"
	// StatusApproved is terminal; the project is tracked for ROI
	StatusApproved ProjectStatus = "approved"
	// StatusRejected is terminal
	StatusRejected ProjectStatus = "rejected"
)

// AllProjectStatuses lists every lifecycle state in transition order
var AllProjectStatuses = []ProjectStatus{StatusPending, StatusVetting, StatusApproved, StatusRejected}

// transitions is the complete set of allowed status changes.
var transitions = map[ProjectStatus][]ProjectStatus{
	StatusPending: {StatusVetting, StatusRejected},
	StatusVetting: {StatusApproved, StatusRejected},
}

// Valid reports whether s is one of the known statuses
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVetting, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Votable reports whether votes may be cast while a project is in this state
func (s ProjectStatus) Votable() bool {
	return s == StatusVetting || s == StatusApproved
}

// Terminal reports whether no transition originates from s
func (s ProjectStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the transition table allows from -> to
func CanTransition(from, to ProjectStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseProjectStatus parses a status string
func ParseProjectStatus(s string) (ProjectStatus, error) {
	status := ProjectStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid project status: %q", s)
	}
	return status, nil
}

// VoteType is a binary sentiment signal
type VoteType string

const (
	// VoteBull is a positive vote
	VoteBull VoteType = "bull"
	// VoteBear is a negative vote
	VoteBear VoteType = "bear"
)

// Valid reports whether v is bull or bear
func (v VoteType) Valid() bool {
	return v == VoteBull || v == VoteBear
}

// Opposite returns the other vote type
func (v VoteType) Opposite() VoteType {
	if v == VoteBull {
		return VoteBear
	}
	return VoteBull
}

// ParseVoteType parses a vote type string
func ParseVoteType(s string) (VoteType, error) {
	v := VoteType(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("invalid vote type: %q (must be 'bull' or 'bear')", s)
	}
	return v, nil
}

// RatingCategory is one of the categories a project can be rated in
type RatingCategory string

const (
	RatingCommunity  RatingCategory = "community"
	RatingUtility    RatingCategory = "utility"
	RatingTokenomics RatingCategory = "tokenomics"
)

// AllRatingCategories lists the rating categories
var AllRatingCategories = []RatingCategory{RatingCommunity, RatingUtility, RatingTokenomics}

// Valid reports whether c is a known category
func (c RatingCategory) Valid() bool {
	switch c {
	case RatingCommunity, RatingUtility, RatingTokenomics:
		return true
	}
	return false
}

// Score bounds for ratings
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// TokenData is what the price oracle knows about a token
type TokenData struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
	Liquidity float64 `json:"liquidity"`
	ChartURL  string  `json:"chartUrl"`
	Logo      string  `json:"logo"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NormalizeAddress lower-cases and trims a contract or wallet address.
// Contract uniqueness is case-insensitive, so every stored address goes through here.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
