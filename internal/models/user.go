package models

import "time"

// User represents a platform user. ID is the external platform id.
type User struct {
	ID                string    `json:"id" db:"id"`
	Username          string    `json:"username,omitempty" db:"username"`
	FirstName         string    `json:"firstName,omitempty" db:"first_name"`
	LastName          string    `json:"lastName,omitempty" db:"last_name"`
	WalletAddress     *string   `json:"walletAddress,omitempty" db:"wallet_address"`
	IsAdmin           bool      `json:"isAdmin" db:"is_admin"`
	ProjectsSubmitted int64     `json:"projectsSubmitted" db:"projects_submitted"`
	ProjectsVoted     int64     `json:"projectsVoted" db:"projects_voted"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName picks the best available name for leaderboards
func (u *User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return "User " + u.ID
	}
}
