package models

import "time"

// Server represents a top-level community grouping channels.
// "Server" is the product's domain term, not a host machine.
type Server struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerID    string    `json:"owner_id"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
}
