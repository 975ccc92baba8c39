package entity

import "time"

// Company is the tenant boundary. Every other record is scoped to exactly one company.
type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  Currency  `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
