// Package directory exposes principal records (roles, permissions,
// subscription tier) consumed at issuance time. The directory is a
// collaborator: the token service reads it, never writes it.
package directory

import (
	"context"
	"time"
)

// Status of a principal record.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Principal is the authenticated entity a token represents (a user or
// service identity).
type Principal struct {
	ID               string
	Roles            []string
	Permissions      []string
	SubscriptionTier string
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether tokens may be issued for the principal.
func (p *Principal) Active() bool {
	return p != nil && p.Status == StatusActive
}

// Repository defines read access to principal records.
// GetByID returns (nil, nil) when the principal does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Principal, error)
}
