// Package domain holds the subscription records extended by paid renewals.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired  SubscriptionStatus = "EXPIRED"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
)

type OwnerKind string

const (
	OwnerUser        OwnerKind = "USER"
	OwnerInstitution OwnerKind = "INSTITUTION"
)

// Owner identifies whose subscription is being extended.
type Owner struct {
	Kind OwnerKind
	ID   snowflake.ID
}

func UserOwner(id snowflake.ID) Owner        { return Owner{Kind: OwnerUser, ID: id} }
func InstitutionOwner(id snowflake.ID) Owner { return Owner{Kind: OwnerInstitution, ID: id} }

// Subscription is one (owner, product) row in user_subscriptions or institution_subscriptions.
type Subscription struct {
	ID        snowflake.ID       `json:"id"`
	OwnerID   snowflake.ID       `json:"owner_id"`
	ProductID snowflake.ID       `json:"product_id"`
	Status    SubscriptionStatus `json:"status"`
	StartAt   time.Time          `json:"start_at"`
	EndAt     time.Time          `json:"end_at"`
	IsTrial   bool               `json:"is_trial"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ActiveAt reports start <= now <= end with an ACTIVE status.
func (s Subscription) ActiveAt(now time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	return !now.Before(s.StartAt) && !now.After(s.EndAt)
}
