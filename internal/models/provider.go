package models

import (
	"encoding/json"
	"time"
)

// ProviderStatus is the lifecycle flag of a provider.
type ProviderStatus string

const (
	ProviderStatusActive   ProviderStatus = "A"
	ProviderStatusInactive ProviderStatus = "I"
)

// Valid reports whether s is one of the defined statuses.
func (s ProviderStatus) Valid() bool {
	return s == ProviderStatusActive || s == ProviderStatusInactive
}

// Provider is a supplier of goods or services tracked by the directory.
type Provider struct {
	ID                int64          `json:"id" db:"id"`
	Company           string         `json:"company" db:"company"`
	Contact           string         `json:"contact" db:"contact"`
	Type              string         `json:"type" db:"type"`
	Email             string         `json:"email" db:"email"`
	Phone             string         `json:"phone" db:"phone"`
	Address           string         `json:"address" db:"address"`
	Status            ProviderStatus `json:"status" db:"status"`
	RegisteredAt      time.Time      `json:"registered_at" db:"registered_at"`
	LastPurchaseDate  *time.Time     `json:"last_purchase_date" db:"last_purchase_date"`
	RegisteringUserID *int64         `json:"registering_user_id" db:"registering_user_id"`
}

// ProviderInput is the payload accepted by create and update.
// Status and LastPurchaseDate are optional; on create Status is ignored.
// On update an omitted last_purchase_date keeps the stored date while an
// explicit null or "" clears it.
type ProviderInput struct {
	Company           string  `json:"company" validate:"required"`
	Contact           string  `json:"contact" validate:"required"`
	Type              string  `json:"type" validate:"required"`
	Email             string  `json:"email" validate:"required,email"`
	Phone             string  `json:"phone" validate:"required"`
	Address           string  `json:"address" validate:"required"`
	Status            *string `json:"status" validate:"omitempty,oneof=A I"`
	LastPurchaseDate  *string `json:"last_purchase_date"`
	RegisteringUserID *int64  `json:"registering_user_id" validate:"omitempty,gt=0"`

	// LastPurchaseDateSet records that the body carried last_purchase_date.
	LastPurchaseDateSet bool `json:"-"`
}

func (in *ProviderInput) UnmarshalJSON(data []byte) error {
	type plain ProviderInput
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return err
	}
	if err := json.Unmarshal(data, (*plain)(in)); err != nil {
		return err
	}
	_, in.LastPurchaseDateSet = present["last_purchase_date"]
	return nil
}

// ClearsLastPurchaseDate reports whether the input explicitly empties the date.
func (in *ProviderInput) ClearsLastPurchaseDate() bool {
	return in.LastPurchaseDateSet && in.LastPurchaseDate == nil
}

// ProviderFilter narrows a provider listing. Zero values mean no filter.
type ProviderFilter struct {
	Status ProviderStatus `query:"status"`
	Type   string         `query:"type"`
}

// Snapshot renders the provider as an audit payload.
func (p *Provider) Snapshot() JSONB {
	snap := JSONB{
		"id":            p.ID,
		"company":       p.Company,
		"contact":       p.Contact,
		"type":          p.Type,
		"email":         p.Email,
		"phone":         p.Phone,
		"address":       p.Address,
		"status":        string(p.Status),
		"registered_at": p.RegisteredAt.UTC().Format(time.RFC3339),
	}
	if p.LastPurchaseDate != nil {
		snap["last_purchase_date"] = p.LastPurchaseDate.Format("2006-01-02")
	}
	if p.RegisteringUserID != nil {
		snap["registering_user_id"] = *p.RegisteringUserID
	}
	return snap
}
