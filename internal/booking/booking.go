// Package booking implements the reservation flow: quote, seat hold, VAT
// pricing, payment intent, and the status lifecycle driven by payment events.
package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	StatusConfirmed      = "CONFIRMED"
	StatusFailed         = "FAILED"
	StatusExpired        = "EXPIRED"
	StatusCancelled      = "CANCELLED"
)

// Booking is a reservation for a retreat departure.
type Booking struct {
	ID              string          `json:"id"`
	Reference       string          `json:"reference"`
	RetreatID       string          `json:"retreatId"`
	RetreatTitle    string          `json:"retreatTitle,omitempty"`
	PackageID       string          `json:"packageId"`
	DepartureID     string          `json:"departureId"`
	GuestName       string          `json:"guestName"`
	GuestEmail      string          `json:"guestEmail"`
	GuestCount      int             `json:"guestCount"`
	BillingCountry  string          `json:"billingCountry"`
	Locale          string          `json:"locale"`
	Currency        string          `json:"currency"`
	AmountSubtotal  decimal.Decimal `json:"amountSubtotal"`
	VATRate         decimal.Decimal `json:"vatRate"`
	VATAmount       decimal.Decimal `json:"vatAmount"`
	AmountTotal     decimal.Decimal `json:"amountTotal"`
	Status          string          `json:"status"`
	PaymentProvider *string         `json:"paymentProvider,omitempty"`
	PaymentIntentID *string         `json:"paymentIntentId,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CreateInput is the request payload for POST /bookings.
type CreateInput struct {
	DepartureID    string  `json:"departureId" validate:"required,uuid"`
	PackageID      string  `json:"packageId" validate:"required,uuid"`
	GuestName      string  `json:"guestName" validate:"required,min=2,max=120"`
	GuestEmail     string  `json:"guestEmail" validate:"required,email"`
	GuestCount     int     `json:"guestCount" validate:"required,min=1,max=12"`
	BillingCountry string  `json:"billingCountry" validate:"required,len=2"`
	Notes          *string `json:"notes" validate:"omitempty,max=2000"`
}

// Quote is the server-side pricing context for a departure and package pair.
type Quote struct {
	RetreatID          string
	RetreatTitle       string
	DestinationCountry string
	PackagePrice       decimal.Decimal
	MaxGuests          int
	Currency           string
	SpotsLeft          int
	StartDate          time.Time
}

// AdminListParams filters the admin booking listing. Retreat matches either
// the retreat id or its slug; From and To bound created_at, To exclusive.
type AdminListParams struct {
	Status  string
	Email   string
	Retreat string
	From    time.Time
	To      time.Time
	Page    int
	Limit   int
}
