// Package tasks defines the asynq task types shared by the API (producer) and
// the worker (consumer).
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names. The prefix is the asynq queue routing convention.
const (
	TypeBookingConfirmedEmail = "email:booking_confirmed"
	TypeContactAckEmail       = "email:contact_ack"
	TypeExpireBookings        = "booking:expire"
	TypeWarmSitemap           = "sitemap:warm"
)

// Queue names.
const (
	QueueDefault = "default"
	QueueEmails  = "emails"
)

// Enqueuer is the producer surface, satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BookingConfirmedPayload carries what the confirmation email needs.
type BookingConfirmedPayload struct {
	Reference    string `json:"reference"`
	GuestName    string `json:"guestName"`
	GuestEmail   string `json:"guestEmail"`
	RetreatTitle string `json:"retreatTitle"`
	Locale       string `json:"locale"`
}

// ContactAckPayload carries what the contact acknowledgement email needs.
// Subject feeds the staff notification, not the visitor ack.
type ContactAckPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Locale  string `json:"locale"`
}

// NewBookingConfirmedEmailTask builds the confirmation email task.
func NewBookingConfirmedEmailTask(p BookingConfirmedPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal booking confirmed payload: %w", err)
	}
	return asynq.NewTask(TypeBookingConfirmedEmail, raw, asynq.Queue(QueueEmails), asynq.MaxRetry(5)), nil
}

// NewContactAckEmailTask builds the contact acknowledgement email task.
func NewContactAckEmailTask(p ContactAckPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal contact ack payload: %w", err)
	}
	return asynq.NewTask(TypeContactAckEmail, raw, asynq.Queue(QueueEmails), asynq.MaxRetry(5)), nil
}

// NewExpireBookingsTask builds the periodic booking expiry sweep task.
func NewExpireBookingsTask() *asynq.Task {
	return asynq.NewTask(TypeExpireBookings, nil, asynq.Queue(QueueDefault))
}

// NewWarmSitemapTask builds the periodic sitemap cache warm task.
func NewWarmSitemapTask() *asynq.Task {
	return asynq.NewTask(TypeWarmSitemap, nil, asynq.Queue(QueueDefault))
}
