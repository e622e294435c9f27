package models

import "time"

// DailyReport aggregates the updates received over one reporting period.
type DailyReport struct {
	Date             time.Time      `bson:"date" json:"date"`
	Counts           map[string]int `bson:"counts" json:"counts"`
	Total            int            `bson:"total" json:"total"`
	FailedDeliveries int            `bson:"failed_deliveries" json:"failed_deliveries"`
	HandlerFailures  int            `bson:"handler_failures" json:"handler_failures"`
	CreatedAt        time.Time      `bson:"created_at" json:"created_at"`
}

// UpdateRecord is the audit document stored for every received update.
type UpdateRecord struct {
	UpdateID   string    `bson:"update_id" json:"update_id"`
	Kind       string    `bson:"kind" json:"kind"`
	Sender     string    `bson:"sender,omitempty" json:"sender,omitempty"`
	Timestamp  time.Time `bson:"timestamp" json:"timestamp"`
	Raw        string    `bson:"raw" json:"raw"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}

// FailedDelivery describes an outbound message WhatsApp could not deliver.
type FailedDelivery struct {
	MessageID string
	Recipient string
	Code      int
	Title     string
	Details   string
	At        time.Time
}
