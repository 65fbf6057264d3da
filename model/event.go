package model

import "time"

type EventType string

const (
	LineAdded   EventType = "lineAdded"
	LineUpdated EventType = "lineUpdated"
	LineRemoved EventType = "lineRemoved"
	BillCreated EventType = "billCreated"
	BillSent    EventType = "billSent"
	BillFailed  EventType = "billFailed"
	CartCleared EventType = "cartCleared"
)

// Event is a notification for the presentation layer. Only the fields
// relevant to Type are populated.
type Event struct {
	Type      EventType `json:"type"`
	Line      CartLine  `json:"line,omitempty"`
	Bill      Bill      `json:"bill,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
