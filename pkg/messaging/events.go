package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// User events (consumed from the user service for the local user cache)
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"

	// Receiving document events
	EventReceivingCreated  = "pharmacy.receiving.created"
	EventReceivingVerified = "pharmacy.receiving.verified"
	EventReceivingPosted   = "pharmacy.receiving.posted"

	// Stock ledger events
	EventStockReserved    = "pharmacy.stock.reserved"
	EventStockReleased    = "pharmacy.stock.released"
	EventStockConsumed    = "pharmacy.stock.consumed"
	EventLotStatusChanged = "pharmacy.lot.status_changed"

	// Alert events
	EventLowStockAlert = "pharmacy.alert.low_stock"
	EventExpiryAlert   = "pharmacy.alert.expiring"
)

// Exchange names
const (
	ExchangeUserEvents     = "user.events"
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// User Events

// UserCreatedEvent is published when a user is created
type UserCreatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// FullName returns the user's full name
func (e *UserCreatedEvent) FullName() string {
	return e.FirstName + " " + e.LastName
}

// UserUpdatedEvent is published when a user is updated
type UserUpdatedEvent struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	RoleName  string `json:"role_name"`
}

// UserDeletedEvent is published when a user is deleted
type UserDeletedEvent struct {
	UserID string `json:"user_id"`
}

// Receiving Events

// ReceivingCreatedEvent is published when a receiving document is created
type ReceivingCreatedEvent struct {
	DocumentID    string `json:"document_id"`
	DocNumber     string `json:"doc_number"`
	SupplierID    string `json:"supplier_id"`
	ReceivingDate string `json:"receiving_date"`
	LineCount     int    `json:"line_count"`
	TotalAmount   string `json:"total_amount"`
	ReceivedBy    string `json:"received_by"`
}

// ReceivingVerifiedEvent is published when a receiving document is verified
type ReceivingVerifiedEvent struct {
	DocumentID string `json:"document_id"`
	DocNumber  string `json:"doc_number"`
	VerifiedBy string `json:"verified_by"`
}

// ReceivingPostedEvent is published when a receiving document is posted to
// the stock ledger
type ReceivingPostedEvent struct {
	DocumentID  string   `json:"document_id"`
	DocNumber   string   `json:"doc_number"`
	PostedBy    string   `json:"posted_by"`
	LotIDs      []string `json:"lot_ids"`
	TotalAmount string   `json:"total_amount"`
}

// Stock Events

// StockReservedEvent is published when stock is reserved for an issue
type StockReservedEvent struct {
	MedicineID  string                 `json:"medicine_id"`
	Quantity    string                 `json:"quantity"`
	Allocations []StockAllocationEntry `json:"allocations"`
	ReservedBy  string                 `json:"reserved_by"`
}

// StockAllocationEntry is one lot's share of a reservation
type StockAllocationEntry struct {
	LotID     string `json:"lot_id"`
	BatchCode string `json:"batch_code"`
	Quantity  string `json:"quantity"`
}

// StockReleasedEvent is published when a reservation is released back
type StockReleasedEvent struct {
	LotID      string `json:"lot_id"`
	MedicineID string `json:"medicine_id"`
	Quantity   string `json:"quantity"`
	ReleasedBy string `json:"released_by"`
}

// StockConsumedEvent is published when reserved stock leaves the warehouse
type StockConsumedEvent struct {
	LotID      string `json:"lot_id"`
	MedicineID string `json:"medicine_id"`
	Quantity   string `json:"quantity"`
	ConsumedBy string `json:"consumed_by"`
}

// LotStatusChangedEvent is published on a manual lot status adjustment
type LotStatusChangedEvent struct {
	LotID       string `json:"lot_id"`
	MedicineID  string `json:"medicine_id"`
	BatchCode   string `json:"batch_code"`
	FromStatus  string `json:"from_status"`
	ToStatus    string `json:"to_status"`
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by"`
}

// Alert Events

// LowStockAlertEvent is published when available stock drops below the
// medicine's reorder level
type LowStockAlertEvent struct {
	MedicineID   string `json:"medicine_id"`
	MedicineName string `json:"medicine_name"`
	Available    string `json:"available"`
	ReorderLevel string `json:"reorder_level"`
}

// ExpiryAlertEvent is published when a lot is nearing its expiry date
type ExpiryAlertEvent struct {
	LotID        string    `json:"lot_id"`
	MedicineID   string    `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	BatchCode    string    `json:"batch_code"`
	ExpiryDate   time.Time `json:"expiry_date"`
	DaysUntil    int       `json:"days_until"`
	OnHand       string    `json:"on_hand"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
