package events

import (
	"context"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/agricare/agricare-backend/pkg/messaging"
	"github.com/shopspring/decimal"
)

// PharmacyEventPublisher publishes pharmacy events to the message bus.
// Publishing is best-effort: a broker hiccup is logged, never surfaced to
// the caller, because the database transaction has already committed.
type PharmacyEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewPharmacyEventPublisher creates a new pharmacy event publisher
func NewPharmacyEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*PharmacyEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePharmacyEvents, "pharmacy-service", log)
	if err != nil {
		return nil, err
	}

	return &PharmacyEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishReceivingCreated publishes a receiving created event
func (p *PharmacyEventPublisher) PublishReceivingCreated(ctx context.Context, doc *repository.ReceivingDocument) {
	if p == nil {
		return
	}
	data := messaging.ReceivingCreatedEvent{
		DocumentID:    doc.ID,
		DocNumber:     doc.DocNumber,
		SupplierID:    doc.SupplierID,
		ReceivingDate: doc.ReceivingDate.Format("2006-01-02"),
		LineCount:     doc.LineCount,
		TotalAmount:   doc.TotalAmount.String(),
		ReceivedBy:    doc.ReceivedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventReceivingCreated, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", doc.ID).Msg("failed to publish receiving created event")
	}
}

// PublishReceivingVerified publishes a receiving verified event
func (p *PharmacyEventPublisher) PublishReceivingVerified(ctx context.Context, doc *repository.ReceivingDocument) {
	if p == nil {
		return
	}
	verifiedBy := ""
	if doc.VerifiedBy != nil {
		verifiedBy = *doc.VerifiedBy
	}

	data := messaging.ReceivingVerifiedEvent{
		DocumentID: doc.ID,
		DocNumber:  doc.DocNumber,
		VerifiedBy: verifiedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventReceivingVerified, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", doc.ID).Msg("failed to publish receiving verified event")
	}
}

// PublishReceivingPosted publishes a receiving posted event
func (p *PharmacyEventPublisher) PublishReceivingPosted(ctx context.Context, doc *repository.ReceivingDocument, lotIDs []string) {
	if p == nil {
		return
	}
	postedBy := ""
	if doc.PostedBy != nil {
		postedBy = *doc.PostedBy
	}

	data := messaging.ReceivingPostedEvent{
		DocumentID:  doc.ID,
		DocNumber:   doc.DocNumber,
		PostedBy:    postedBy,
		LotIDs:      lotIDs,
		TotalAmount: doc.TotalAmount.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventReceivingPosted, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", doc.ID).Msg("failed to publish receiving posted event")
	}
}

// PublishStockReserved publishes a stock reserved event
func (p *PharmacyEventPublisher) PublishStockReserved(ctx context.Context, medicineID string, quantity decimal.Decimal, allocations []repository.LotAllocation, reservedBy string) {
	if p == nil {
		return
	}
	entries := make([]messaging.StockAllocationEntry, len(allocations))
	for i, alloc := range allocations {
		entries[i] = messaging.StockAllocationEntry{
			LotID:     alloc.LotID,
			BatchCode: alloc.BatchCode,
			Quantity:  alloc.Quantity.String(),
		}
	}

	data := messaging.StockReservedEvent{
		MedicineID:  medicineID,
		Quantity:    quantity.String(),
		Allocations: entries,
		ReservedBy:  reservedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReserved, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", medicineID).Msg("failed to publish stock reserved event")
	}
}

// PublishStockReleased publishes a stock released event
func (p *PharmacyEventPublisher) PublishStockReleased(ctx context.Context, lot *repository.StockLot, quantity decimal.Decimal, releasedBy string) {
	if p == nil {
		return
	}
	data := messaging.StockReleasedEvent{
		LotID:      lot.ID,
		MedicineID: lot.MedicineID,
		Quantity:   quantity.String(),
		ReleasedBy: releasedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockReleased, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish stock released event")
	}
}

// PublishStockConsumed publishes a stock consumed event
func (p *PharmacyEventPublisher) PublishStockConsumed(ctx context.Context, lot *repository.StockLot, quantity decimal.Decimal, consumedBy string) {
	if p == nil {
		return
	}
	data := messaging.StockConsumedEvent{
		LotID:      lot.ID,
		MedicineID: lot.MedicineID,
		Quantity:   quantity.String(),
		ConsumedBy: consumedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockConsumed, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish stock consumed event")
	}
}

// PublishLotStatusChanged publishes a lot status changed event
func (p *PharmacyEventPublisher) PublishLotStatusChanged(ctx context.Context, lot *repository.StockLot, adj *repository.LotAdjustment) {
	if p == nil {
		return
	}
	data := messaging.LotStatusChangedEvent{
		LotID:       lot.ID,
		MedicineID:  lot.MedicineID,
		BatchCode:   lot.BatchCode,
		FromStatus:  adj.FromStatus,
		ToStatus:    adj.ToStatus,
		Reason:      adj.Reason,
		PerformedBy: adj.PerformedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot status changed event")
	}
}

// PublishLowStockAlert publishes a low stock alert event
func (p *PharmacyEventPublisher) PublishLowStockAlert(ctx context.Context, medicine *repository.Medicine, available decimal.Decimal) {
	if p == nil {
		return
	}
	data := messaging.LowStockAlertEvent{
		MedicineID:   medicine.ID,
		MedicineName: medicine.Name,
		Available:    available.String(),
		ReorderLevel: medicine.ReorderLevel.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventLowStockAlert, data); err != nil {
		p.logger.Error().Err(err).Str("medicine_id", medicine.ID).Msg("failed to publish low stock alert event")
	}
}

// PublishExpiryAlert publishes an expiry alert event
func (p *PharmacyEventPublisher) PublishExpiryAlert(ctx context.Context, lot *repository.StockLot, medicineName string, daysUntil int) {
	if p == nil {
		return
	}
	data := messaging.ExpiryAlertEvent{
		LotID:        lot.ID,
		MedicineID:   lot.MedicineID,
		MedicineName: medicineName,
		BatchCode:    lot.BatchCode,
		ExpiryDate:   lot.ExpiryDate,
		DaysUntil:    daysUntil,
		OnHand:       lot.OnHand.String(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventExpiryAlert, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish expiry alert event")
	}
}
