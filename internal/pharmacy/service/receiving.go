package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/events"
	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// ReceivingService handles the receiving document lifecycle
type ReceivingService struct {
	docRepo      *repository.DocumentRepository
	medicineRepo *repository.MedicineRepository
	supplierRepo *repository.SupplierRepository
	userCache    *repository.UserCacheRepository
	publisher    *events.PharmacyEventPublisher
	logger       *logger.Logger
}

// NewReceivingService creates a new receiving service
func NewReceivingService(
	docRepo *repository.DocumentRepository,
	medicineRepo *repository.MedicineRepository,
	supplierRepo *repository.SupplierRepository,
	userCache *repository.UserCacheRepository,
	publisher *events.PharmacyEventPublisher,
	log *logger.Logger,
) *ReceivingService {
	return &ReceivingService{
		docRepo:      docRepo,
		medicineRepo: medicineRepo,
		supplierRepo: supplierRepo,
		userCache:    userCache,
		publisher:    publisher,
		logger:       log,
	}
}

// LineInput is the caller-supplied data for one receiving line
type LineInput struct {
	MedicineID      string
	BatchCode       string
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	ExpiryDate      time.Time
	ManufactureDate *time.Time
	Notes           *string
}

// CreateDocumentInput is the caller-supplied data for a new receiving document
type CreateDocumentInput struct {
	ReceivingDate time.Time
	SupplierID    string
	InvoiceNo     *string
	PONo          *string
	Notes         *string
	Lines         []LineInput
}

// LineView is a receiving line enriched with catalog data
type LineView struct {
	*repository.ReceivingLine
	MedicineCode string          `json:"medicine_code"`
	MedicineName string          `json:"medicine_name"`
	Unit         string          `json:"unit"`
	Amount       decimal.Decimal `json:"amount"`
}

// DocumentDetail is a receiving document with its lines and resolved actor names
type DocumentDetail struct {
	*repository.ReceivingDocument
	SupplierName   string      `json:"supplier_name"`
	Lines          []*LineView `json:"lines"`
	ReceivedByName *string     `json:"received_by_name,omitempty"`
	VerifiedByName *string     `json:"verified_by_name,omitempty"`
	PostedByName   *string     `json:"posted_by_name,omitempty"`
}

// ValidateLineInput checks one line against the receiving rules. It returns
// a map of field -> problem, empty when the line is valid. Catalog existence
// is checked separately because it needs the database.
func ValidateLineInput(line LineInput) map[string]string {
	details := make(map[string]string)
	if line.MedicineID == "" {
		details["medicine_id"] = "medicine is required"
	}
	if line.BatchCode == "" {
		details["batch_code"] = "batch code is required"
	}
	if !line.Quantity.IsPositive() {
		details["quantity"] = "quantity must be greater than zero"
	}
	if line.UnitCost.IsNegative() {
		details["unit_cost"] = "unit cost cannot be negative"
	}
	if line.ExpiryDate.IsZero() {
		details["expiry_date"] = "expiry date is required"
	}
	return details
}

func (s *ReceivingService) checkLine(ctx context.Context, line LineInput, prefix string, details map[string]string) {
	for field, problem := range ValidateLineInput(line) {
		details[prefix+field] = problem
	}
	if line.MedicineID == "" {
		return
	}

	med, err := s.medicineRepo.GetByID(ctx, line.MedicineID)
	if err != nil {
		details[prefix+"medicine_id"] = "medicine not found"
		return
	}
	if !med.IsActive {
		details[prefix+"medicine_id"] = "medicine is inactive"
	}
}

// CreateDocument creates a draft receiving document with its initial lines
func (s *ReceivingService) CreateDocument(ctx context.Context, input CreateDocumentInput, receivedBy string) (*repository.ReceivingDocument, error) {
	details := make(map[string]string)

	if input.ReceivingDate.IsZero() {
		details["receiving_date"] = "receiving date is required"
	}
	if len(input.Lines) == 0 {
		details["lines"] = "at least one line is required"
	}

	supplier, err := s.supplierRepo.GetByID(ctx, input.SupplierID)
	if err != nil {
		details["supplier_id"] = "supplier not found"
	} else if !supplier.IsActive {
		details["supplier_id"] = "supplier is inactive"
	}

	for i, line := range input.Lines {
		s.checkLine(ctx, line, fmt.Sprintf("lines[%d].", i), details)
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	doc := &repository.ReceivingDocument{
		ReceivingDate: input.ReceivingDate,
		SupplierID:    input.SupplierID,
		InvoiceNo:     input.InvoiceNo,
		PONo:          input.PONo,
		Notes:         input.Notes,
		ReceivedBy:    receivedBy,
	}
	lines := make([]*repository.ReceivingLine, len(input.Lines))
	for i, in := range input.Lines {
		lines[i] = lineFromInput(in)
	}

	if err := s.docRepo.Create(ctx, doc, lines); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("doc_number", doc.DocNumber).
		Int("lines", doc.LineCount).
		Msg("receiving document created")

	s.publisher.PublishReceivingCreated(ctx, doc)
	return doc, nil
}

func lineFromInput(in LineInput) *repository.ReceivingLine {
	return &repository.ReceivingLine{
		MedicineID:      in.MedicineID,
		BatchCode:       in.BatchCode,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		ExpiryDate:      in.ExpiryDate,
		ManufactureDate: in.ManufactureDate,
		Notes:           in.Notes,
	}
}

// GetDocument gets a document with its lines, catalog names, and actor names
func (s *ReceivingService) GetDocument(ctx context.Context, id string) (*DocumentDetail, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lines, err := s.docRepo.GetLines(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &DocumentDetail{
		ReceivingDocument: doc,
		Lines:             make([]*LineView, len(lines)),
	}

	if supplier, err := s.supplierRepo.GetByID(ctx, doc.SupplierID); err == nil {
		detail.SupplierName = supplier.Name
	}

	medicines := make(map[string]*repository.Medicine)
	for i, line := range lines {
		view := &LineView{ReceivingLine: line, Amount: line.Amount()}
		med, ok := medicines[line.MedicineID]
		if !ok {
			if m, lookupErr := s.medicineRepo.GetByID(ctx, line.MedicineID); lookupErr == nil {
				med = m
				medicines[line.MedicineID] = m
			}
		}
		if med != nil {
			view.MedicineCode = med.Code
			view.MedicineName = med.Name
			view.Unit = med.Unit
		}
		detail.Lines[i] = view
	}

	detail.ReceivedByName = s.resolveUserName(ctx, &doc.ReceivedBy)
	detail.VerifiedByName = s.resolveUserName(ctx, doc.VerifiedBy)
	detail.PostedByName = s.resolveUserName(ctx, doc.PostedBy)
	return detail, nil
}

// resolveUserName looks up a display name in the user cache. Cache misses
// are expected (the cache is eventually consistent) and resolve to nil.
func (s *ReceivingService) resolveUserName(ctx context.Context, userID *string) *string {
	if userID == nil || *userID == "" {
		return nil
	}
	cached, err := s.userCache.GetByID(ctx, *userID)
	if err != nil || cached == nil {
		return nil
	}
	name := cached.FullName()
	return &name
}

// ListDocuments lists documents matching the filter, newest first
func (s *ReceivingService) ListDocuments(ctx context.Context, filter repository.DocumentFilter) ([]*repository.ReceivingDocument, int64, error) {
	return s.docRepo.List(ctx, filter)
}

// AddLine appends a line to a draft document
func (s *ReceivingService) AddLine(ctx context.Context, documentID string, input LineInput) (*repository.ReceivingLine, error) {
	details := make(map[string]string)
	s.checkLine(ctx, input, "", details)
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	line := lineFromInput(input)
	if err := s.docRepo.AddLine(ctx, documentID, line); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateLine edits a line on a draft document
func (s *ReceivingService) UpdateLine(ctx context.Context, documentID, lineID string, input LineInput) (*repository.ReceivingLine, error) {
	details := make(map[string]string)
	s.checkLine(ctx, input, "", details)
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	line := lineFromInput(input)
	line.ID = lineID
	if err := s.docRepo.UpdateLine(ctx, documentID, line); err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteLine removes a line from a draft document
func (s *ReceivingService) DeleteLine(ctx context.Context, documentID, lineID string) error {
	return s.docRepo.DeleteLine(ctx, documentID, lineID)
}

// Verify moves a draft document to verified
func (s *ReceivingService) Verify(ctx context.Context, documentID, verifiedBy string) (*repository.ReceivingDocument, error) {
	doc, err := s.docRepo.Verify(ctx, documentID, verifiedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("doc_number", doc.DocNumber).
		Msg("receiving document verified")

	s.publisher.PublishReceivingVerified(ctx, doc)
	return doc, nil
}

// Post moves a verified document to posted, applying its lines to the stock
// ledger. The returned lot IDs are the lots created or incremented.
func (s *ReceivingService) Post(ctx context.Context, documentID, postedBy string) (*repository.ReceivingDocument, []string, error) {
	doc, lotIDs, err := s.docRepo.Post(ctx, documentID, postedBy)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("doc_number", doc.DocNumber).
		Int("lots", len(lotIDs)).
		Msg("receiving document posted")

	s.publisher.PublishReceivingPosted(ctx, doc, lotIDs)
	return doc, lotIDs, nil
}
