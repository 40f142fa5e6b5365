package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/agricare/agricare-backend/pkg/database"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Document statuses
const (
	DocStatusDraft    = "draft"
	DocStatusVerified = "verified"
	DocStatusPosted   = "posted"
)

// ReceivingDocument is a goods-receipt document for medicines. It moves
// draft -> verified -> posted; only posting touches the stock ledger.
type ReceivingDocument struct {
	ID            string          `db:"id" json:"id"`
	DocNumber     string          `db:"doc_number" json:"doc_number"`
	ReceivingDate time.Time       `db:"receiving_date" json:"receiving_date"`
	SupplierID    string          `db:"supplier_id" json:"supplier_id"`
	InvoiceNo     *string         `db:"invoice_no" json:"invoice_no,omitempty"`
	PONo          *string         `db:"po_no" json:"po_no,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	Status        string          `db:"status" json:"status"`
	ReceivedBy    string          `db:"received_by" json:"received_by"`
	VerifiedBy    *string         `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt    *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
	PostedBy      *string         `db:"posted_by" json:"posted_by,omitempty"`
	PostedAt      *time.Time      `db:"posted_at" json:"posted_at,omitempty"`
	LineCount     int             `db:"line_count" json:"line_count"`
	TotalQuantity decimal.Decimal `db:"total_quantity" json:"total_quantity"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ReceivingLine is one medicine batch on a receiving document
type ReceivingLine struct {
	ID              string          `db:"id" json:"id"`
	DocumentID      string          `db:"document_id" json:"document_id"`
	MedicineID      string          `db:"medicine_id" json:"medicine_id"`
	BatchCode       string          `db:"batch_code" json:"batch_code"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExpiryDate      time.Time       `db:"expiry_date" json:"expiry_date"`
	ManufactureDate *time.Time      `db:"manufacture_date" json:"manufacture_date,omitempty"`
	Notes           *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Amount returns quantity * unit cost for the line
func (l *ReceivingLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// DocumentFilter narrows document listings. Search matches the document
// number or invoice number.
type DocumentFilter struct {
	Status     string
	SupplierID string
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	Limit      int
	Offset     int
}

// DocumentRepository handles receiving document persistence
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// allocateDocNumber hands out the next number for the receiving date. The
// upsert on the per-date counter row takes a row lock, so two transactions
// creating documents for the same date serialize here and each sees its own
// sequence value. The unique constraint on doc_number backs this up.
func allocateDocNumber(ctx context.Context, tx *sqlx.Tx, date time.Time) (string, error) {
	var seq int
	query := `
		INSERT INTO receiving_sequences (seq_date, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (seq_date) DO UPDATE SET last_seq = receiving_sequences.last_seq + 1
		RETURNING last_seq
	`
	if err := tx.QueryRowxContext(ctx, query, date).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("RCV-%s-%04d", date.Format("20060102"), seq), nil
}

// Create creates a receiving document with its initial lines. Number
// allocation, the document row, and all line rows commit in one transaction.
func (r *DocumentRepository) Create(ctx context.Context, doc *ReceivingDocument, lines []*ReceivingLine) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.Status = DocStatusDraft
	applyTotals(doc, lines)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		number, err := allocateDocNumber(ctx, tx, doc.ReceivingDate)
		if err != nil {
			return err
		}
		doc.DocNumber = number

		query := `
			INSERT INTO receiving_documents (
				id, doc_number, receiving_date, supplier_id, invoice_no, po_no, notes,
				status, received_by, line_count, total_quantity, total_amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			doc.ID, doc.DocNumber, doc.ReceivingDate, doc.SupplierID, doc.InvoiceNo,
			doc.PONo, doc.Notes, doc.Status, doc.ReceivedBy,
			doc.LineCount, doc.TotalQuantity, doc.TotalAmount,
		).Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return err
		}

		for _, line := range lines {
			if err := insertLine(ctx, tx, doc.ID, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

func insertLine(ctx context.Context, tx *sqlx.Tx, documentID string, line *ReceivingLine) error {
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	line.DocumentID = documentID

	query := `
		INSERT INTO receiving_lines (
			id, document_id, medicine_id, batch_code, quantity, unit_cost,
			expiry_date, manufacture_date, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	return tx.QueryRowxContext(ctx, query,
		line.ID, line.DocumentID, line.MedicineID, line.BatchCode, line.Quantity,
		line.UnitCost, line.ExpiryDate, line.ManufactureDate, line.Notes,
	).Scan(&line.CreatedAt, &line.UpdatedAt)
}

func applyTotals(doc *ReceivingDocument, lines []*ReceivingLine) {
	doc.LineCount = len(lines)
	doc.TotalQuantity = decimal.Zero
	doc.TotalAmount = decimal.Zero
	for _, line := range lines {
		doc.TotalQuantity = doc.TotalQuantity.Add(line.Quantity)
		doc.TotalAmount = doc.TotalAmount.Add(line.Amount())
	}
}

// GetByID gets a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*ReceivingDocument, error) {
	var doc ReceivingDocument
	query := `SELECT * FROM receiving_documents WHERE id = $1`
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("receiving document")
		}
		return nil, err
	}
	return &doc, nil
}

// GetByNumber gets a document by its document number
func (r *DocumentRepository) GetByNumber(ctx context.Context, docNumber string) (*ReceivingDocument, error) {
	var doc ReceivingDocument
	query := `SELECT * FROM receiving_documents WHERE doc_number = $1`
	if err := r.db.GetContext(ctx, &doc, query, docNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("receiving document")
		}
		return nil, err
	}
	return &doc, nil
}

// GetLines lists a document's lines in creation order
func (r *DocumentRepository) GetLines(ctx context.Context, documentID string) ([]*ReceivingLine, error) {
	var lines []*ReceivingLine
	query := `
		SELECT * FROM receiving_lines
		WHERE document_id = $1
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &lines, query, documentID); err != nil {
		return nil, err
	}
	return lines, nil
}

// List lists documents matching the filter, newest first
func (r *DocumentRepository) List(ctx context.Context, filter DocumentFilter) ([]*ReceivingDocument, int64, error) {
	where := `
		WHERE ($1 = '' OR status = $1)
		AND ($2 = '' OR supplier_id::text = $2)
		AND ($3::date IS NULL OR receiving_date >= $3)
		AND ($4::date IS NULL OR receiving_date <= $4)
		AND ($5 = '' OR doc_number ILIKE '%' || $5 || '%' OR invoice_no ILIKE '%' || $5 || '%')
	`

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM receiving_documents `+where,
		filter.Status, filter.SupplierID, filter.DateFrom, filter.DateTo, filter.Search); err != nil {
		return nil, 0, err
	}

	var docs []*ReceivingDocument
	query := `SELECT * FROM receiving_documents ` + where + `
		ORDER BY receiving_date DESC, doc_number DESC
		LIMIT $6 OFFSET $7
	`
	if err := r.db.SelectContext(ctx, &docs, query,
		filter.Status, filter.SupplierID, filter.DateFrom, filter.DateTo, filter.Search,
		filter.Limit, filter.Offset); err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// lockDraft locks the document row and checks it is still a draft. Line
// mutations and verification run against the locked row, so a concurrent
// verify and line edit cannot interleave.
func lockDraft(ctx context.Context, tx *sqlx.Tx, documentID, operation string) (*ReceivingDocument, error) {
	var doc ReceivingDocument
	if err := tx.GetContext(ctx, &doc,
		`SELECT * FROM receiving_documents WHERE id = $1 FOR UPDATE`, documentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("receiving document")
		}
		return nil, err
	}
	if doc.Status != DocStatusDraft {
		return nil, errors.InvalidState(doc.Status, operation)
	}
	return &doc, nil
}

// recomputeTotals refreshes the cached totals from the line rows
func recomputeTotals(ctx context.Context, tx *sqlx.Tx, documentID string) error {
	query := `
		UPDATE receiving_documents d SET
			line_count = t.cnt,
			total_quantity = t.qty,
			total_amount = t.amount,
			updated_at = NOW()
		FROM (
			SELECT
				COUNT(*) AS cnt,
				COALESCE(SUM(quantity), 0) AS qty,
				COALESCE(SUM(quantity * unit_cost), 0) AS amount
			FROM receiving_lines WHERE document_id = $1
		) t
		WHERE d.id = $1
	`
	_, err := tx.ExecContext(ctx, query, documentID)
	return err
}

// AddLine appends a line to a draft document
func (r *DocumentRepository) AddLine(ctx context.Context, documentID string, line *ReceivingLine) error {
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockDraft(ctx, tx, documentID, "add line"); err != nil {
			return err
		}
		if err := insertLine(ctx, tx, documentID, line); err != nil {
			return err
		}
		return recomputeTotals(ctx, tx, documentID)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// UpdateLine edits a line on a draft document
func (r *DocumentRepository) UpdateLine(ctx context.Context, documentID string, line *ReceivingLine) error {
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockDraft(ctx, tx, documentID, "edit line"); err != nil {
			return err
		}

		query := `
			UPDATE receiving_lines SET
				medicine_id = $3, batch_code = $4, quantity = $5, unit_cost = $6,
				expiry_date = $7, manufacture_date = $8, notes = $9, updated_at = NOW()
			WHERE id = $1 AND document_id = $2
		`
		result, err := tx.ExecContext(ctx, query,
			line.ID, documentID, line.MedicineID, line.BatchCode, line.Quantity,
			line.UnitCost, line.ExpiryDate, line.ManufactureDate, line.Notes,
		)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("receiving line")
		}

		return recomputeTotals(ctx, tx, documentID)
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// DeleteLine removes a line from a draft document. A draft may end up with
// no lines; verification is where emptiness is rejected.
func (r *DocumentRepository) DeleteLine(ctx context.Context, documentID, lineID string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := lockDraft(ctx, tx, documentID, "remove line"); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM receiving_lines WHERE id = $1 AND document_id = $2`, lineID, documentID)
		if err != nil {
			return err
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("receiving line")
		}

		return recomputeTotals(ctx, tx, documentID)
	})
}

// Verify moves a draft document to verified. Empty documents are rejected.
func (r *DocumentRepository) Verify(ctx context.Context, documentID, verifiedBy string) (*ReceivingDocument, error) {
	var doc *ReceivingDocument
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		locked, err := lockDraft(ctx, tx, documentID, "verify")
		if err != nil {
			return err
		}
		if locked.LineCount == 0 {
			return errors.EmptyDocument()
		}

		query := `
			UPDATE receiving_documents
			SET status = $2, verified_by = $3, verified_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`
		var updated ReceivingDocument
		if err := tx.QueryRowxContext(ctx, query, documentID, DocStatusVerified, verifiedBy).StructScan(&updated); err != nil {
			return err
		}
		doc = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Post moves a verified document to posted and applies every line to the
// stock ledger in the same transaction. Lots are keyed by (medicine, batch):
// a new pair creates a lot, an existing pair gains on-hand quantity and
// takes the incoming line's cost (last write wins). The batch's expiry and
// manufacture dates keep their first recorded values.
func (r *DocumentRepository) Post(ctx context.Context, documentID, postedBy string) (*ReceivingDocument, []string, error) {
	var doc *ReceivingDocument
	var lotIDs []string

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var locked ReceivingDocument
		if err := tx.GetContext(ctx, &locked,
			`SELECT * FROM receiving_documents WHERE id = $1 FOR UPDATE`, documentID); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("receiving document")
			}
			return err
		}
		if locked.Status != DocStatusVerified {
			return errors.InvalidState(locked.Status, "post")
		}

		var lines []*ReceivingLine
		if err := tx.SelectContext(ctx, &lines,
			`SELECT * FROM receiving_lines WHERE document_id = $1 ORDER BY created_at, id`, documentID); err != nil {
			return err
		}

		upsert := `
			INSERT INTO stock_lots (
				id, medicine_id, batch_code, on_hand, unit_cost,
				expiry_date, manufacture_date, document_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (medicine_id, batch_code) DO UPDATE SET
				on_hand = stock_lots.on_hand + EXCLUDED.on_hand,
				unit_cost = EXCLUDED.unit_cost,
				document_id = EXCLUDED.document_id,
				updated_at = NOW()
			RETURNING id
		`
		lotIDs = make([]string, 0, len(lines))
		for _, line := range lines {
			var lotID string
			if err := tx.QueryRowxContext(ctx, upsert,
				uuid.New().String(), line.MedicineID, line.BatchCode, line.Quantity,
				line.UnitCost, line.ExpiryDate, line.ManufactureDate, documentID,
			).Scan(&lotID); err != nil {
				return err
			}
			lotIDs = append(lotIDs, lotID)
		}

		query := `
			UPDATE receiving_documents
			SET status = $2, posted_by = $3, posted_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`
		var updated ReceivingDocument
		if err := tx.QueryRowxContext(ctx, query, documentID, DocStatusPosted, postedBy).StructScan(&updated); err != nil {
			return err
		}
		doc = &updated
		return nil
	})
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, nil, appErr
		}
		return nil, nil, err
	}
	return doc, lotIDs, nil
}
