package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/agricare/agricare-backend/pkg/config"
	"github.com/agricare/agricare-backend/pkg/database"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// TestSchema is an isolated PostgreSQL schema created for one test, with a
// dedicated connection whose search_path points at it.
type TestSchema struct {
	Name  string
	RawDB *sqlx.DB
	DB    *database.DB
}

// Close closes the schema-scoped connections
func (ts *TestSchema) Close() {
	if ts.RawDB != nil {
		ts.RawDB.Close()
	}
}

// SchemaManager creates and drops per-test schemas on a shared container.
// Each test gets its own schema so tests can run in parallel without
// stepping on each other's data.
type SchemaManager struct {
	admin   *sqlx.DB
	baseDSN string
	schemas []string
	seq     int
	mu      sync.Mutex
}

// NewSchemaManager creates a new schema manager for tests
func NewSchemaManager(admin *sqlx.DB, baseDSN string) *SchemaManager {
	return &SchemaManager{
		admin:   admin,
		baseDSN: baseDSN,
		schemas: make([]string, 0),
	}
}

// CreateSchema creates an isolated schema, applies the given migrations in
// it, and returns a connection scoped to it.
//
// Usage:
//
//	sm := testutil.NewSchemaManager(db, container.DSN)
//	ts, err := sm.CreateSchema(ctx, "receiving", testutil.PharmacyMigrations())
func (sm *SchemaManager) CreateSchema(ctx context.Context, name string, migrations []string) (*TestSchema, error) {
	sm.mu.Lock()
	sm.seq++
	schemaName := fmt.Sprintf("test_%s_%d", sanitizeSchemaName(name), sm.seq)
	sm.schemas = append(sm.schemas, schemaName)
	sm.mu.Unlock()

	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	// Open a dedicated connection whose search_path is pinned to the schema
	dsn := config.DSNWithSearchPath(sm.baseDSN, schemaName)
	raw, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test schema: %w", err)
	}

	for _, migration := range migrations {
		if _, err := raw.ExecContext(ctx, migration); err != nil {
			raw.Close()
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	log := logger.Nop()
	wrapped, err := database.NewWithDSN(dsn, log)
	if err != nil {
		raw.Close()
		return nil, err
	}

	return &TestSchema{
		Name:  schemaName,
		RawDB: raw,
		DB:    wrapped,
	}, nil
}

// DropSchema removes a test schema completely
func (sm *SchemaManager) DropSchema(ctx context.Context, ts *TestSchema) error {
	ts.Close()

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", ts.Name)); err != nil {
		return fmt.Errorf("failed to drop test schema: %w", err)
	}

	for i, tracked := range sm.schemas {
		if tracked == ts.Name {
			sm.schemas = append(sm.schemas[:i], sm.schemas[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup drops all schemas created by this manager.
// Call this in TestMain or test cleanup.
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var lastErr error
	for _, name := range sm.schemas {
		if _, err := sm.admin.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", name)); err != nil {
			lastErr = err
		}
	}

	sm.schemas = make([]string, 0)
	return lastErr
}

func sanitizeSchemaName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, " ", "_")
	return name
}

// PharmacyMigrations returns the pharmacy service migrations for tests
func PharmacyMigrations() []string {
	return []string{
		// Medicine catalog (read-only reference data in this service)
		`CREATE TABLE IF NOT EXISTS medicines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			unit VARCHAR(50) NOT NULL,
			reorder_level DECIMAL(12,2) NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Supplier registry
		`CREATE TABLE IF NOT EXISTS suppliers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			code VARCHAR(50) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Date-scoped counter backing document numbering
		`CREATE TABLE IF NOT EXISTS receiving_sequences (
			seq_date DATE PRIMARY KEY,
			last_seq INT NOT NULL DEFAULT 0
		)`,

		// Receiving documents
		`CREATE TABLE IF NOT EXISTS receiving_documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			doc_number VARCHAR(20) UNIQUE NOT NULL,
			receiving_date DATE NOT NULL,
			supplier_id UUID NOT NULL REFERENCES suppliers(id),
			invoice_no VARCHAR(100),
			po_no VARCHAR(100),
			notes TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'draft'
				CONSTRAINT receiving_documents_status_valid
				CHECK (status IN ('draft', 'verified', 'posted')),
			received_by UUID NOT NULL,
			verified_by UUID,
			verified_at TIMESTAMPTZ,
			posted_by UUID,
			posted_at TIMESTAMPTZ,
			line_count INT NOT NULL DEFAULT 0,
			total_quantity DECIMAL(14,2) NOT NULL DEFAULT 0,
			total_amount DECIMAL(14,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Receiving lines
		`CREATE TABLE IF NOT EXISTS receiving_lines (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			document_id UUID NOT NULL REFERENCES receiving_documents(id) ON DELETE CASCADE,
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			batch_code VARCHAR(100) NOT NULL,
			quantity DECIMAL(12,2) NOT NULL
				CONSTRAINT receiving_lines_quantity_positive CHECK (quantity > 0),
			unit_cost DECIMAL(12,2) NOT NULL DEFAULT 0
				CONSTRAINT receiving_lines_unit_cost_non_negative CHECK (unit_cost >= 0),
			expiry_date DATE NOT NULL,
			manufacture_date DATE,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Stock lots, one row per (medicine, batch)
		`CREATE TABLE IF NOT EXISTS stock_lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			medicine_id UUID NOT NULL REFERENCES medicines(id),
			batch_code VARCHAR(100) NOT NULL,
			on_hand DECIMAL(12,2) NOT NULL DEFAULT 0,
			reserved DECIMAL(12,2) NOT NULL DEFAULT 0,
			unit_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
			expiry_date DATE NOT NULL,
			manufacture_date DATE,
			document_id UUID REFERENCES receiving_documents(id),
			storage_location VARCHAR(100),
			status VARCHAR(20) NOT NULL DEFAULT 'available'
				CONSTRAINT stock_lots_status_valid
				CHECK (status IN ('available', 'damaged', 'recalled')),
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_lots_medicine_id_batch_code_key UNIQUE (medicine_id, batch_code),
			CONSTRAINT stock_lots_reserved_within_on_hand CHECK (reserved >= 0 AND reserved <= on_hand)
		)`,

		// Manual lot status adjustments (audit trail)
		`CREATE TABLE IF NOT EXISTS lot_adjustments (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			lot_id UUID NOT NULL REFERENCES stock_lots(id) ON DELETE CASCADE,
			from_status VARCHAR(20) NOT NULL,
			to_status VARCHAR(20) NOT NULL,
			reason TEXT NOT NULL,
			performed_by UUID NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Event-synced user cache for actor display names
		`CREATE TABLE IF NOT EXISTS user_cache (
			user_id UUID PRIMARY KEY,
			first_name VARCHAR(100) NOT NULL DEFAULT '',
			last_name VARCHAR(100) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			role_name VARCHAR(100) NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_receiving_documents_status ON receiving_documents(status)`,
		`CREATE INDEX IF NOT EXISTS idx_receiving_documents_date ON receiving_documents(receiving_date)`,
		`CREATE INDEX IF NOT EXISTS idx_receiving_lines_document ON receiving_lines(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_lots_medicine ON stock_lots(medicine_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_lots_expiry ON stock_lots(expiry_date)`,
		`CREATE INDEX IF NOT EXISTS idx_lot_adjustments_lot ON lot_adjustments(lot_id)`,
	}
}
