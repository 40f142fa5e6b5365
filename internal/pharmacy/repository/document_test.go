package repository_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/agricare/agricare-backend/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}
	defer suite.Cleanup(ctx)
	defer testutil.TerminateContainer(ctx)

	os.Exit(m.Run())
}

// seedCatalog loads a medicine and a supplier into the schema
func seedCatalog(t *testing.T, ctx context.Context, ts *testutil.TestSchema) (testutil.MedicineFixture, testutil.SupplierFixture) {
	t.Helper()
	med := suite.Fixtures.Medicine()
	require.NoError(t, testutil.SeedMedicine(ctx, ts.RawDB, med))
	sup := suite.Fixtures.Supplier()
	require.NoError(t, testutil.SeedSupplier(ctx, ts.RawDB, sup))
	return med, sup
}

func draftDocument(supplierID string, date time.Time) *repository.ReceivingDocument {
	return &repository.ReceivingDocument{
		ReceivingDate: date,
		SupplierID:    supplierID,
		ReceivedBy:    "11111111-1111-1111-1111-111111111111",
	}
}

func draftLine(medicineID, batch string, qty, cost int64) *repository.ReceivingLine {
	return &repository.ReceivingLine{
		MedicineID: medicineID,
		BatchCode:  batch,
		Quantity:   decimal.NewFromInt(qty),
		UnitCost:   decimal.NewFromInt(cost),
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	}
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestDocumentRepository_Create_AllocatesSequentialNumbers(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-numbering")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	date := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first := draftDocument(sup.ID, date)
	require.NoError(t, repo.Create(ctx, first, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))
	assert.Equal(t, "RCV-20250115-0001", first.DocNumber)

	second := draftDocument(sup.ID, date)
	require.NoError(t, repo.Create(ctx, second, []*repository.ReceivingLine{draftLine(med.ID, "B-002", 10, 5)}))
	assert.Equal(t, "RCV-20250115-0002", second.DocNumber)

	// A different date starts its own sequence
	other := draftDocument(sup.ID, date.AddDate(0, 0, 1))
	require.NoError(t, repo.Create(ctx, other, []*repository.ReceivingLine{draftLine(med.ID, "B-003", 10, 5)}))
	assert.Equal(t, "RCV-20250116-0001", other.DocNumber)
}

func TestDocumentRepository_Create_ConcurrentCreationsGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-numbering-concurrent")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	date := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	const workers = 8
	numbers := make(chan string, workers)
	createErrs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := draftDocument(sup.ID, date)
			if err := repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, fmt.Sprintf("B-%03d", i), 10, 5)}); err != nil {
				createErrs <- err
				return
			}
			numbers <- doc.DocNumber
		}(i)
	}
	wg.Wait()
	close(numbers)
	close(createErrs)

	for err := range createErrs {
		t.Errorf("concurrent create failed: %v", err)
	}

	seen := make(map[string]bool)
	for num := range numbers {
		assert.False(t, seen[num], "document number %s allocated twice", num)
		seen[num] = true
	}
	require.Len(t, seen, workers)
	assert.Contains(t, seen, "RCV-20250301-0001")
	assert.Contains(t, seen, fmt.Sprintf("RCV-20250301-%04d", workers))
}

func TestDocumentRepository_Create_ComputesTotals(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-totals")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	doc := draftDocument(sup.ID, time.Now())
	lines := []*repository.ReceivingLine{
		draftLine(med.ID, "B-001", 10, 5),
		draftLine(med.ID, "B-002", 4, 25),
	}
	require.NoError(t, repo.Create(ctx, doc, lines))

	assert.Equal(t, repository.DocStatusDraft, doc.Status)
	assert.Equal(t, 2, doc.LineCount)
	assert.True(t, doc.TotalQuantity.Equal(decimal.NewFromInt(14)))
	assert.True(t, doc.TotalAmount.Equal(decimal.NewFromInt(150)))
}

func TestDocumentRepository_LineMutations_RecomputeTotals(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-lines")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	doc := draftDocument(sup.ID, time.Now())
	require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))

	added := draftLine(med.ID, "B-002", 6, 10)
	require.NoError(t, repo.AddLine(ctx, doc.ID, added))

	refreshed, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed.LineCount)
	assert.True(t, refreshed.TotalAmount.Equal(decimal.NewFromInt(110)))

	added.Quantity = decimal.NewFromInt(3)
	require.NoError(t, repo.UpdateLine(ctx, doc.ID, added))

	refreshed, err = repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.TotalQuantity.Equal(decimal.NewFromInt(13)))
	assert.True(t, refreshed.TotalAmount.Equal(decimal.NewFromInt(80)))

	require.NoError(t, repo.DeleteLine(ctx, doc.ID, added.ID))

	refreshed, err = repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.LineCount)
	assert.True(t, refreshed.TotalAmount.Equal(decimal.NewFromInt(50)))
}

func TestDocumentRepository_Verify_RejectsEmptyDocument(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-verify-empty")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	doc := draftDocument(sup.ID, time.Now())
	line := draftLine(med.ID, "B-001", 10, 5)
	require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{line}))
	require.NoError(t, repo.DeleteLine(ctx, doc.ID, line.ID))

	_, err := repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
	assertAppCode(t, err, "EMPTY_DOCUMENT")
}

func TestDocumentRepository_Verify_MovesDraftToVerified(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-verify")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	doc := draftDocument(sup.ID, time.Now())
	require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))

	verifier := "22222222-2222-2222-2222-222222222222"
	verified, err := repo.Verify(ctx, doc.ID, verifier)
	require.NoError(t, err)
	assert.Equal(t, repository.DocStatusVerified, verified.Status)
	require.NotNil(t, verified.VerifiedBy)
	assert.Equal(t, verifier, *verified.VerifiedBy)
	assert.NotNil(t, verified.VerifiedAt)

	// A verified document no longer accepts line mutations
	err = repo.AddLine(ctx, doc.ID, draftLine(med.ID, "B-002", 1, 1))
	assertAppCode(t, err, "INVALID_STATE")

	// Verifying again is also invalid
	_, err = repo.Verify(ctx, doc.ID, verifier)
	assertAppCode(t, err, "INVALID_STATE")
}

func TestDocumentRepository_Post_AppliesLinesToLedger(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-post")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	lotRepo := repository.NewLotRepository(ts.DB)

	doc := draftDocument(sup.ID, time.Now())
	lines := []*repository.ReceivingLine{
		draftLine(med.ID, "B-001", 10, 5),
		draftLine(med.ID, "B-002", 20, 4),
	}
	require.NoError(t, repo.Create(ctx, doc, lines))
	_, err := repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)

	poster := "33333333-3333-3333-3333-333333333333"
	posted, lotIDs, err := repo.Post(ctx, doc.ID, poster)
	require.NoError(t, err)
	assert.Equal(t, repository.DocStatusPosted, posted.Status)
	require.NotNil(t, posted.PostedBy)
	assert.Equal(t, poster, *posted.PostedBy)
	require.Len(t, lotIDs, 2)

	lots, err := lotRepo.ListByMedicine(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	for _, l := range lots {
		assert.Equal(t, repository.LotStatusAvailable, l.Status)
		require.NotNil(t, l.DocumentID)
		assert.Equal(t, doc.ID, *l.DocumentID)
	}
}

func TestDocumentRepository_Post_UpsertsExistingBatch(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-post-upsert")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	lotRepo := repository.NewLotRepository(ts.DB)

	post := func(qty, cost int64, expiry time.Time) {
		doc := draftDocument(sup.ID, time.Now())
		line := draftLine(med.ID, "B-SAME", qty, cost)
		line.ExpiryDate = expiry
		require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{line}))
		_, err := repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
		require.NoError(t, err)
		_, _, err = repo.Post(ctx, doc.ID, "33333333-3333-3333-3333-333333333333")
		require.NoError(t, err)
	}

	firstExpiry := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	post(10, 5, firstExpiry)
	post(15, 7, firstExpiry.AddDate(0, 3, 0))

	lots, err := lotRepo.ListByMedicine(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].OnHand.Equal(decimal.NewFromInt(25)))
	// Pricing is last write wins
	assert.True(t, lots[0].UnitCost.Equal(decimal.NewFromInt(7)))
	// The batch's expiry date keeps its first recorded value
	assert.Equal(t, "2026-06-30", lots[0].ExpiryDate.Format("2006-01-02"))
}

func TestDocumentRepository_Post_FailedLineRollsBackWholeDocument(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-post-rollback")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	lotRepo := repository.NewLotRepository(ts.DB)

	// A lot already at the on_hand column's capacity: receiving more into the
	// same batch overflows the column and aborts that line's upsert.
	full := suite.Fixtures.StockLot(med.ID, testutil.WithBatchCode("B-FULL"), testutil.WithOnHand(9999999999))
	require.NoError(t, testutil.SeedStockLot(ctx, ts.RawDB, full))

	doc := draftDocument(sup.ID, time.Now())
	lines := []*repository.ReceivingLine{
		draftLine(med.ID, "B-NEW", 10, 5),
		draftLine(med.ID, "B-FULL", 10, 5),
	}
	require.NoError(t, repo.Create(ctx, doc, lines))
	_, err := repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)

	_, _, err = repo.Post(ctx, doc.ID, "33333333-3333-3333-3333-333333333333")
	require.Error(t, err)

	// The document is still verified and carries no posting facts
	refreshed, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.DocStatusVerified, refreshed.Status)
	assert.Nil(t, refreshed.PostedBy)
	assert.Nil(t, refreshed.PostedAt)

	// No line was applied: the new batch's lot does not exist and the
	// existing lot is untouched
	lots, err := lotRepo.ListByMedicine(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "B-FULL", lots[0].BatchCode)
	assert.True(t, lots[0].OnHand.Equal(decimal.NewFromInt(9999999999)))
}

func TestDocumentRepository_Post_RequiresVerified(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-post-state")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)

	doc := draftDocument(sup.ID, time.Now())
	require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))

	// Draft cannot be posted
	_, _, err := repo.Post(ctx, doc.ID, "33333333-3333-3333-3333-333333333333")
	assertAppCode(t, err, "INVALID_STATE")

	_, err = repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	_, _, err = repo.Post(ctx, doc.ID, "33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)

	// Re-posting a posted document fails instead of double-counting stock
	_, _, err = repo.Post(ctx, doc.ID, "33333333-3333-3333-3333-333333333333")
	assertAppCode(t, err, "INVALID_STATE")
}

func TestDocumentRepository_List_Filters(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-list")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	for i := 0; i < 3; i++ {
		doc := draftDocument(sup.ID, time.Now())
		require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, fmt.Sprintf("B-%03d", i), 10, 5)}))
		if i == 0 {
			_, err := repo.Verify(ctx, doc.ID, "22222222-2222-2222-2222-222222222222")
			require.NoError(t, err)
		}
	}

	drafts, total, err := repo.List(ctx, repository.DocumentFilter{Status: repository.DocStatusDraft, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, drafts, 2)

	all, total, err := repo.List(ctx, repository.DocumentFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 2)
}

func TestDocumentRepository_List_SearchesNumberAndInvoice(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-search")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	date := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	invoiced := draftDocument(sup.ID, date)
	invoiceNo := "INV-2025-0042"
	invoiced.InvoiceNo = &invoiceNo
	require.NoError(t, repo.Create(ctx, invoiced, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))

	plain := draftDocument(sup.ID, date)
	require.NoError(t, repo.Create(ctx, plain, []*repository.ReceivingLine{draftLine(med.ID, "B-002", 10, 5)}))

	// A doc number fragment matches regardless of case
	docs, total, err := repo.List(ctx, repository.DocumentFilter{Search: "rcv-20250210-0002", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, plain.ID, docs[0].ID)

	// An invoice number fragment matches too
	docs, total, err = repo.List(ctx, repository.DocumentFilter{Search: "2025-0042", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, docs, 1)
	assert.Equal(t, invoiced.ID, docs[0].ID)

	// No match
	_, total, err = repo.List(ctx, repository.DocumentFilter{Search: "no-such-doc", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestDocumentRepository_GetByNumber(t *testing.T) {
	ctx := context.Background()
	ts := suite.SetupPharmacySchema(t, ctx, "doc-by-number")
	med, sup := seedCatalog(t, ctx, ts)

	repo := repository.NewDocumentRepository(ts.DB)
	doc := draftDocument(sup.ID, time.Now())
	require.NoError(t, repo.Create(ctx, doc, []*repository.ReceivingLine{draftLine(med.ID, "B-001", 10, 5)}))

	found, err := repo.GetByNumber(ctx, doc.DocNumber)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = repo.GetByNumber(ctx, "RCV-19700101-0001")
	assertAppCode(t, err, "NOT_FOUND")
}
