package service_test

import (
	"testing"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validLine() service.LineInput {
	return service.LineInput{
		MedicineID: "5e7f9c37-9d4a-4c85-9f3b-0a4c2e3d1b22",
		BatchCode:  "BATCH-2025-01",
		Quantity:   decimal.NewFromInt(10),
		UnitCost:   decimal.NewFromFloat(2.50),
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	}
}

func TestValidateLineInput_Valid(t *testing.T) {
	assert.Empty(t, service.ValidateLineInput(validLine()))

	// Zero cost is allowed, donations arrive at no cost
	free := validLine()
	free.UnitCost = decimal.Zero
	assert.Empty(t, service.ValidateLineInput(free))
}

func TestValidateLineInput_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*service.LineInput)
		field  string
	}{
		{"missing medicine", func(l *service.LineInput) { l.MedicineID = "" }, "medicine_id"},
		{"missing batch code", func(l *service.LineInput) { l.BatchCode = "" }, "batch_code"},
		{"zero quantity", func(l *service.LineInput) { l.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(l *service.LineInput) { l.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"negative cost", func(l *service.LineInput) { l.UnitCost = decimal.NewFromInt(-1) }, "unit_cost"},
		{"missing expiry", func(l *service.LineInput) { l.ExpiryDate = time.Time{} }, "expiry_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := validLine()
			tt.mutate(&line)
			details := service.ValidateLineInput(line)
			assert.Contains(t, details, tt.field)
		})
	}
}
