package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/agricare/agricare-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserPermissions_ParsesHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-User-Permissions", "pharmacy.stock.read, pharmacy.stock.adjust ,,reports.*")

	perms := userPermissions(r)
	assert.Equal(t, []string{"pharmacy.stock.read", "pharmacy.stock.adjust", "reports.*"}, perms)
}

func TestUserPermissions_EmptyHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, userPermissions(r))
}

func TestRequirePermission(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-User-Permissions", "pharmacy.stock.*")

	assert.NoError(t, requirePermission(r, "pharmacy.stock.adjust"))

	err := requirePermission(r, "pharmacy.receiving.post")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "FORBIDDEN", appErr.Code)
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/?page=3&per_page=25", nil)
	p := parsePagination(r, 20, 100)
	assert.Equal(t, 25, p.Limit())
	assert.Equal(t, 50, p.Offset())

	// Defaults apply when parameters are missing or out of range
	r = httptest.NewRequest("GET", "/?per_page=5000", nil)
	p = parsePagination(r, 20, 100)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)

	meta := p.Meta(45)
	assert.Equal(t, 3, meta.TotalPages)
	assert.EqualValues(t, 45, meta.Total)
}
