package authz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogEntryModule(t *testing.T) {
	assert.Equal(t, "budget", CatalogEntry{Code: PermBudgetViewCost}.Module())
	assert.Equal(t, "lead", CatalogEntry{Code: PermLeadViewAll}.Module())
	assert.Equal(t, "common", CatalogEntry{Code: "standalone"}.Module())
	assert.Equal(t, "common", CatalogEntry{Code: ":leading"}.Module())
}

func TestCatalogCodesAreWellFormedAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, entry := range Catalog() {
		require.NotEmpty(t, entry.Code)
		assert.Equal(t, strings.ToLower(entry.Code), entry.Code, "codes are lowercase")
		_, dup := seen[entry.Code]
		assert.False(t, dup, "duplicate code %s", entry.Code)
		seen[entry.Code] = struct{}{}
	}
}

func TestDefaultGrantsReferenceCatalogCodes(t *testing.T) {
	known := make(map[string]struct{})
	for _, entry := range Catalog() {
		known[entry.Code] = struct{}{}
	}
	for _, role := range Roles() {
		for _, code := range DefaultGrants(role) {
			_, ok := known[code]
			assert.True(t, ok, "role %s default %s missing from catalog", role, code)
		}
	}
}

func TestDefaultGrantsUnknownRole(t *testing.T) {
	assert.Nil(t, DefaultGrants(Role("GHOST")))
}

func TestCatalogReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Code = "tampered"
	assert.NotEqual(t, "tampered", Catalog()[0].Code)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	// Matching is exact: no trimming, no case folding.
	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = ParseRole(" ADMIN")
	assert.ErrorIs(t, err, ErrInvalidRole)
	_, err = ParseRole("")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestParseRolesRejectsWholeBatch(t *testing.T) {
	roles, err := ParseRoles([]string{"ADMIN", "FINANCE"})
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleAdmin, RoleFinance}, roles)

	_, err = ParseRoles([]string{"ADMIN", "SUPERUSER", "FINANCE"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
