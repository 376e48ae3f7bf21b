package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		id    string
		table string
		key   string
		kind  UserKind
	}{
		{"cli-123456", "clients", "client_id", KindClient},
		{"libra-000001", "librarians", "librarian_id", KindLibrarian},
		{"admin-000001", "librarians", "librarian_id", KindAdmin},
		{"cli-with-more-hyphens", "clients", "client_id", KindClient},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r, err := Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.table, r.Table)
			assert.Equal(t, tt.key, r.Key)
			assert.Equal(t, tt.kind, r.Kind)
		})
	}
}

func TestResolveRejectsUnknownPrefixes(t *testing.T) {
	for _, id := range []string{"xyz-000001", "cli000001", "", "-000001", "CLI-000001", "itm-000001"} {
		_, err := Resolve(id)
		assert.ErrorIs(t, err, ErrRouting, "id %q", id)
	}
}

func TestRouteCollectionsAllowUserFieldsOnly(t *testing.T) {
	r, err := Resolve("libra-000001")
	require.NoError(t, err)
	assert.NotContains(t, r.Updatable, "password")
	assert.NotContains(t, r.Updatable, "librarian_id")
	assert.Contains(t, r.Updatable, "email")
}
