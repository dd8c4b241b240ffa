package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"allergystats/internal/feeds/models"
)

// NewDataService starts a fake data service answering each path with a fixed
// JSON body. Unknown paths return 404.
func NewDataService(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// SnapshotRoutes renders a snapshot as the data service's three feeds.
func SnapshotRoutes(t *testing.T, snap models.Snapshot) map[string]string {
	t.Helper()
	encode := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return string(b)
	}
	return map[string]string{
		"/api/v1/population": encode(map[string]int{"population": snap.Population}),
		"/api/v1/cities":     encode(map[string][]models.CityRecord{"cities": snap.Cities}),
		"/api/v1/allergies":  encode(map[string][]string{"allergies": snap.AllergyNames}),
	}
}
