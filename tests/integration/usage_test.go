//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipegate/tests/integration/dbassert"
)

func loadLedger(t *testing.T, f *TestServerFixture, key string) dbassert.LedgerRecord {
	t.Helper()
	switch f.DBType {
	case "postgresql":
		return dbassert.LedgerFromPostgreSQL(t, f.PgPool, key)
	default:
		return dbassert.LedgerFromMongoDB(t, f.MongoDb, key)
	}
}

func TestLedger_PersistsCallsAndCacheHits(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mongodb"} {
		t.Run(dbType, func(t *testing.T) {
			key := "it:" + dbType + ":persist"
			f := SetupTestServer(t, TestServerConfig{DBType: dbType, StorageKey: key})

			code, body := getJSON(t, f.ServerURL+"/v1/recipes/search?query=pasta")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "api", body["source"])

			code, body = getJSON(t, f.ServerURL+"/v1/recipes/search?query=pasta")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "cache", body["source"])

			code, _ = getJSON(t, f.ServerURL+"/v1/recipes/101")
			require.Equal(t, http.StatusOK, code)

			assert.Equal(t, 2, f.Upstream.Calls())

			rec := loadLedger(t, f, key)
			assert.Equal(t, 2, rec.Calls)
			assert.Equal(t, 1, rec.CachedHits)
			assert.Equal(t, 1, rec.EndpointCounts["search"])
			assert.NotEmpty(t, rec.Date)
		})
	}
}

func TestLedger_SurvivesRestart(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mongodb"} {
		t.Run(dbType, func(t *testing.T) {
			key := "it:" + dbType + ":restart"
			f := SetupTestServer(t, TestServerConfig{DBType: dbType, StorageKey: key})

			code, _ := getJSON(t, f.ServerURL+"/v1/recipes/search?query=soup")
			require.Equal(t, http.StatusOK, code)

			f.Restart(t)

			code, body := getJSON(t, f.ServerURL+"/v1/usage")
			require.Equal(t, http.StatusOK, code)
			usage := body["usage"].(map[string]any)
			assert.Equal(t, float64(1), usage["calls"])
			assert.Equal(t, float64(149), usage["remaining"])
		})
	}
}

func TestLedger_QuotaGateServesLocalCatalog(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mongodb"} {
		t.Run(dbType, func(t *testing.T) {
			key := "it:" + dbType + ":quota"
			f := SetupTestServer(t, TestServerConfig{DBType: dbType, StorageKey: key, DailyLimit: 1})

			code, body := getJSON(t, f.ServerURL+"/v1/recipes/search?query=pasta")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "api", body["source"])

			code, body = getJSON(t, f.ServerURL+"/v1/recipes/search?query=rice")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "local", body["source"])

			code, _ = getJSON(t, f.ServerURL+"/v1/recipes/101")
			assert.Equal(t, http.StatusTooManyRequests, code)

			assert.Equal(t, 1, f.Upstream.Calls())
			assert.Equal(t, 1, loadLedger(t, f, key).Calls)
		})
	}
}

func TestLedger_AdminReset(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mongodb"} {
		t.Run(dbType, func(t *testing.T) {
			key := "it:" + dbType + ":reset"
			f := SetupTestServer(t, TestServerConfig{DBType: dbType, StorageKey: key, AdminKey: "secret"})

			code, _ := getJSON(t, f.ServerURL+"/v1/recipes/search?query=stew")
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, 1, loadLedger(t, f, key).Calls)

			req, err := http.NewRequest(http.MethodPost, f.ServerURL+"/admin/usage/reset", nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			req.Header.Set("Authorization", "Bearer secret")
			resp, err = http.DefaultClient.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			assert.Equal(t, 0, loadLedger(t, f, key).Calls)
		})
	}
}
