package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/menu/internal/config"
	"storefront/menu/internal/endpoint"
)

const subcategoriesBody = `[
	{"_id":"1","name":"Shirts","slug":"shirts","parentCategory":{"name":"Men"}},
	{"_id":"2","name":"Shoes","slug":"shoes","parentCategory":{"name":"Men"}},
	{"_id":"3","name":"Bags","slug":"bags","parentCategory":{"name":"Women"}}
]`

func testConfig() config.BackendConfig {
	return config.BackendConfig{
		SubcategoriesPath:      "/api/subcategories",
		SuggestPath:            "/api/suggest",
		Timeout:                2,
		MaxRetries:             0,
		MaxRequestsPerSecond:   0,
		CircuitBreakerCooldown: 60,
	}
}

func testClient(t *testing.T, urls ...string) *storefrontClient {
	t.Helper()
	return NewStorefrontClient(testConfig(), endpoint.NewStaticPool(urls)).(*storefrontClient)
}

func TestListSubcategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/subcategories", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(subcategoriesBody))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	recs, err := c.ListSubcategories(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Shirts", recs[0].Name)
	assert.Equal(t, "Women", recs[2].ParentName())
}

func TestListSubcategories_ErrorPayloadIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer srv.Close()

	recs, err := testClient(t, srv.URL).ListSubcategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestListSubcategories_FailsOverToNextEndpoint(t *testing.T) {
	var downHits atomic.Int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(subcategoriesBody))
	}))
	defer up.Close()

	c := testClient(t, down.URL, up.URL)

	recs, err := c.ListSubcategories(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, int32(1), downHits.Load())
}

func TestListSubcategories_ClientErrorDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := testClient(t, srv.URL)

	for i := 0; i < failureThreshold+1; i++ {
		_, err := c.ListSubcategories(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	assert.False(t, c.isCircuitBreakerOpen())
}

func TestListSubcategories_CircuitBreakerOpensAndCloses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)

	for i := 0; i < failureThreshold; i++ {
		_, err := c.ListSubcategories(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, int32(failureThreshold), hits.Load())

	_, err := c.ListSubcategories(context.Background())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(failureThreshold), hits.Load(), "open breaker must not hit the backend")

	// expire the breaker
	c.circuitBreakerMutex.Lock()
	c.openUntil = time.Now().Add(-time.Second)
	c.circuitBreakerMutex.Unlock()

	assert.False(t, c.isCircuitBreakerOpen())
	_, err = c.ListSubcategories(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, int32(failureThreshold+1), hits.Load())
}

func TestSuggest_PassesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/suggest", r.URL.Path)
		assert.Equal(t, "red shirt", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"_id":"p1","name":"Red Shirt","slug":"red-shirt"}]`))
	}))
	defer srv.Close()

	out, err := testClient(t, srv.URL).Suggest(context.Background(), "red shirt")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "red-shirt", out[0].Slug)
}

func TestFetch_NoEndpoint(t *testing.T) {
	_, err := testClient(t).ListSubcategories(context.Background())
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(t, srv.URL)
	_, err := c.ListSubcategories(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()
	assert.Equal(t, 0, c.failures)
}
