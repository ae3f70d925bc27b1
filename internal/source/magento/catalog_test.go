package magento

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FFD-Group/Tidio-Products/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(baseURL string) *Client {
	return NewClient(config.MagentoConfig{
		BaseURL:     baseURL,
		AuthHeader:  "Bearer test-token",
		SecretName:  "X-Extra-Secret",
		SecretValue: "shh",
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	}, testLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func testCatalog(t *testing.T, baseURL string, pageSize int) *Catalog {
	t.Helper()
	c, err := NewCatalog(testClient(baseURL), config.MagentoConfig{
		PageSize:         pageSize,
		UpdateAgeMinutes: 130,
		Timezone:         "UTC",
	}, testLogger())
	require.NoError(t, err)
	return c
}

func TestFetchProducts_PagesUntilTotal(t *testing.T) {
	items := make([]RawProduct, 5)
	for i := range items {
		items[i] = RawProduct{ID: int64(i + 1), SKU: fmt.Sprintf("SKU-%d", i+1)}
	}

	var pagesServed []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "shh", r.Header.Get("X-Extra-Secret"))

		q := r.URL.Query()
		assert.Equal(t, "status", q.Get("searchCriteria[filter_groups][1][filters][0][field]"))
		assert.Equal(t, "1", q.Get("searchCriteria[filter_groups][1][filters][0][value]"))
		assert.Equal(t, "2,3,4", q.Get("searchCriteria[filter_groups][2][filters][0][value]"))
		assert.Equal(t, "2", q.Get("searchCriteria[pageSize]"))

		page, err := strconv.Atoi(q.Get("searchCriteria[currentPage]"))
		require.NoError(t, err)
		pagesServed = append(pagesServed, page)

		start := (page - 1) * 2
		end := start + 2
		if end > len(items) {
			end = len(items)
		}

		total := len(items)
		writeJSON(t, w, productsResponse{TotalCount: &total, Items: items[start:end]})
	}))
	defer srv.Close()

	got, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), true)

	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "SKU-1", got[0].SKU)
	assert.Equal(t, "SKU-5", got[4].SKU)
	assert.Equal(t, []int{1, 2, 3}, pagesServed)
}

func TestFetchProducts_IncrementalAddsUpdatedAtFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "updated_at", q.Get("searchCriteria[filter_groups][0][filters][0][field]"))
		assert.Equal(t, "gteq", q.Get("searchCriteria[filter_groups][0][filters][0][condition_type]"))

		cutoff, err := time.Parse("2006-01-02 15:04:05", q.Get("searchCriteria[filter_groups][0][filters][0][value]"))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC().Add(-130*time.Minute), cutoff, time.Minute)

		total := 0
		writeJSON(t, w, productsResponse{TotalCount: &total})
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), false)
	require.NoError(t, err)
}

func TestFetchProducts_FullOmitsUpdatedAtFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("searchCriteria[filter_groups][0][filters][0][field]"))

		total := 0
		writeJSON(t, w, productsResponse{TotalCount: &total})
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), true)
	require.NoError(t, err)
}

func TestFetchProducts_ZeroTotalIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		total := 0
		writeJSON(t, w, productsResponse{TotalCount: &total})
	}))
	defer srv.Close()

	got, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), false)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchProducts_MissingTotalCountIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"Invalid attribute","errors":[{"code":42}]}`)
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), false)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Message, "upstream errors")
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		total := 0
		writeJSON(t, w, productsResponse{TotalCount: &total})
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(context.Background(), false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestClient_CancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testCatalog(t, srv.URL, 2).FetchProducts(ctx, false)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
