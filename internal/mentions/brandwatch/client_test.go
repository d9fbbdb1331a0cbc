package brandwatch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentionexport/mentionexport/internal/mentions"
	"github.com/mentionexport/mentionexport/internal/mentions/brandwatch"
)

func TestClient_Pages_FollowsCursor(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/42/data/mentions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "brand", r.URL.Query().Get("queryName"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-01-02T00:00:00Z", r.URL.Query().Get("endDate"))
		assert.Equal(t, "5000", r.URL.Query().Get("pageSize"))

		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)

		var response map[string]interface{}
		switch cursor {
		case "":
			response = map[string]interface{}{
				"resultsPage": 0,
				"results":     []map[string]interface{}{{"id": "m1"}, {"id": "m2"}},
				"nextCursor":  "c1",
			}
		case "c1":
			response = map[string]interface{}{
				"resultsPage": 1,
				"results":     []map[string]interface{}{{"id": "m3"}},
				"nextCursor":  "",
			}
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		ProjectID:  "42",
		Token:      "secret",
		HTTPClient: http.DefaultClient,
	})

	q := mentions.Query{
		Name:     "brand",
		Start:    "2024-01-01T00:00:00Z",
		End:      "2024-01-02T00:00:00Z",
		PageSize: 5000,
	}

	var ids []string
	for page, err := range client.Pages(context.Background(), q) {
		require.NoError(t, err)
		for _, rec := range page {
			var m struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(rec, &m))
			ids = append(ids, m.ID)
		}
	}

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, []string{"", "c1"}, cursors)
}

func TestClient_Pages_StopsOnRepeatedCursor(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[],"nextCursor":"same"}`))
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	pages := 0
	for _, err := range client.Pages(context.Background(), mentions.Query{}) {
		require.NoError(t, err)
		pages++
	}

	assert.Equal(t, 2, pages)
	assert.Equal(t, 2, calls)
}

func TestClient_Pages_KeepsRecordBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":[{"z":1,"a":{"b":2}}]}`))
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	var got []string
	for page, err := range client.Pages(context.Background(), mentions.Query{}) {
		require.NoError(t, err)
		for _, rec := range page {
			got = append(got, string(rec))
		}
	}

	assert.Equal(t, []string{`{"z":1,"a":{"b":2}}`}, got)
}

func TestClient_Pages_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	var gotErr error
	for _, err := range client.Pages(context.Background(), mentions.Query{}) {
		gotErr = err
	}

	require.Error(t, gotErr)
	var statusErr *brandwatch.StatusError
	require.ErrorAs(t, gotErr, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, gotErr.Error(), "page 1")
	assert.Contains(t, gotErr.Error(), "bad token")
}

func TestClient_Pages_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	var gotErr error
	for _, err := range client.Pages(context.Background(), mentions.Query{}) {
		gotErr = err
	}

	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "decode mentions response")
}

func TestClient_Pages_ConsumerStopsEarly(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"results":[{"id":1}],"nextCursor":"c` + r.URL.Query().Get("cursor") + `x"}`))
	}))
	defer server.Close()

	client := brandwatch.NewClient(brandwatch.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	for _, err := range client.Pages(context.Background(), mentions.Query{}) {
		require.NoError(t, err)
		break
	}

	assert.Equal(t, 1, calls)
}
