package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"registry-workers/internal/dedup"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestElasticsearch(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{server.URL},
		DisableRetry: true,
	})
	require.NoError(t, err)
	return client
}

// esCorpusServer serves a point in time over hits, pageSize hits per search.
type esCorpusServer struct {
	mu        sync.Mutex
	hits      []string
	pageSize  int
	searches  []map[string]interface{}
	pitClosed bool
}

func (s *esCorpusServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodDelete && r.URL.Path == "/_pit":
		s.pitClosed = true
		_, _ = io.WriteString(w, `{"succeeded":true,"num_freed":1}`)
	case strings.HasSuffix(r.URL.Path, "/_pit"):
		_, _ = io.WriteString(w, `{"id":"pit-1"}`)
	case r.URL.Path == "/_search":
		body, _ := io.ReadAll(r.Body)
		var captured map[string]interface{}
		_ = json.Unmarshal(body, &captured)
		s.searches = append(s.searches, captured)

		from := 0
		if after, ok := captured["search_after"].([]interface{}); ok && len(after) == 2 {
			from = int(after[1].(float64)) + 1
		}
		to := min(from+s.pageSize, len(s.hits))
		page := make([]string, 0, to-from)
		for i := from; i < to; i++ {
			page = append(page, strings.Replace(s.hits[i], "__SORT__", fmt.Sprintf(`[0,%d]`, i), 1))
		}
		_, _ = io.WriteString(w, `{"pit_id":"pit-1","hits":{"hits":[`+strings.Join(page, ",")+`]}}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *esCorpusServer) recorded() ([]map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searches, s.pitClosed
}

func createTestHits() []string {
	return []string{
		`{"_id": "rec-b", "sort": __SORT__, "_source": {"createdAt": "2024-01-02T00:00:00Z", "record": {"firstName": "Jon"}}}`,
		`{"_id": "rec-a", "sort": __SORT__, "_source": {"createdAt": "2024-01-02T00:00:00Z", "record": {"firstName": "Juan", "age": 30}}}`,
		`{"_id": "rec-0", "sort": __SORT__, "_source": {"createdAt": "2024-01-01T00:00:00Z", "record": {"firstName": "Ana"}}}`,
	}
}

func TestElasticsearch_RecordsForType(t *testing.T) {
	server := &esCorpusServer{hits: createTestHits(), pageSize: 10}
	client := createTestElasticsearch(t, server.handle)

	provider := NewElasticsearch(client, "registry-records", 0)
	provider.pageSize = 10
	entries, err := provider.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)

	searches, pitClosed := server.recorded()
	require.Len(t, searches, 1)
	captured := searches[0]
	assert.Equal(t, float64(10), captured["size"])
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"entityType": "INDIVIDUAL"}}, captured["query"])
	assert.Equal(t, "pit-1", captured["pit"].(map[string]interface{})["id"])
	assert.NotContains(t, captured, "search_after")
	assert.True(t, pitClosed)

	require.Len(t, entries, 3)
	assert.Equal(t, []string{"rec-0", "rec-a", "rec-b"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.Equal(t, dedup.Number(30), entries[1].Record["age"])
}

func TestElasticsearch_PagesThroughWholeCorpus(t *testing.T) {
	server := &esCorpusServer{hits: createTestHits(), pageSize: 2}
	client := createTestElasticsearch(t, server.handle)

	provider := NewElasticsearch(client, "registry-records", 0)
	provider.pageSize = 2
	entries, err := provider.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)

	searches, pitClosed := server.recorded()
	require.Len(t, searches, 2)
	assert.Equal(t, []interface{}{float64(0), float64(1)}, searches[1]["search_after"])
	require.Len(t, entries, 3)
	assert.Equal(t, "rec-0", entries[0].ID)
	assert.True(t, pitClosed)
}

func TestElasticsearch_MaxRecordsFailsInsteadOfTruncating(t *testing.T) {
	server := &esCorpusServer{hits: createTestHits(), pageSize: 2}
	client := createTestElasticsearch(t, server.handle)

	provider := NewElasticsearch(client, "registry-records", 2)
	provider.pageSize = 2
	entries, err := provider.RecordsForType(context.Background(), "INDIVIDUAL")

	require.Error(t, err)
	assert.Nil(t, entries)
	assert.ErrorIs(t, err, ErrCorpusLimitExceeded)
	assert.ErrorIs(t, err, dedup.ErrCorpusUnavailable)
	_, pitClosed := server.recorded()
	assert.True(t, pitClosed)
}

func TestElasticsearch_MaxRecordsAtLimitLoads(t *testing.T) {
	server := &esCorpusServer{hits: createTestHits(), pageSize: 2}
	client := createTestElasticsearch(t, server.handle)

	provider := NewElasticsearch(client, "registry-records", 3)
	provider.pageSize = 2
	entries, err := provider.RecordsForType(context.Background(), "INDIVIDUAL")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestElasticsearch_NoLimitByDefault(t *testing.T) {
	assert.Equal(t, 0, NewElasticsearch(nil, "idx", 0).maxRecords)
	assert.Equal(t, 0, NewElasticsearch(nil, "idx", -5).maxRecords)
	assert.Equal(t, 25, NewElasticsearch(nil, "idx", 25).maxRecords)
	assert.Equal(t, defaultPageSize, NewElasticsearch(nil, "idx", 25).pageSize)
}

func TestElasticsearch_ErrorResponse(t *testing.T) {
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
	})

	_, err := NewElasticsearch(client, "missing", 10).RecordsForType(context.Background(), "INDIVIDUAL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestElasticsearch_SearchErrorResponse(t *testing.T) {
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_pit") {
			_, _ = io.WriteString(w, `{"id":"pit-1"}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"type":"search_phase_execution_exception"},"status":503}`)
	})

	_, err := NewElasticsearch(client, "registry-records", 0).RecordsForType(context.Background(), "INDIVIDUAL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search corpus failed")
}

func TestElasticsearch_RejectsNestedRecordValues(t *testing.T) {
	client := createTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/_pit") {
			_, _ = io.WriteString(w, `{"id":"pit-1"}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[{"_id":"x","_source":{"record":{"address":{"city":"Lima"}}}}]}}`)
	})

	_, err := NewElasticsearch(client, "registry-records", 10).RecordsForType(context.Background(), "INDIVIDUAL")
	assert.Error(t, err)
}
