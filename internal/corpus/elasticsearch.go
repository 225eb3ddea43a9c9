// internal/corpus/elasticsearch.go
package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"registry-workers/internal/dedup"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultPageSize = 1000
	pitKeepAlive    = "1m"
)

// Elasticsearch reads the corpus from an index whose documents look like
// {"entityType": "...", "createdAt": "...", "record": {...}}. Every record
// of the entity type is read by paging a point in time with search_after.
type Elasticsearch struct {
	client     *elasticsearch.Client
	index      string
	maxRecords int
	pageSize   int
}

// NewElasticsearch builds the provider. maxRecords of 0 means no limit; a
// positive limit fails the load once the entity type holds more records.
func NewElasticsearch(client *elasticsearch.Client, index string, maxRecords int) *Elasticsearch {
	if maxRecords < 0 {
		maxRecords = 0
	}
	return &Elasticsearch{client: client, index: index, maxRecords: maxRecords, pageSize: defaultPageSize}
}

type searchHit struct {
	ID     string            `json:"_id"`
	Sort   []json.RawMessage `json:"sort"`
	Source struct {
		CreatedAt time.Time    `json:"createdAt"`
		Record    dedup.Record `json:"record"`
	} `json:"_source"`
}

type searchResponse struct {
	PitID string `json:"pit_id"`
	Hits  struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

func (e *Elasticsearch) searchBody(entityType, pitID string, after []json.RawMessage) ([]byte, error) {
	body := map[string]interface{}{
		"size": e.pageSize,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"entityType": entityType},
		},
		"pit": map[string]interface{}{"id": pitID, "keep_alive": pitKeepAlive},
		"sort": []interface{}{
			map[string]interface{}{"createdAt": "asc"},
			map[string]interface{}{"_shard_doc": "asc"},
		},
		"_source": []string{"createdAt", "record"},
	}
	if len(after) > 0 {
		body["search_after"] = after
	}
	return json.Marshal(body)
}

// RecordsForType implements dedup.CorpusProvider. Hits with equal createdAt
// are ordered by document id.
func (e *Elasticsearch) RecordsForType(ctx context.Context, entityType string) ([]dedup.Entry, error) {
	pitID, err := e.openPIT(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { e.closePIT(context.WithoutCancel(ctx), pitID) }()

	var (
		hits  []searchHit
		after []json.RawMessage
	)
	for {
		page, nextPit, err := e.searchPage(ctx, entityType, pitID, after)
		if err != nil {
			return nil, err
		}
		if nextPit != "" {
			pitID = nextPit
		}
		hits = append(hits, page...)
		if e.maxRecords > 0 && len(hits) > e.maxRecords {
			return nil, limitExceeded(entityType, e.maxRecords)
		}
		if len(page) < e.pageSize {
			break
		}
		after = page[len(page)-1].Sort
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if !hits[i].Source.CreatedAt.Equal(hits[j].Source.CreatedAt) {
			return hits[i].Source.CreatedAt.Before(hits[j].Source.CreatedAt)
		}
		return hits[i].ID < hits[j].ID
	})

	entries := make([]dedup.Entry, 0, len(hits))
	for _, hit := range hits {
		entries = append(entries, dedup.Entry{ID: hit.ID, Record: hit.Source.Record})
	}
	return entries, nil
}

func (e *Elasticsearch) searchPage(ctx context.Context, entityType, pitID string, after []json.RawMessage) ([]searchHit, string, error) {
	body, err := e.searchBody(entityType, pitID, after)
	if err != nil {
		return nil, "", err
	}

	req := esapi.SearchRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, "", fmt.Errorf("search corpus: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, "", fmt.Errorf("search corpus failed: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Hits.Hits, parsed.PitID, nil
}

func (e *Elasticsearch) openPIT(ctx context.Context) (string, error) {
	req := esapi.OpenPointInTimeRequest{
		Index:     []string{e.index},
		KeepAlive: pitKeepAlive,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return "", fmt.Errorf("open point in time: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", fmt.Errorf("open point in time failed: %s", res.Status())
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode point in time: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("open point in time returned no id")
	}
	return parsed.ID, nil
}

// closePIT is best effort; an unclosed point in time expires after
// pitKeepAlive.
func (e *Elasticsearch) closePIT(ctx context.Context, pitID string) {
	body, err := json.Marshal(map[string]string{"id": pitID})
	if err != nil {
		return
	}
	req := esapi.ClosePointInTimeRequest{Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()
}
