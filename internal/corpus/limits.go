package corpus

import (
	"errors"
	"fmt"

	"registry-workers/internal/dedup"
)

// ErrCorpusLimitExceeded is returned when an entity type holds more records
// than the configured max_records. The corpus is never truncated.
var ErrCorpusLimitExceeded = errors.New("corpus exceeds max_records")

func limitExceeded(entityType string, maxRecords int) error {
	return fmt.Errorf("%w: %w: %s holds more than %d records", dedup.ErrCorpusUnavailable, ErrCorpusLimitExceeded, entityType, maxRecords)
}
