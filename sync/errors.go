// ABOUTME: Error types for the sync coordinator
// ABOUTME: Adapter failures are isolated per source; cache write failures stop token persistence
package sync

import (
	"errors"
	"fmt"

	"github.com/harperreed/trustcache/models"
)

// ErrConcurrencyTimeout is returned when waiting for an in-flight sync
// exceeds the caller's deadline.
var ErrConcurrencyTimeout = errors.New("timed out waiting for in-flight sync")

// AdapterError wraps a fetch failure from one source.
type AdapterError struct {
	Source models.SourceType
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// CacheWriteError wraps a failure to write a fetched batch.
type CacheWriteError struct {
	Source models.SourceType
	Err    error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("cache write for %s: %v", e.Source, e.Err)
}

func (e *CacheWriteError) Unwrap() error {
	return e.Err
}
