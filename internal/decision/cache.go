// Package decision memoizes model decisions per subject and wraps the model
// call that produces them.
package decision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

var codec = json.ConfigCompatibleWithStandardLibrary

// ComputeFunc produces a fresh decision for a subject.
type ComputeFunc func(ctx context.Context) (schemas.Decision, error)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheFailures controls whether decisions produced by a failed compute
// are written to disk. They are always memoized for the process lifetime.
func WithCacheFailures(enabled bool) CacheOption {
	return func(c *Cache) { c.cacheFailures = enabled }
}

// Cache stores one decision per subject id, in memory and as one JSON
// document per subject. Entries never expire.
type Cache struct {
	dir           string
	logger        *zap.Logger
	cacheFailures bool

	mu     sync.RWMutex
	memory map[string]schemas.Decision
	group  singleflight.Group
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, logger *zap.Logger, opts ...CacheOption) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create decision cache directory: %w", err)
	}
	c := &Cache{
		dir:           dir,
		logger:        logger.Named("decision_cache"),
		cacheFailures: true,
		memory:        make(map[string]schemas.Decision),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// plainID matches ids used verbatim in file names.
var plainID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

func (c *Cache) path(subjectID string) string {
	if plainID.MatchString(subjectID) {
		return filepath.Join(c.dir, "post_"+subjectID+".json")
	}
	// Anything else is hashed. The "~" cannot occur in a plain id, so the two forms never collide.
	sum := sha256.Sum256([]byte(subjectID))
	return filepath.Join(c.dir, "post_~"+hex.EncodeToString(sum[:])+".json")
}

// Get returns a cached decision without computing one.
func (c *Cache) Get(subjectID string) (schemas.Decision, bool) {
	c.mu.RLock()
	d, ok := c.memory[subjectID]
	c.mu.RUnlock()
	if ok {
		return d, true
	}
	d, ok = c.loadFile(subjectID)
	if ok {
		c.remember(subjectID, d)
	}
	return d, ok
}

// GetOrCompute returns the cached decision for subjectID, or runs compute
// once and caches the result. A compute error becomes a "no action" decision
// carrying the error text; it is never returned to the caller.
func (c *Cache) GetOrCompute(ctx context.Context, subjectID string, compute ComputeFunc) schemas.Decision {
	if d, ok := c.Get(subjectID); ok {
		c.logger.Debug("Decision cache hit.", zap.String("subject_id", subjectID))
		return d
	}

	v, _, _ := c.group.Do(subjectID, func() (any, error) {
		// A concurrent caller may have filled the entry while we waited.
		c.mu.RLock()
		if d, ok := c.memory[subjectID]; ok {
			c.mu.RUnlock()
			return d, nil
		}
		c.mu.RUnlock()

		d, err := compute(ctx)
		if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
			// An interrupted run says nothing about the post; leave it uncached.
			return schemas.NoAction("Error analyzing post: " + err.Error()), nil
		}
		failed := err != nil
		if failed {
			c.logger.Warn("Decision compute failed; caching a no-action decision.",
				zap.String("subject_id", subjectID), zap.Error(err))
			d = schemas.NoAction("Error analyzing post: " + err.Error())
		}

		c.remember(subjectID, d)
		if !failed || c.cacheFailures {
			c.store(subjectID, d)
		}
		return d, nil
	})
	return v.(schemas.Decision)
}

func (c *Cache) remember(subjectID string, d schemas.Decision) {
	c.mu.Lock()
	c.memory[subjectID] = d
	c.mu.Unlock()
}

func (c *Cache) loadFile(subjectID string) (schemas.Decision, bool) {
	var d schemas.Decision
	data, err := os.ReadFile(c.path(subjectID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Could not read cached decision.", zap.String("subject_id", subjectID), zap.Error(err))
		}
		return d, false
	}
	if err := codec.Unmarshal(data, &d); err != nil {
		c.logger.Warn("Ignoring corrupt cached decision.", zap.String("subject_id", subjectID), zap.Error(err))
		return schemas.Decision{}, false
	}
	return d, true
}

func (c *Cache) store(subjectID string, d schemas.Decision) {
	data, err := codec.Marshal(d)
	if err == nil {
		err = os.WriteFile(c.path(subjectID), data, 0o644)
	}
	if err != nil {
		c.logger.Error("Failed to persist decision.", zap.String("subject_id", subjectID), zap.Error(err))
	}
}
