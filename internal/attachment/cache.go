// Package attachment caches uploaded materials locally in front of the blob
// store. Entries are keyed by public locator.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Hossein925/f-maharat/internal/blob"
	"github.com/Hossein925/f-maharat/internal/localstore"
	"github.com/Hossein925/f-maharat/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache is a cache-aside attachment cache. Safe for concurrent use.
type Cache struct {
	blobs   blob.Store
	files   localstore.FileStore
	fetcher Fetcher
	logger  *zap.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	group   singleflight.Group

	// epochs counts Deletes per locator. A fetch that spans a Delete is not
	// written through.
	mu     sync.Mutex
	epochs map[string]uint64
}

var errInvalidated = errors.New("attachment deleted during fetch")

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records lookups on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = rec }
}

// WithClock replaces time.Now for object path stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache. fetcher defaults to reading blobs directly.
func NewCache(blobs blob.Store, files localstore.FileStore, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetcher == nil {
		fetcher = NewStoreFetcher(blobs)
	}
	c := &Cache{
		blobs:   blobs,
		files:   files,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		epochs:  map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ObjectPath builds {unixMillis}-{entityID}.{ext}. ext comes from fileName
// and is "bin" when it has none.
func ObjectPath(at time.Time, entityID, fileName string) string {
	ext := strings.TrimPrefix(path.Ext(fileName), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%d-%s.%s", at.UnixMilli(), entityID, strings.ToLower(ext))
}

// Resolve returns the public locator of an object path. Values that are
// already URLs are returned unchanged.
func (c *Cache) Resolve(objectPath string) string {
	if strings.Contains(objectPath, "://") || strings.HasPrefix(objectPath, "data:") {
		return objectPath
	}
	return c.blobs.URL(objectPath)
}

// Upload stores data in the blob store, mirrors it into the local cache and
// returns the object path to record on the owning entity.
func (c *Cache) Upload(ctx context.Context, entityID, fileName, contentType string, data []byte) (string, error) {
	objectPath := ObjectPath(c.now(), entityID, fileName)
	if _, err := c.blobs.Put(ctx, objectPath, bytes.NewReader(data), blob.PutOptions{ContentType: contentType}); err != nil {
		c.logger.Error("Failed to upload attachment",
			zap.String("path", objectPath),
			zap.Error(err),
		)
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}

	locator := c.blobs.URL(objectPath)
	if err := c.files.DeleteTombstone(ctx, locator); err != nil {
		c.logger.Warn("Failed to clear attachment tombstone", zap.String("locator", locator), zap.Error(err))
	}
	if err := c.Put(ctx, locator, localstore.File{ContentType: contentType, Data: data}); err != nil {
		c.logger.Warn("Failed to cache uploaded attachment", zap.String("locator", locator), zap.Error(err))
	}
	c.logger.Info("Uploaded attachment",
		zap.String("path", objectPath),
		zap.Int("size", len(data)),
	)
	return objectPath, nil
}

// Put caches payload under locator.
func (c *Cache) Put(ctx context.Context, locator string, payload localstore.File) error {
	payload.Locator = locator
	return c.files.PutFile(ctx, payload)
}

// Get returns the cached payload, fetching and caching it on a miss.
// Deleted locators and any failure yield ok == false. Callers waiting on
// the same fetch can give up independently; the fetch itself is not
// canceled with them.
func (c *Cache) Get(ctx context.Context, locator string) (localstore.File, bool) {
	deleted, err := c.files.HasTombstone(ctx, locator)
	if err != nil {
		c.logger.Warn("Local tombstone read failed", zap.String("locator", locator), zap.Error(err))
		c.metrics.Attachment("error")
		return localstore.File{}, false
	}
	if deleted {
		c.metrics.Attachment("deleted")
		return localstore.File{}, false
	}

	f, err := c.files.GetFile(ctx, locator)
	if err == nil {
		c.metrics.Attachment("hit")
		return f, true
	}
	if !errors.Is(err, localstore.ErrMiss) {
		c.logger.Warn("Local attachment read failed", zap.String("locator", locator), zap.Error(err))
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(locator, func() (any, error) {
		return c.fetch(fetchCtx, locator)
	})
	select {
	case <-ctx.Done():
		c.metrics.Attachment("error")
		return localstore.File{}, false
	case res := <-ch:
		if res.Err != nil {
			c.metrics.Attachment("error")
			c.logger.Warn("Attachment unavailable", zap.String("locator", locator), zap.Error(res.Err))
			return localstore.File{}, false
		}
		c.metrics.Attachment("miss")
		return res.Val.(localstore.File), true
	}
}

func (c *Cache) fetch(ctx context.Context, locator string) (localstore.File, error) {
	c.mu.Lock()
	epoch := c.epochs[locator]
	c.mu.Unlock()

	contentType, data, err := c.fetcher.Fetch(ctx, locator)
	if err != nil {
		return localstore.File{}, err
	}
	file := localstore.File{Locator: locator, ContentType: contentType, Data: data}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[locator] != epoch {
		return localstore.File{}, errInvalidated
	}
	if deleted, err := c.files.HasTombstone(ctx, locator); err == nil && deleted {
		return localstore.File{}, errInvalidated
	}
	if err := c.files.PutFile(ctx, file); err != nil {
		c.logger.Warn("Failed to cache fetched attachment", zap.String("locator", locator), zap.Error(err))
	}
	return file, nil
}

func (c *Cache) invalidate(locator string) {
	c.mu.Lock()
	c.epochs[locator]++
	c.mu.Unlock()
	c.group.Forget(locator)
}

// Open is Get for an object path.
func (c *Cache) Open(ctx context.Context, objectPath string) (localstore.File, bool) {
	return c.Get(ctx, c.Resolve(objectPath))
}

// Delete removes the object from the blob store and the local cache. The
// local entry is removed even when the remote delete fails; the locator is
// then tombstoned so Get keeps reporting it absent until a later Delete
// succeeds or the object is uploaded again. The remote failure is returned.
func (c *Cache) Delete(ctx context.Context, objectPath string) error {
	locator := c.Resolve(objectPath)
	localCtx := context.WithoutCancel(ctx)

	var remoteErr error
	if key, ok := blob.KeyFromURL(c.blobs, locator); ok {
		if _, err := c.blobs.Delete(ctx, key); err != nil {
			c.logger.Error("Failed to delete attachment from blob store",
				zap.String("path", key),
				zap.Error(err),
			)
			remoteErr = fmt.Errorf("delete %s: %w", key, err)
		}
	} else {
		c.logger.Warn("Attachment not served by blob store, remote object left in place",
			zap.String("locator", locator),
			zap.String("driver", string(c.blobs.Driver())),
		)
	}

	var localErrs []error
	if remoteErr != nil {
		if err := c.files.PutTombstone(localCtx, locator); err != nil {
			localErrs = append(localErrs, err)
		}
	} else if err := c.files.DeleteTombstone(localCtx, locator); err != nil {
		localErrs = append(localErrs, err)
	}
	// Fetches that started before this point may have read the old object.
	c.invalidate(locator)
	if err := c.files.DeleteFile(localCtx, locator); err != nil {
		localErrs = append(localErrs, err)
	}
	if len(localErrs) > 0 {
		localErr := errors.Join(localErrs...)
		c.logger.Error("Failed to invalidate cached attachment", zap.String("locator", locator), zap.Error(localErr))
		return errors.Join(remoteErr, localErr)
	}
	return remoteErr
}

// Files returns every cached payload.
func (c *Cache) Files(ctx context.Context) ([]localstore.File, error) {
	return c.files.ListFiles(ctx)
}

// ReplaceFiles clears the local cache and loads files into it.
func (c *Cache) ReplaceFiles(ctx context.Context, files []localstore.File) error {
	if err := c.files.ClearFiles(ctx); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	for _, f := range files {
		if err := c.files.PutFile(ctx, f); err != nil {
			return fmt.Errorf("restore %s: %w", f.Locator, err)
		}
	}
	return nil
}
