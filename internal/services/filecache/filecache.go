// Package filecache remembers the content type of previously-seen media
// handles so responses can be re-sent without a platform round trip. It is
// an optimization only, never a correctness dependency.
package filecache

import (
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/tg-guard-bot-go/internal/config"
)

// Service maps media handles to their content-type tag.
type Service interface {
	Get(fileID string) (string, bool)
	Set(fileID, fileType string)
	Clear()
}

type fileCache struct {
	enabled bool
	cache   *cache.Cache
	logger  *logrus.Logger
	maxSize int
}

// New creates the cache with the configured TTL.
func New(cfg *config.FileCacheConfig, logger *logrus.Logger) Service {
	if !cfg.Enabled {
		return &fileCache{enabled: false}
	}

	return &fileCache{
		enabled: true,
		cache:   cache.New(cfg.TTL, cfg.TTL*2),
		logger:  logger,
		maxSize: cfg.MaxSize,
	}
}

func (c *fileCache) Get(fileID string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	if val, found := c.cache.Get(fileID); found {
		fileType := val.(string)
		c.logger.WithFields(logrus.Fields{
			"file_id":   fileID,
			"file_type": fileType,
		}).Debug("File cache hit")
		return fileType, true
	}
	return "", false
}

func (c *fileCache) Set(fileID, fileType string) {
	if !c.enabled {
		return
	}

	if c.cache.ItemCount() >= c.maxSize {
		c.logger.Warn("File cache size limit reached, dropping expired entries")
		c.cache.DeleteExpired()
	}

	c.cache.SetDefault(fileID, fileType)
}

func (c *fileCache) Clear() {
	if !c.enabled {
		return
	}
	c.cache.Flush()
	c.logger.Info("File cache cleared")
}
