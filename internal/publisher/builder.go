package publisher

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"moonread/internal/catalog"
	"moonread/internal/models"
)

// Publisher creates one external page and returns its URL
type Publisher interface {
	Publish(ctx context.Context, doc models.Document) (string, error)
}

// Pacer spaces publish attempts. Wait is called before every attempt and
// Done after every attempt that ran; the pause is counted from Done.
// Implementations let the first Wait through immediately.
type Pacer interface {
	Wait(ctx context.Context) error
	Done()
}

// PublishError records a failed publish for one bucket
type PublishError struct {
	Bucket catalog.Bucket
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish page for %s: %v", e.Bucket, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one bucket's publish attempt
type Result struct {
	Bucket catalog.Bucket
	Link   models.PageLink
	Err    error
}

// Options configures a Builder
type Options struct {
	// TitlePrefix is prepended to the bucket in page titles, "<prefix>: A"
	TitlePrefix string
	// Timeout bounds each publish call; zero means no extra bound
	Timeout time.Duration
}

// Builder publishes one page per catalog bucket and fills an Index
type Builder struct {
	catalog   *catalog.Catalog
	publisher Publisher
	pacer     Pacer
	index     *Index
	opts      Options
	logger    *zap.Logger
	started   atomic.Bool
}

// NewBuilder creates a builder writing into index
func NewBuilder(c *catalog.Catalog, p Publisher, pacer Pacer, index *Index, opts Options, logger *zap.Logger) *Builder {
	return &Builder{
		catalog:   c,
		publisher: p,
		pacer:     pacer,
		index:     index,
		opts:      opts,
		logger:    logger,
	}
}

// Start runs the build once in the background. The returned channel
// receives the results when the build ends. Later calls return nil.
func (b *Builder) Start(ctx context.Context) <-chan []Result {
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}
	done := make(chan []Result, 1)
	go func() {
		done <- b.Run(ctx)
		close(done)
	}()
	return done
}

// Run publishes every non-empty bucket in display order, one at a time,
// pacing attempts through the Pacer. A failed bucket is logged, left out of
// the index and does not stop the remaining buckets.
func (b *Builder) Run(ctx context.Context) []Result {
	groups := b.catalog.Groups()
	b.index.begin()

	b.logger.Info("Publishing catalog pages", zap.Int("buckets", len(groups)))
	start := time.Now()

	results := make([]Result, 0, len(groups))
	failed := 0
	for _, group := range groups {
		var result Result
		if err := b.pacer.Wait(ctx); err != nil {
			result = Result{Bucket: group.Bucket, Err: &PublishError{Bucket: group.Bucket, Err: err}}
			b.logger.Error("Skipped catalog page",
				zap.String("bucket", group.Bucket.String()),
				zap.Error(err),
			)
		} else {
			result = b.publish(ctx, group)
			b.pacer.Done()
		}

		if result.Err != nil {
			failed++
		}
		results = append(results, result)
	}

	b.index.finish(failed)
	b.logger.Info("Catalog pages published",
		zap.Int("published", len(groups)-failed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results
}

// Document builds the page for a bucket group
func (b *Builder) Document(group catalog.Group) models.Document {
	title := group.Bucket.String()
	if b.opts.TitlePrefix != "" {
		title = b.opts.TitlePrefix + ": " + title
	}
	return models.Document{Title: title, Books: group.Books}
}

func (b *Builder) publish(ctx context.Context, group catalog.Group) (result Result) {
	result.Bucket = group.Bucket

	defer func() {
		if r := recover(); r != nil {
			result.Err = &PublishError{Bucket: group.Bucket, Err: fmt.Errorf("panic: %v", r)}
			b.logger.Error("Recovered from panic while publishing catalog page",
				zap.String("bucket", group.Bucket.String()),
				zap.Any("panic", r),
			)
		}
	}()

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	url, err := b.publisher.Publish(ctx, b.Document(group))
	if err != nil {
		result.Err = &PublishError{Bucket: group.Bucket, Err: err}
		b.logger.Error("Failed to publish catalog page",
			zap.String("bucket", group.Bucket.String()),
			zap.Int("count", len(group.Books)),
			zap.Error(err),
		)
		return result
	}

	result.Link = models.PageLink{URL: url, Count: len(group.Books)}
	b.index.put(group.Bucket, result.Link)
	b.logger.Info("Published catalog page",
		zap.String("bucket", group.Bucket.String()),
		zap.Int("count", len(group.Books)),
		zap.String("url", url),
	)
	return result
}
