package publisher

import (
	"errors"
	"sync"

	"moonread/internal/catalog"
	"moonread/internal/models"
)

var (
	// ErrNotReady means no page has been published yet
	ErrNotReady = errors.New("catalog pages are not ready yet")
	// ErrNotFound means the build finished without a page for the bucket
	ErrNotFound = errors.New("no catalog page for this letter")
)

// State is the build progress of an Index
type State int32

const (
	NotStarted State = iota
	InProgress
	Ready
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// BucketLink is one published page together with its bucket
type BucketLink struct {
	Bucket catalog.Bucket `json:"bucket"`
	models.PageLink
}

// Index maps buckets to published pages. Entries are written whole under
// the lock, so readers never observe a partially filled entry.
type Index struct {
	mu     sync.RWMutex
	links  map[catalog.Bucket]models.PageLink
	state  State
	failed int
}

// NewIndex creates an empty index in the NotStarted state
func NewIndex() *Index {
	return &Index{links: make(map[catalog.Bucket]models.PageLink)}
}

// State returns the current build state
func (i *Index) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Complete reports whether the build finished and every bucket was published
func (i *Index) Complete() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state == Ready && i.failed == 0
}

// Failed returns how many buckets failed to publish
func (i *Index) Failed() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.failed
}

// Lookup returns the page for bucket.
// While the index is empty it returns ErrNotReady, whatever the build state.
// A missing bucket is ErrNotFound once the build has finished, ErrNotReady before.
func (i *Index) Lookup(bucket catalog.Bucket) (models.PageLink, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.links) == 0 {
		return models.PageLink{}, ErrNotReady
	}
	link, ok := i.links[bucket]
	if !ok {
		if i.state != Ready {
			return models.PageLink{}, ErrNotReady
		}
		return models.PageLink{}, ErrNotFound
	}
	return link, nil
}

// Links returns every published page in display order (A-Z, then #)
func (i *Index) Links() ([]BucketLink, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.links) == 0 {
		return nil, ErrNotReady
	}
	out := make([]BucketLink, 0, len(i.links))
	for _, bucket := range catalog.AllBuckets() {
		if link, ok := i.links[bucket]; ok {
			out = append(out, BucketLink{Bucket: bucket, PageLink: link})
		}
	}
	return out, nil
}

func (i *Index) begin() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = InProgress
}

func (i *Index) put(bucket catalog.Bucket, link models.PageLink) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.links[bucket] = link
}

func (i *Index) finish(failed int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = Ready
	i.failed = failed
}
