package catalog

import (
	"fmt"
	"strings"
)

// Bucket is the single-character grouping key derived from a title.
// Letter buckets are the upper-case ASCII letters A-Z; every other title,
// including an empty one, falls into the Other bucket.
type Bucket byte

// Other collects titles that do not start with an ASCII letter
const Other Bucket = '#'

// bucketCount is the size of the fixed bucket domain: 26 letters plus Other
const bucketCount = 27

// BucketOf computes the bucket for a title
func BucketOf(title string) Bucket {
	if title == "" {
		return Other
	}
	c := title[0]
	switch {
	case c >= 'A' && c <= 'Z':
		return Bucket(c)
	case c >= 'a' && c <= 'z':
		return Bucket(c - 'a' + 'A')
	default:
		return Other
	}
}

// ParseBucket validates a user supplied bucket token: one letter (any case) or "#"
func ParseBucket(token string) (Bucket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("%w: letter is required", ErrInvalidArgument)
	}
	if len(token) != 1 {
		return 0, fmt.Errorf("%w: %q is not a single letter or #", ErrInvalidArgument, token)
	}
	if token[0] == byte(Other) {
		return Other, nil
	}
	b := BucketOf(token)
	if b == Other {
		return 0, fmt.Errorf("%w: %q is not a letter A-Z or #", ErrInvalidArgument, token)
	}
	return b, nil
}

// AllBuckets returns the whole bucket domain in display order: A-Z, then #
func AllBuckets() []Bucket {
	buckets := make([]Bucket, 0, bucketCount)
	for c := byte('A'); c <= 'Z'; c++ {
		buckets = append(buckets, Bucket(c))
	}
	return append(buckets, Other)
}

// String returns the bucket as a one-character string
func (b Bucket) String() string {
	return string(rune(b))
}

// Valid reports whether b belongs to the bucket domain
func (b Bucket) Valid() bool {
	return b == Other || (b >= 'A' && b <= 'Z')
}

// index maps a bucket to its display position, 0..26
func (b Bucket) index() int {
	if b == Other {
		return bucketCount - 1
	}
	return int(b - 'A')
}

// BucketCount pairs a bucket with the number of books in it
type BucketCount struct {
	Bucket Bucket `json:"bucket"`
	Count  int    `json:"count"`
}

// Histogram counts books per bucket over the fixed 27-bucket domain
type Histogram struct {
	counts [bucketCount]int
}

func (h *Histogram) add(b Bucket) {
	h.counts[b.index()]++
}

// Count returns the number of books in bucket b
func (h Histogram) Count(b Bucket) int {
	if !b.Valid() {
		return 0
	}
	return h.counts[b.index()]
}

// Total returns the sum over all buckets
func (h Histogram) Total() int {
	total := 0
	for _, n := range h.counts {
		total += n
	}
	return total
}

// Counts returns the non-empty buckets in display order (A-Z, then #).
// Buckets with zero books are omitted.
func (h Histogram) Counts() []BucketCount {
	var out []BucketCount
	for _, b := range AllBuckets() {
		if n := h.counts[b.index()]; n > 0 {
			out = append(out, BucketCount{Bucket: b, Count: n})
		}
	}
	return out
}

// MarshalText encodes the bucket as its one-character string
func (b Bucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText accepts the same tokens as ParseBucket
func (b *Bucket) UnmarshalText(text []byte) error {
	parsed, err := ParseBucket(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
