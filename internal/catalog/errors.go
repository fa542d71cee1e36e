package catalog

import "errors"

var (
	// ErrInvalidArgument is returned for a missing or malformed query argument
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoMatch is returned when a well-formed query matches nothing
	ErrNoMatch = errors.New("no matching books")
	// ErrEmptyCatalog is returned by Random when there is nothing to pick from
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrNotLoaded is returned by Stats when no catalog data is available
	ErrNotLoaded = errors.New("catalog not loaded")
)

// LoadError reports that the catalog source could not be read
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "failed to load catalog: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
