package log

import (
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter narrows which capture events a Reader yields. Zero or nil
// fields place no constraint.
type Filter struct {
	// ConnectionID requires an exact link ID match.
	ConnectionID string

	// Board selects one board index.
	Board *uint8

	// Direction selects inbound or outbound frames.
	Direction *Direction

	// Category selects one event category.
	Category *Category

	// TimeStart excludes events before this time.
	TimeStart *time.Time

	// TimeEnd excludes events at or after this time.
	TimeEnd *time.Time
}

func (f *Filter) matches(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
		return false
	case f.Board != nil && event.Board != *f.Board:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events out of a capture file one at a time, so large
// session captures never need to fit in memory.
type Reader struct {
	src    *os.File
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens the capture file at path with no filtering.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens the capture file at path, yielding only
// events the filter accepts.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{src: src, dec: NewDecoder(src), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF once the file is
// exhausted.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.dec.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.src.Close()
}
