package jobstreamv1

import "context"

// Reader consumes jobs from the stream in offset order.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=jobstreamv1_mock
type Reader interface {
	// Fetch blocks until the next job is available and returns it with its
	// stream offset attached.
	Fetch(ctx context.Context) (*Job, error)
	// SetOffset seeks the reader to the given stream offset.
	SetOffset(offset int64) error
	// Close closes the reader.
	Close() error
}

// Writer appends jobs to the stream.
type Writer interface {
	// Enqueue appends jobs to the stream in the given order.
	Enqueue(ctx context.Context, jobs ...*Job) error
	// Close closes the writer.
	Close() error
}
