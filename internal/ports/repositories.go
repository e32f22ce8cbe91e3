package ports

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidName is returned for document names that are not a single path element.
var ErrInvalidName = errors.New("invalid document name")

// ReportStore keeps rendered documents addressable by name.
type ReportStore interface {
	Save(ctx context.Context, name string, content []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}
