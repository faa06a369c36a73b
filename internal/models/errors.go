package models

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks an unsupported statistic, resolution, format or
// image shape. Callers test for it with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// TransferError is a failed download of a catalog file
type TransferError struct {
	// URL is the remote file that could not be fetched
	URL string

	// Atlas names the atlas the file belongs to, if known
	Atlas string

	// StatusCode is the HTTP status for non-2xx responses, 0 otherwise
	StatusCode int

	// Err is the underlying network or filesystem error
	Err error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer of %s failed", e.URL)
	if e.Atlas != "" {
		msg = fmt.Sprintf("transfer of %s (atlas %s) failed", e.URL, e.Atlas)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// DataShapeError reports a label table whose row count does not match the
// number of regions the masker produced for the same atlas.
type DataShapeError struct {
	Atlas     string
	Regions   int
	TableRows int
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("atlas %s: masker produced %d regions but label table has %d rows",
		e.Atlas, e.Regions, e.TableRows)
}
