package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFrame indicates a frame whose type tag is outside the
	// protocol's closed set.
	ErrUnknownFrame = errors.New("unknown frame type")

	// ErrNoTransfer indicates a chunk or completion frame arrived with
	// no preceding fileInfo.
	ErrNoTransfer = errors.New("no file transfer in progress")

	// ErrChunkGap indicates a chunk index other than the next expected
	// one; the channel is ordered and reliable, so a gap means the
	// sender and receiver have diverged.
	ErrChunkGap = errors.New("chunk sequence gap")

	// ErrChunkCountMismatch indicates a completion frame arrived before
	// every announced chunk, or a chunk disagreed about the total.
	ErrChunkCountMismatch = errors.New("chunk count mismatch")

	// ErrNameMismatch indicates a completion frame naming a different
	// file than the one announced.
	ErrNameMismatch = errors.New("file name mismatch")

	// ErrSizeMismatch indicates the assembled bytes disagree with the
	// announced file size.
	ErrSizeMismatch = errors.New("file size mismatch")
)

// TransferError carries the failing operation and, when relevant, the
// file involved, alongside the underlying cause.
type TransferError struct {
	Op      string
	File    string
	Err     error
	Details string
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("transfer %s", e.Op)
	if e.File != "" {
		msg += fmt.Sprintf(" %q", e.File)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	return msg
}

func (e *TransferError) Unwrap() error { return e.Err }

// NewError wraps err with the operation that failed.
func NewError(op string, err error, details string) *TransferError {
	return &TransferError{Op: op, Err: err, Details: details}
}

// NewFileError wraps err with both the operation and the file it was
// operating on.
func NewFileError(op, file string, err error, details string) *TransferError {
	return &TransferError{Op: op, File: file, Err: err, Details: details}
}
