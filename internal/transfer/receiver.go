package transfer

import (
	"fmt"
	"log/slog"
)

// SaveFunc persists an assembled file and returns the path it was
// written to.
type SaveFunc func(name, mimeType string, data []byte) (string, error)

// ReceiverHooks are invoked as frames arrive. All hooks run on the
// goroutine driving HandleRaw; nil hooks are skipped.
type ReceiverHooks struct {
	OnChat     func(ChatFrame)
	OnFileInfo func(FileInfoFrame)
	OnProgress func(Progress)
	OnFileDone func(info FileInfoFrame, savedPath string)
	OnFailure  func(err error)
}

// Receiver consumes direct-channel frames, reassembling files chunk by
// chunk. The channel is ordered and reliable, so any chunk index other
// than the next expected one is a protocol violation and fails the
// transfer. Not safe for concurrent use; drive it from one goroutine.
type Receiver struct {
	codec  Codec
	save   SaveFunc
	hooks  ReceiverHooks
	logger *slog.Logger

	meta      *FileInfoFrame
	chunks    [][]byte
	nextIndex int
	bytes     int64
}

func NewReceiver(codec Codec, save SaveFunc, hooks ReceiverHooks, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{codec: codec, save: save, hooks: hooks, logger: logger}
}

// InProgress reports whether a file transfer has been announced and not
// yet completed or failed.
func (r *Receiver) InProgress() bool { return r.meta != nil }

// HandleRaw decodes one frame and applies it. Transfer failures are
// reported through OnFailure and returned; the receiver discards the
// partial buffer and is ready for the next transfer.
func (r *Receiver) HandleRaw(data []byte) error {
	frame, err := r.codec.Decode(data)
	if err != nil {
		return r.fail(err)
	}

	switch f := frame.(type) {
	case ChatFrame:
		if r.hooks.OnChat != nil {
			r.hooks.OnChat(f)
		}
		return nil
	case FileInfoFrame:
		return r.handleInfo(f)
	case FileChunkFrame:
		return r.handleChunk(f)
	case FileCompleteFrame:
		return r.handleComplete(f)
	default:
		return r.fail(NewError("receive", ErrUnknownFrame, fmt.Sprintf("type %s", frame.Kind())))
	}
}

func (r *Receiver) handleInfo(f FileInfoFrame) error {
	if r.meta != nil {
		// A new announcement abandons whatever was in flight.
		r.logger.Warn("file transfer superseded", "old", r.meta.FileName, "new", f.FileName)
	}
	meta := f
	r.meta = &meta
	r.chunks = make([][]byte, 0, f.TotalChunks)
	r.nextIndex = 0
	r.bytes = 0

	r.logger.Info("file receive started",
		"file", f.FileName,
		"size", f.FileSize,
		"chunks", f.TotalChunks)
	if r.hooks.OnFileInfo != nil {
		r.hooks.OnFileInfo(f)
	}
	return nil
}

func (r *Receiver) handleChunk(f FileChunkFrame) error {
	if r.meta == nil {
		return r.fail(NewError("receive", ErrNoTransfer, fmt.Sprintf("chunk %d with no announcement", f.ChunkIndex)))
	}
	if f.TotalChunks != r.meta.TotalChunks {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrChunkCountMismatch,
			fmt.Sprintf("chunk claims %d total, announced %d", f.TotalChunks, r.meta.TotalChunks)))
	}
	if f.ChunkIndex != r.nextIndex {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrChunkGap,
			fmt.Sprintf("got chunk %d, expected %d", f.ChunkIndex, r.nextIndex)))
	}
	if f.ChunkIndex >= r.meta.TotalChunks {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrChunkCountMismatch,
			fmt.Sprintf("chunk %d beyond announced %d", f.ChunkIndex, r.meta.TotalChunks)))
	}

	r.chunks = append(r.chunks, f.Bytes)
	r.nextIndex++
	r.bytes += int64(len(f.Bytes))

	if r.hooks.OnProgress != nil {
		r.hooks.OnProgress(Progress{
			FileName:    r.meta.FileName,
			SentBytes:   r.bytes,
			TotalBytes:  r.meta.FileSize,
			SentChunks:  r.nextIndex,
			TotalChunks: r.meta.TotalChunks,
		})
	}
	return nil
}

func (r *Receiver) handleComplete(f FileCompleteFrame) error {
	if r.meta == nil {
		return r.fail(NewFileError("receive", f.FileName, ErrNoTransfer, "completion with no announcement"))
	}
	if f.FileName != r.meta.FileName {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrNameMismatch,
			fmt.Sprintf("completion names %q", f.FileName)))
	}
	if r.nextIndex != r.meta.TotalChunks {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrChunkCountMismatch,
			fmt.Sprintf("have %d of %d chunks", r.nextIndex, r.meta.TotalChunks)))
	}
	if r.bytes != r.meta.FileSize {
		return r.fail(NewFileError("receive", r.meta.FileName, ErrSizeMismatch,
			fmt.Sprintf("assembled %d bytes, announced %d", r.bytes, r.meta.FileSize)))
	}

	assembled := make([]byte, 0, r.bytes)
	for _, chunk := range r.chunks {
		assembled = append(assembled, chunk...)
	}

	meta := *r.meta
	r.reset()

	path, err := r.save(meta.FileName, meta.MimeType, assembled)
	if err != nil {
		saveErr := NewFileError("receive", meta.FileName, err, "save")
		if r.hooks.OnFailure != nil {
			r.hooks.OnFailure(saveErr)
		}
		return saveErr
	}

	r.logger.Info("file receive finished", "file", meta.FileName, "path", path, "bytes", meta.FileSize)
	if r.hooks.OnFileDone != nil {
		r.hooks.OnFileDone(meta, path)
	}
	return nil
}

// fail discards any partial transfer and surfaces err.
func (r *Receiver) fail(err error) error {
	if r.meta != nil {
		r.logger.Warn("file transfer failed", "file", r.meta.FileName, "error", err)
	}
	r.reset()
	if r.hooks.OnFailure != nil {
		r.hooks.OnFailure(err)
	}
	return err
}

func (r *Receiver) reset() {
	r.meta = nil
	r.chunks = nil
	r.nextIndex = 0
	r.bytes = 0
}
