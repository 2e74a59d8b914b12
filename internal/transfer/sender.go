package transfer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Jaypalsingh1/sovereignshare/internal/files"
)

// ChunkSize is the fixed payload size of a file chunk. The last chunk
// of a file may be smaller.
const ChunkSize = 16 * 1024

// chunkPacing is a floor between chunk sends so the backpressure window
// check gets a chance to observe the channel draining.
const chunkPacing = time.Millisecond

// Channel is the outbound half of the direct channel a Sender writes
// to. WaitSendWindow blocks while the channel's send buffer is above
// its high-water mark.
type Channel interface {
	Send([]byte) error
	WaitSendWindow(ctx context.Context) error
}

// Progress reports how far a file send has gotten.
type Progress struct {
	FileName    string
	SentBytes   int64
	TotalBytes  int64
	SentChunks  int
	TotalChunks int
}

// Sender writes chat and file frames to the direct channel. It is
// driven from a single goroutine; one file send runs at a time.
type Sender struct {
	ch     Channel
	codec  Codec
	logger *slog.Logger
}

func NewSender(ch Channel, codec Codec, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{ch: ch, codec: codec, logger: logger}
}

// SendChat encodes and sends one chat message.
func (s *Sender) SendChat(text string) error {
	data, err := s.codec.Encode(NewChatFrame(text))
	if err != nil {
		return err
	}
	if err := s.ch.Send(data); err != nil {
		return NewError("send", err, "chat frame")
	}
	return nil
}

// TotalChunks returns how many chunks a file of the given size splits
// into. An empty file announces zero chunks and transfers as metadata
// only.
func TotalChunks(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

// SendFile streams one file: a fileInfo frame, every chunk in index
// order, then a fileComplete frame. The channel's send window throttles
// the chunk loop.
func (s *Sender) SendFile(ctx context.Context, info files.FileInfo, onProgress func(Progress)) error {
	file, err := os.Open(info.Path)
	if err != nil {
		return NewFileError("send", info.Name, err, "open")
	}
	defer file.Close()

	totalChunks := TotalChunks(info.Size)
	if err := s.sendFrame(FileInfoFrame{
		Type:        FrameFileInfo,
		FileName:    info.Name,
		FileSize:    info.Size,
		MimeType:    info.Type,
		TotalChunks: totalChunks,
	}); err != nil {
		return NewFileError("send", info.Name, err, "announce")
	}

	s.logger.Info("file send started",
		"file", info.Name,
		"size", info.Size,
		"chunks", totalChunks,
		"codec", s.codec.Name())

	buf := make([]byte, ChunkSize)
	var sentBytes int64
	for index := 0; index < totalChunks; index++ {
		if err := s.ch.WaitSendWindow(ctx); err != nil {
			return NewFileError("send", info.Name, err, "send window")
		}

		n, err := io.ReadFull(file, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// Short read is only legal on the final chunk.
			if index != totalChunks-1 || sentBytes+int64(n) != info.Size {
				return NewFileError("send", info.Name, ErrSizeMismatch, "file shrank while sending")
			}
			err = nil
		}
		if err != nil {
			return NewFileError("send", info.Name, err, "read")
		}

		if err := s.sendFrame(FileChunkFrame{
			Type:        FrameFileChunk,
			ChunkIndex:  index,
			TotalChunks: totalChunks,
			Bytes:       buf[:n],
		}); err != nil {
			return NewFileError("send", info.Name, err, "chunk")
		}

		sentBytes += int64(n)
		if onProgress != nil {
			onProgress(Progress{
				FileName:    info.Name,
				SentBytes:   sentBytes,
				TotalBytes:  info.Size,
				SentChunks:  index + 1,
				TotalChunks: totalChunks,
			})
		}
		time.Sleep(chunkPacing)
	}

	if err := s.sendFrame(FileCompleteFrame{
		Type:     FrameFileComplete,
		FileName: info.Name,
		FileSize: info.Size,
		MimeType: info.Type,
	}); err != nil {
		return NewFileError("send", info.Name, err, "complete")
	}

	s.logger.Info("file send finished", "file", info.Name, "bytes", sentBytes)
	return nil
}

func (s *Sender) sendFrame(f Frame) error {
	data, err := s.codec.Encode(f)
	if err != nil {
		return err
	}
	return s.ch.Send(data)
}
