// Package transfer implements the application protocol carried over the
// direct channel once a session is connected: interleaved chat frames
// and files sent as an ordered sequence of addressable chunks.
package transfer

import "time"

// FrameType tags the closed set of direct-channel frames.
type FrameType string

const (
	FrameChat         FrameType = "chat"
	FrameFileInfo     FrameType = "fileInfo"
	FrameFileChunk    FrameType = "fileChunk"
	FrameFileComplete FrameType = "fileComplete"
)

// Frame is one direct-channel message. The concrete types below are the
// only implementations.
type Frame interface {
	Kind() FrameType
}

// ChatFrame carries one chat message, rendered immediately on receipt.
type ChatFrame struct {
	Type      FrameType `json:"type" msgpack:"type"`
	Text      string    `json:"text" msgpack:"text"`
	Timestamp string    `json:"timestamp" msgpack:"timestamp"`
}

func (ChatFrame) Kind() FrameType { return FrameChat }

// NewChatFrame stamps a chat frame with the current time.
func NewChatFrame(text string) ChatFrame {
	return ChatFrame{
		Type:      FrameChat,
		Text:      text,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// FileInfoFrame announces an incoming file. The receiver resets its
// buffer and will accept exactly TotalChunks chunks before the matching
// FileCompleteFrame.
type FileInfoFrame struct {
	Type        FrameType `json:"type" msgpack:"type"`
	FileName    string    `json:"fileName" msgpack:"fileName"`
	FileSize    int64     `json:"fileSize" msgpack:"fileSize"`
	MimeType    string    `json:"mimeType" msgpack:"mimeType"`
	TotalChunks int       `json:"totalChunks" msgpack:"totalChunks"`
}

func (FileInfoFrame) Kind() FrameType { return FrameFileInfo }

// FileChunkFrame carries one slice of the file, in strictly increasing
// ChunkIndex order.
type FileChunkFrame struct {
	Type        FrameType `json:"type" msgpack:"type"`
	ChunkIndex  int       `json:"chunkIndex" msgpack:"chunkIndex"`
	TotalChunks int       `json:"totalChunks" msgpack:"totalChunks"`
	Bytes       []byte    `json:"bytes" msgpack:"bytes"`
}

func (FileChunkFrame) Kind() FrameType { return FrameFileChunk }

// FileCompleteFrame closes a transfer. The receiver finalizes only if
// it names the in-progress file and every chunk is accounted for.
type FileCompleteFrame struct {
	Type     FrameType `json:"type" msgpack:"type"`
	FileName string    `json:"fileName" msgpack:"fileName"`
	FileSize int64     `json:"fileSize" msgpack:"fileSize"`
	MimeType string    `json:"mimeType" msgpack:"mimeType"`
}

func (FileCompleteFrame) Kind() FrameType { return FrameFileComplete }
