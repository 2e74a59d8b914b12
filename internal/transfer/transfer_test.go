package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jaypalsingh1/sovereignshare/internal/files"
)

// pipeChannel collects encoded frames like an open direct channel with
// an unlimited send window.
type pipeChannel struct {
	frames [][]byte
}

func (p *pipeChannel) Send(data []byte) error {
	p.frames = append(p.frames, append([]byte(nil), data...))
	return nil
}

func (p *pipeChannel) WaitSendWindow(ctx context.Context) error { return nil }

// captureSave remembers the last saved file.
type captureSave struct {
	name string
	mime string
	data []byte
	hits int
}

func (c *captureSave) fn(name, mimeType string, data []byte) (string, error) {
	c.name, c.mime, c.data = name, mimeType, data
	c.hits++
	return filepath.Join("downloads", name), nil
}

func patternData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func writeTempFile(t *testing.T, name string, data []byte) files.FileInfo {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := files.Validate(path)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return info
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		local, peer string
		want        string
	}{
		{"cli", "cli", "msgpack"},
		{"cli", "web", "json"},
		{"cli", "", "json"},
		{"web", "cli", "json"},
	}
	for _, tt := range tests {
		if got := Negotiate(tt.local, tt.peer).Name(); got != tt.want {
			t.Errorf("Negotiate(%q, %q) = %q, want %q", tt.local, tt.peer, got, tt.want)
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			chat := NewChatFrame("hello there")
			data, err := codec.Encode(chat)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err := codec.Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := decoded.(ChatFrame)
			if !ok {
				t.Fatalf("decoded %T, want ChatFrame", decoded)
			}
			if got.Text != "hello there" || got.Timestamp == "" {
				t.Fatalf("chat = %+v", got)
			}

			chunk := FileChunkFrame{Type: FrameFileChunk, ChunkIndex: 3, TotalChunks: 7, Bytes: patternData(300)}
			data, err = codec.Encode(chunk)
			if err != nil {
				t.Fatal(err)
			}
			decoded, err = codec.Decode(data)
			if err != nil {
				t.Fatal(err)
			}
			gotChunk, ok := decoded.(FileChunkFrame)
			if !ok {
				t.Fatalf("decoded %T, want FileChunkFrame", decoded)
			}
			if gotChunk.ChunkIndex != 3 || gotChunk.TotalChunks != 7 || !bytes.Equal(gotChunk.Bytes, chunk.Bytes) {
				t.Fatal("chunk did not survive the round trip")
			}
		})
	}
}

func TestCodecUnknownFrame(t *testing.T) {
	data, err := JSONCodec{}.Encode(ChatFrame{Type: "mystery", Text: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (JSONCodec{}).Decode(data); !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("Decode = %v, want ErrUnknownFrame", err)
	}
}

func TestTotalChunks(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{0, 0},
		{1, 1},
		{ChunkSize - 1, 1},
		{ChunkSize, 1},
		{ChunkSize + 1, 2},
		{10 * ChunkSize, 10},
	}
	for _, tt := range tests {
		if got := TotalChunks(tt.size); got != tt.want {
			t.Errorf("TotalChunks(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	sizes := []int{0, 1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 5*ChunkSize + 123, 3*1024*1024 + 517}

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("%s/%d", codec.Name(), size), func(t *testing.T) {
				data := patternData(size)
				info := writeTempFile(t, "payload.bin", data)

				pipe := &pipeChannel{}
				sender := NewSender(pipe, codec, nil)

				var lastProgress Progress
				if err := sender.SendFile(context.Background(), info, func(p Progress) {
					if p.SentChunks <= lastProgress.SentChunks {
						t.Fatalf("progress not monotonic: %+v after %+v", p, lastProgress)
					}
					lastProgress = p
				}); err != nil {
					t.Fatalf("SendFile: %v", err)
				}

				wantFrames := 2 + TotalChunks(int64(size)) // info + chunks + complete
				if len(pipe.frames) != wantFrames {
					t.Fatalf("sent %d frames, want %d", len(pipe.frames), wantFrames)
				}

				save := &captureSave{}
				var done bool
				recv := NewReceiver(codec, save.fn, ReceiverHooks{
					OnFileDone: func(info FileInfoFrame, path string) { done = true },
					OnFailure:  func(err error) { t.Fatalf("unexpected failure: %v", err) },
				}, nil)

				for _, frame := range pipe.frames {
					if err := recv.HandleRaw(frame); err != nil {
						t.Fatalf("HandleRaw: %v", err)
					}
				}

				if !done {
					t.Fatal("transfer never completed")
				}
				if save.hits != 1 {
					t.Fatalf("save called %d times", save.hits)
				}
				if save.name != "payload.bin" {
					t.Fatalf("saved name = %q", save.name)
				}
				if !bytes.Equal(save.data, data) {
					t.Fatalf("assembled %d bytes, want %d, content mismatch", len(save.data), len(data))
				}
				if recv.InProgress() {
					t.Fatal("receiver still reports a transfer in progress")
				}
			})
		}
	}
}

func encodeFrames(t *testing.T, codec Codec, frames ...Frame) [][]byte {
	t.Helper()
	out := make([][]byte, 0, len(frames))
	for _, f := range frames {
		data, err := codec.Encode(f)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, data)
	}
	return out
}

func chunkFrame(index, total int, data []byte) FileChunkFrame {
	return FileChunkFrame{Type: FrameFileChunk, ChunkIndex: index, TotalChunks: total, Bytes: data}
}

func infoFrame(name string, size int64, total int) FileInfoFrame {
	return FileInfoFrame{Type: FrameFileInfo, FileName: name, FileSize: size, MimeType: "application/octet-stream", TotalChunks: total}
}

func completeFrame(name string, size int64) FileCompleteFrame {
	return FileCompleteFrame{Type: FrameFileComplete, FileName: name, FileSize: size, MimeType: "application/octet-stream"}
}

func newFailureReceiver(t *testing.T, failures *[]error) (*Receiver, *captureSave) {
	t.Helper()
	save := &captureSave{}
	recv := NewReceiver(JSONCodec{}, save.fn, ReceiverHooks{
		OnFailure: func(err error) { *failures = append(*failures, err) },
	}, nil)
	return recv, save
}

func TestReceiverChunkGapFailsTransfer(t *testing.T) {
	var failures []error
	recv, save := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 6, 3),
		chunkFrame(0, 3, []byte{1, 2}),
		chunkFrame(2, 3, []byte{5, 6}), // gap: 1 skipped
	)
	for i, frame := range frames[:2] {
		if err := recv.HandleRaw(frame); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	err := recv.HandleRaw(frames[2])
	if !errors.Is(err, ErrChunkGap) {
		t.Fatalf("HandleRaw = %v, want ErrChunkGap", err)
	}
	if len(failures) != 1 {
		t.Fatalf("OnFailure called %d times, want 1", len(failures))
	}
	if recv.InProgress() {
		t.Fatal("partial buffer was not discarded")
	}
	if save.hits != 0 {
		t.Fatal("a failed transfer was saved")
	}

	// The receiver recovers: a complete fresh transfer goes through.
	fresh := encodeFrames(t, JSONCodec{},
		infoFrame("b.bin", 2, 1),
		chunkFrame(0, 1, []byte{9, 9}),
		completeFrame("b.bin", 2),
	)
	for _, frame := range fresh {
		if err := recv.HandleRaw(frame); err != nil {
			t.Fatalf("recovery transfer: %v", err)
		}
	}
	if save.hits != 1 || save.name != "b.bin" {
		t.Fatalf("recovery transfer not saved: hits=%d name=%q", save.hits, save.name)
	}
}

func TestReceiverDuplicateChunkFails(t *testing.T) {
	var failures []error
	recv, _ := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 4, 2),
		chunkFrame(0, 2, []byte{1, 2}),
		chunkFrame(0, 2, []byte{1, 2}),
	)
	recv.HandleRaw(frames[0])
	recv.HandleRaw(frames[1])
	if err := recv.HandleRaw(frames[2]); !errors.Is(err, ErrChunkGap) {
		t.Fatalf("HandleRaw = %v, want ErrChunkGap", err)
	}
}

func TestReceiverEarlyCompleteFails(t *testing.T) {
	var failures []error
	recv, save := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 4, 2),
		chunkFrame(0, 2, []byte{1, 2}),
		completeFrame("a.bin", 4), // one chunk missing
	)
	recv.HandleRaw(frames[0])
	recv.HandleRaw(frames[1])
	if err := recv.HandleRaw(frames[2]); !errors.Is(err, ErrChunkCountMismatch) {
		t.Fatalf("HandleRaw = %v, want ErrChunkCountMismatch", err)
	}
	if save.hits != 0 {
		t.Fatal("incomplete transfer was saved")
	}
}

func TestReceiverNameMismatchFails(t *testing.T) {
	var failures []error
	recv, save := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 2, 1),
		chunkFrame(0, 1, []byte{1, 2}),
		completeFrame("other.bin", 2),
	)
	recv.HandleRaw(frames[0])
	recv.HandleRaw(frames[1])
	if err := recv.HandleRaw(frames[2]); !errors.Is(err, ErrNameMismatch) {
		t.Fatalf("HandleRaw = %v, want ErrNameMismatch", err)
	}
	if save.hits != 0 {
		t.Fatal("mismatched transfer was saved")
	}
}

func TestReceiverSizeMismatchFails(t *testing.T) {
	var failures []error
	recv, _ := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 10, 1),
		chunkFrame(0, 1, []byte{1, 2, 3}), // only 3 of 10 announced bytes
		completeFrame("a.bin", 10),
	)
	recv.HandleRaw(frames[0])
	recv.HandleRaw(frames[1])
	if err := recv.HandleRaw(frames[2]); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("HandleRaw = %v, want ErrSizeMismatch", err)
	}
}

func TestReceiverChunkWithoutAnnouncement(t *testing.T) {
	var failures []error
	recv, _ := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{}, chunkFrame(0, 1, []byte{1}))
	if err := recv.HandleRaw(frames[0]); !errors.Is(err, ErrNoTransfer) {
		t.Fatalf("HandleRaw = %v, want ErrNoTransfer", err)
	}
}

func TestReceiverChunkCountDisagreement(t *testing.T) {
	var failures []error
	recv, _ := newFailureReceiver(t, &failures)

	frames := encodeFrames(t, JSONCodec{},
		infoFrame("a.bin", 4, 2),
		chunkFrame(0, 5, []byte{1, 2}), // claims a different total
	)
	recv.HandleRaw(frames[0])
	if err := recv.HandleRaw(frames[1]); !errors.Is(err, ErrChunkCountMismatch) {
		t.Fatalf("HandleRaw = %v, want ErrChunkCountMismatch", err)
	}
}

func TestChatInterleavedWithTransfer(t *testing.T) {
	save := &captureSave{}
	var chats []string
	recv := NewReceiver(JSONCodec{}, save.fn, ReceiverHooks{
		OnChat:    func(f ChatFrame) { chats = append(chats, f.Text) },
		OnFailure: func(err error) { t.Fatalf("unexpected failure: %v", err) },
	}, nil)

	frames := encodeFrames(t, JSONCodec{},
		NewChatFrame("before"),
		infoFrame("a.bin", 4, 2),
		chunkFrame(0, 2, []byte{1, 2}),
		NewChatFrame("during"),
		chunkFrame(1, 2, []byte{3, 4}),
		completeFrame("a.bin", 4),
		NewChatFrame("after"),
	)
	for i, frame := range frames {
		if err := recv.HandleRaw(frame); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	if save.hits != 1 || !bytes.Equal(save.data, []byte{1, 2, 3, 4}) {
		t.Fatal("file did not survive chat interleaving")
	}
	want := []string{"before", "during", "after"}
	if len(chats) != len(want) {
		t.Fatalf("chats = %v", chats)
	}
	for i := range want {
		if chats[i] != want[i] {
			t.Fatalf("chats = %v, want %v", chats, want)
		}
	}
}

func TestEmptyFileTransfersAsMetadataOnly(t *testing.T) {
	info := writeTempFile(t, "empty.txt", nil)

	pipe := &pipeChannel{}
	sender := NewSender(pipe, JSONCodec{}, nil)
	if err := sender.SendFile(context.Background(), info, nil); err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if len(pipe.frames) != 2 {
		t.Fatalf("empty file sent %d frames, want info+complete only", len(pipe.frames))
	}

	save := &captureSave{}
	recv := NewReceiver(JSONCodec{}, save.fn, ReceiverHooks{
		OnFailure: func(err error) { t.Fatalf("unexpected failure: %v", err) },
	}, nil)
	for _, frame := range pipe.frames {
		if err := recv.HandleRaw(frame); err != nil {
			t.Fatal(err)
		}
	}
	if save.hits != 1 || len(save.data) != 0 {
		t.Fatalf("empty file not materialized: hits=%d len=%d", save.hits, len(save.data))
	}
}

func TestTransferErrorFormat(t *testing.T) {
	err := NewFileError("receive", "a.bin", ErrChunkGap, "got chunk 2, expected 1")
	msg := err.Error()
	for _, want := range []string{"receive", "a.bin", "chunk sequence gap", "expected 1"} {
		if !bytes.Contains([]byte(msg), []byte(want)) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrChunkGap) {
		t.Fatal("TransferError does not unwrap to its cause")
	}
}

func TestTranscript(t *testing.T) {
	var tr Transcript
	tr.Add(ChatEntry{From: "aaaaaaaaaa", Text: "hi", Local: true})
	tr.Add(ChatEntry{From: "bbbbbbbbbb", Text: "hello"})

	entries := tr.Entries()
	if len(entries) != 2 || entries[0].Text != "hi" || entries[1].Text != "hello" {
		t.Fatalf("entries = %+v", entries)
	}

	// Entries is a copy; mutating it does not touch the transcript.
	entries[0].Text = "mutated"
	if tr.Entries()[0].Text != "hi" {
		t.Fatal("Entries leaked internal state")
	}

	tr.Clear()
	if tr.Len() != 0 {
		t.Fatalf("Len after Clear = %d", tr.Len())
	}
}
