package transfer

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes direct-channel frames. JSON is the interoperable
// default; msgpack is used when both sides advertise support for it
// during signaling.
type Codec interface {
	Name() string
	Encode(Frame) ([]byte, error)
	Decode([]byte) (Frame, error)
}

// ClientTypeCLI is the client type advertised by this binary. Two CLI
// peers upgrade to msgpack framing; anything else falls back to JSON.
const ClientTypeCLI = "cli"

// Negotiate picks the frame codec from the client types exchanged in
// the offer/answer metadata.
func Negotiate(localType, peerType string) Codec {
	if localType == ClientTypeCLI && peerType == ClientTypeCLI {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// frameProbe reads just the type tag so Decode can pick the concrete
// frame struct.
type frameProbe struct {
	Type FrameType `json:"type" msgpack:"type"`
}

// JSONCodec frames messages as JSON objects with a "type" discriminator.
// Chunk bytes ride as base64 per encoding/json's []byte handling.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, NewError("encode", err, fmt.Sprintf("frame type %s", f.Kind()))
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (Frame, error) {
	var probe frameProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, NewError("decode", err, "unreadable frame header")
	}
	target, err := frameFor(probe.Type)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, NewError("decode", err, fmt.Sprintf("frame type %s", probe.Type))
	}
	return deref(target), nil
}

// MsgpackCodec frames messages as msgpack maps, keeping chunk payloads
// as raw binary instead of base64 text.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(f Frame) ([]byte, error) {
	data, err := msgpack.Marshal(f)
	if err != nil {
		return nil, NewError("encode", err, fmt.Sprintf("frame type %s", f.Kind()))
	}
	return data, nil
}

func (MsgpackCodec) Decode(data []byte) (Frame, error) {
	var probe frameProbe
	if err := msgpack.Unmarshal(data, &probe); err != nil {
		return nil, NewError("decode", err, "unreadable frame header")
	}
	target, err := frameFor(probe.Type)
	if err != nil {
		return nil, err
	}
	if err := msgpack.Unmarshal(data, target); err != nil {
		return nil, NewError("decode", err, fmt.Sprintf("frame type %s", probe.Type))
	}
	return deref(target), nil
}

func frameFor(t FrameType) (any, error) {
	switch t {
	case FrameChat:
		return &ChatFrame{}, nil
	case FrameFileInfo:
		return &FileInfoFrame{}, nil
	case FrameFileChunk:
		return &FileChunkFrame{}, nil
	case FrameFileComplete:
		return &FileCompleteFrame{}, nil
	default:
		return nil, NewError("decode", ErrUnknownFrame, fmt.Sprintf("type %q", t))
	}
}

func deref(target any) Frame {
	switch f := target.(type) {
	case *ChatFrame:
		return *f
	case *FileInfoFrame:
		return *f
	case *FileChunkFrame:
		return *f
	case *FileCompleteFrame:
		return *f
	}
	return nil
}
