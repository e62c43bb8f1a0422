package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Frame is the content of one socket message: a single envelope or a batch.
type Frame struct {
	Messages []ServerMessage
	Batch    bool
}

// ErrEmptyFrame is returned for frames without content.
var ErrEmptyFrame = errors.New("empty frame")

// DecodeFrame decodes a socket message. A JSON array is a batch.
func DecodeFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	if trimmed[0] == '[' {
		var msgs []ServerMessage
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return Frame{}, err
		}
		return Frame{Messages: msgs, Batch: true}, nil
	}

	var msg ServerMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return Frame{}, err
	}
	return Frame{Messages: []ServerMessage{msg}}, nil
}

// EncodeFrame encodes f the way DecodeFrame expects it.
func EncodeFrame(f Frame) ([]byte, error) {
	if f.Batch {
		msgs := f.Messages
		if msgs == nil {
			msgs = []ServerMessage{}
		}
		return json.Marshal(msgs)
	}
	if len(f.Messages) != 1 {
		return nil, errors.New("a non-batch frame holds exactly one message")
	}
	return json.Marshal(f.Messages[0])
}
