// Package protocol defines the JSON messages exchanged with a build server
// over the update socket.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/giantswarm/hotpatch/internal/issues"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/internal/update"
)

// MessageType is the "type" field of a server message.
type MessageType string

const (
	// TypeIssues carries diagnostics only.
	TypeIssues MessageType = "issues"

	// TypePartial carries an incremental instruction that is aggregated per batch.
	TypePartial MessageType = "partial"

	// TypeRestart asks listeners to reload the resource from scratch.
	TypeRestart MessageType = "restart"

	// TypeNotFound reports that the server no longer knows the resource. The
	// server considers the subscription closed.
	TypeNotFound MessageType = "notFound"
)

// ClientMessageType is the "type" field of a client control message.
type ClientMessageType string

const (
	TypeSubscribe   ClientMessageType = "turbopack-subscribe"
	TypeUnsubscribe ClientMessageType = "turbopack-unsubscribe"
)

// ServerMessage is one update envelope sent by the build server.
type ServerMessage struct {
	Resource resource.Resource `json:"resource"`
	Type     MessageType       `json:"type"`

	// Instruction is decoded for partial messages only.
	Instruction *update.Instruction `json:"-"`

	// Data keeps the raw instruction of any other message type.
	Data json.RawMessage `json:"-"`

	Issues []issues.Issue `json:"issues"`
}

type serverMessageJSON struct {
	Resource    resource.Resource `json:"resource"`
	Type        MessageType       `json:"type"`
	Instruction json.RawMessage   `json:"instruction,omitempty"`
	Issues      []issues.Issue    `json:"issues"`
}

// MarshalJSON implements json.Marshaler.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	raw := serverMessageJSON{
		Resource: m.Resource,
		Type:     m.Type,
		Issues:   m.Issues,
	}
	if raw.Issues == nil {
		raw.Issues = []issues.Issue{}
	}

	switch {
	case m.Instruction != nil:
		data, err := json.Marshal(m.Instruction)
		if err != nil {
			return nil, err
		}
		raw.Instruction = data
	case len(m.Data) > 0:
		raw.Instruction = m.Data
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ServerMessage) UnmarshalJSON(data []byte) error {
	var raw serverMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return errors.New("server message without type")
	}

	*m = ServerMessage{
		Resource: raw.Resource,
		Type:     raw.Type,
		Issues:   raw.Issues,
	}

	if raw.Type != TypePartial {
		m.Data = raw.Instruction
		return nil
	}

	var in update.Instruction
	if len(raw.Instruction) > 0 && !bytes.Equal(raw.Instruction, []byte("null")) {
		if err := json.Unmarshal(raw.Instruction, &in); err != nil {
			return fmt.Errorf("decoding instruction for %s: %w", raw.Resource, err)
		}
	}
	m.Instruction = &in
	return nil
}

// ClientMessage subscribes to or unsubscribes from a resource.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	resource.Resource
}

// Subscribe builds a subscribe control message for r.
func Subscribe(r resource.Resource) ClientMessage {
	return ClientMessage{Type: TypeSubscribe, Resource: r}
}

// Unsubscribe builds an unsubscribe control message for r.
func Unsubscribe(r resource.Resource) ClientMessage {
	return ClientMessage{Type: TypeUnsubscribe, Resource: r}
}
