// Package ipc provides the control channel between the puntod daemon and
// its clients over a Unix socket.
//
// Messages are length-prefixed frames: a fixed 16-byte header carrying a
// magic number, protocol version, message type and request ID, followed by
// a JSON payload.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sergeivaskov/punto/internal/corrector"
)

// Protocol constants for compatibility checking.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x50495043 // "PIPC"
)

// MessageType identifies the type of IPC message.
type MessageType uint16

const (
	// Control messages (0x00xx)
	MsgPing     MessageType = 0x0001
	MsgPong     MessageType = 0x0002
	MsgError    MessageType = 0x0005
	MsgShutdown MessageType = 0x0006

	// Status (0x01xx)
	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101

	// Correction control (0x02xx)
	MsgPause                MessageType = 0x0200
	MsgPauseResp            MessageType = 0x0201
	MsgResume               MessageType = 0x0202
	MsgResumeResp           MessageType = 0x0203
	MsgConvertSelection     MessageType = 0x0204
	MsgConvertSelectionResp MessageType = 0x0205

	// Dictionary operations (0x03xx)
	MsgDictAdd        MessageType = 0x0300
	MsgDictAddResp    MessageType = 0x0301
	MsgDictRemove     MessageType = 0x0302
	MsgDictRemoveResp MessageType = 0x0303
	MsgDictList       MessageType = 0x0304
	MsgDictListResp   MessageType = 0x0305
	MsgDictReload     MessageType = 0x0306
	MsgDictReloadResp MessageType = 0x0307

	// Exclusion list (0x04xx)
	MsgExclude        MessageType = 0x0400
	MsgExcludeResp    MessageType = 0x0401
	MsgUnexclude      MessageType = 0x0402
	MsgUnexcludeResp  MessageType = 0x0403
	MsgExclusions     MessageType = 0x0404
	MsgExclusionsResp MessageType = 0x0405
)

// Header is the fixed-size message header.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32 // Payload length, not including the header
}

// HeaderSize is the size of the header in bytes.
const HeaderSize = 16

// maxPayload bounds a single frame.
const maxPayload = 16 * 1024 * 1024

// Message wraps a header and payload.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage creates a message with the given type and payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write writes the header to a writer.
func (h *Header) Write(w io.Writer) error {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	buf[4] = h.Version
	buf[5] = h.Flags
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.Type))
	binary.BigEndian.PutUint32(buf[8:12], h.RequestID)
	binary.BigEndian.PutUint32(buf[12:16], h.Length)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates a header from a reader.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:     binary.BigEndian.Uint32(buf[0:4]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:8])),
		RequestID: binary.BigEndian.Uint32(buf[8:12]),
		Length:    binary.BigEndian.Uint32(buf[12:16]),
	}

	if h.Magic != ProtocolMagic {
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	}
	if h.Version > ProtocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return h, nil
}

// Write writes the message to a writer.
func (m *Message) Write(w io.Writer) error {
	if err := m.Header.Write(w); err != nil {
		return err
	}
	if len(m.Payload) > 0 {
		_, err := w.Write(m.Payload)
		return err
	}
	return nil
}

// ReadMessage reads a complete message from a reader.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		if h.Length > maxPayload {
			return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
		}
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Request/response payloads.

// ErrorResponse is sent when an operation fails.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrNotFound       = 3
	ErrInternalError  = 5
)

// StatusResponse contains daemon status.
type StatusResponse struct {
	Version   string          `json:"version"`
	StartedAt time.Time       `json:"started_at"`
	Uptime    time.Duration   `json:"uptime"`
	Stats     corrector.Stats `json:"stats"`
}

// AckResponse acknowledges a command with no further data.
type AckResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DictWordRequest names a word and its language for add/remove.
type DictWordRequest struct {
	Word     string `json:"word"`
	Language string `json:"language"` // "latin" or "cyrillic"
}

// DictEntry is one personal dictionary entry.
type DictEntry struct {
	Word     string `json:"word"`
	Language string `json:"language"`
}

// DictListResponse lists the personal dictionary.
type DictListResponse struct {
	Entries []DictEntry `json:"entries"`
}

// ExcludeRequest names a token for the never-correct list.
type ExcludeRequest struct {
	Token string `json:"token"`
}

// ExclusionsResponse lists the never-correct tokens.
type ExclusionsResponse struct {
	Tokens []string `json:"tokens"`
}

// Encode encodes a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode decodes JSON bytes into a payload.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{Code: code, Message: message})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse creates a response message with a JSON payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
