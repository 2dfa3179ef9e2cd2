// Package message wraps a parsed mail message: an ordered header plus the
// raw body bytes. Parsing is deliberately tolerant and serialization
// round-trips, so a filter can inspect a message and hand it on unchanged.
package message

import (
	"bufio"
	"bytes"
	"io"

	"github.com/emersion/go-message/textproto"
)

// Message is a single mail message. Header names are case-insensitive and
// duplicate fields keep their order; the body is opaque bytes.
type Message struct {
	header textproto.Header
	body   []byte
}

// Parse builds a Message from raw bytes. It never fails: a malformed
// header yields whatever fields could be read, with the remainder kept as
// body, matching the permissive contract MTAs expect from a filter.
func Parse(raw []byte) *Message {
	br := bufio.NewReader(bytes.NewReader(raw))
	header, _ := textproto.ReadHeader(br)
	body, _ := io.ReadAll(br)
	return &Message{header: header, body: body}
}

// Bytes serializes the message back to wire form. Header fields that were
// never modified keep their original raw bytes, so parse → serialize →
// reparse yields an equivalent message.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer
	buf.Write(m.HeaderBytes())
	buf.Write(m.body)
	return buf.Bytes()
}

// HeaderBytes serializes the header alone, including the blank separator
// line.
func (m *Message) HeaderBytes() []byte {
	var buf bytes.Buffer
	_ = textproto.WriteHeader(&buf, m.header)
	return buf.Bytes()
}

// Header returns the value of the first field named name, or "" when the
// field is absent. Lookup is case-insensitive.
func (m *Message) Header(name string) string {
	return m.header.Get(name)
}

// HeaderAll returns every value of the named field, in the order the
// fields appear in the message.
func (m *Message) HeaderAll(name string) []string {
	var values []string
	fields := m.header.FieldsByKey(name)
	for fields.Next() {
		values = append(values, fields.Value())
	}
	return values
}

// Body returns the raw body bytes.
func (m *Message) Body() []byte {
	return m.body
}

// BodyString returns the body as text.
func (m *Message) BodyString() string {
	return string(m.body)
}

// Convenience accessors for the fields filter scripts inspect most.
// Each one delegates to the generic header lookup.

func (m *Message) From() string    { return m.Header("From") }
func (m *Message) To() string      { return m.Header("To") }
func (m *Message) Cc() string      { return m.Header("Cc") }
func (m *Message) Bcc() string     { return m.Header("Bcc") }
func (m *Message) Subject() string { return m.Header("Subject") }

// Received returns all Received fields, topmost first.
func (m *Message) Received() []string { return m.HeaderAll("Received") }
