// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */


package packet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// TimestampFormat is the wire format of the event timestamp (UTC, no zone suffix).
const TimestampFormat = "2006-01-02T15:04:05"

const (
	exceptionInterface  = "sentry.interfaces.Exception"
	stacktraceInterface = "sentry.interfaces.Stacktrace"
)

// Encode serializes the packet into the ingestion wire format.
//
// Keys are written in a fixed order and empty values are omitted rather than
// written as null. The level, the timestamp and the exception object are
// always present. Line numbers are written as strings.
func Encode(p *Packet) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil packet")
	}

	w := newWriter()

	w.beginObject()
	w.stringField("event_id", p.eventID)
	w.stringField("project", p.Project)
	w.stringField("culprit", p.Culprit)

	level := p.Level
	if level == "" {
		level = LevelError
	}
	w.key("level")
	w.quote(string(level))
	w.key("timestamp")
	w.quote(p.timestamp.UTC().Format(TimestampFormat))

	w.stringField("logger", p.Logger)
	w.stringField("platform", p.Platform)
	w.stringField("message", p.Message)

	if len(p.Tags) > 0 {
		w.key("tags")
		w.tags(p.Tags)
	}

	w.key(exceptionInterface)
	w.exception(p.Exception)

	if len(p.StackTrace.Frames) > 0 {
		w.key(stacktraceInterface)
		w.stackTrace(p.StackTrace)
	}
	w.endObject()

	if w.err != nil {
		return nil, fmt.Errorf("failed to encode packet: %w", w.err)
	}

	return w.buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (p *Packet) MarshalJSON() ([]byte, error) {
	return Encode(p)
}

// writer builds a JSON document with keys in the order they are written.
// Strings go through encoding/json so control characters and invalid UTF-8
// are escaped the way any JSON parser expects.
type writer struct {
	buf bytes.Buffer
	enc *json.Encoder
	// Whether the innermost open object or array already has a member.
	needComma []bool
	err       error
}

func newWriter() *writer {
	w := &writer{}
	w.enc = json.NewEncoder(&w.buf)
	w.enc.SetEscapeHTML(false)
	return w
}

func (w *writer) beginObject() { w.open('{') }
func (w *writer) endObject()   { w.close('}') }
func (w *writer) beginArray()  { w.open('[') }
func (w *writer) endArray()    { w.close(']') }

func (w *writer) open(c byte) {
	w.buf.WriteByte(c)
	w.needComma = append(w.needComma, false)
}

func (w *writer) close(c byte) {
	w.needComma = w.needComma[:len(w.needComma)-1]
	w.buf.WriteByte(c)
}

// element separates a new member from the previous one.
func (w *writer) element() {
	if len(w.needComma) == 0 {
		return
	}

	top := len(w.needComma) - 1
	if w.needComma[top] {
		w.buf.WriteByte(',')
	}
	w.needComma[top] = true
}

func (w *writer) key(k string) {
	w.element()
	w.quote(k)
	w.buf.WriteByte(':')
}

func (w *writer) item(s string) {
	w.element()
	w.quote(s)
}

func (w *writer) stringField(k, v string) {
	if v == "" {
		return
	}
	w.key(k)
	w.quote(v)
}

func (w *writer) quote(s string) {
	if w.err != nil {
		return
	}

	if err := w.enc.Encode(s); err != nil {
		w.err = err
		return
	}
	// Drop the newline the encoder terminates every value with.
	w.buf.Truncate(w.buf.Len() - 1)
}

// Tags are sorted by key so that encoding is deterministic.
func (w *writer) tags(tags map[string]string) {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w.beginArray()
	for _, k := range keys {
		w.element()
		w.beginArray()
		w.item(k)
		w.item(tags[k])
		w.endArray()
	}
	w.endArray()
}

func (w *writer) exception(exc *Exception) {
	w.beginObject()
	if exc != nil {
		w.stringField("type", exc.Type)
		w.stringField("value", exc.Value)
		w.stringField("module", exc.Module)
	}
	w.endObject()
}

func (w *writer) stackTrace(trace StackTrace) {
	w.beginObject()
	w.key("frames")
	w.beginArray()
	for _, frame := range trace.Frames {
		w.element()
		w.beginObject()
		w.stringField("filename", frame.Filename)
		w.stringField("function", frame.Function)
		w.stringField("lineno", strconv.Itoa(frame.LineNumber))
		w.endObject()
	}
	w.endArray()
	w.endObject()
}
