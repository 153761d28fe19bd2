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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
)

func fixedPacket() *Packet {
	p := New("Division by zero")
	p.eventID = "18e110117d1e474fa0f9f63a2d661ccc"
	p.timestamp = time.Date(2024, 1, 2, 3, 4, 5, 678000000, time.UTC)
	p.Project = "79295"
	p.Exception = &Exception{Type: "DivideByZeroException", Value: "Division by zero"}
	p.StackTrace = StackTrace{Frames: []Frame{
		{Filename: "CaptureTest.cs", Function: "testWithStacktrace", LineNumber: 57},
		{Filename: "CaptureTest.cs", Function: "PerformDivideByZero", LineNumber: 70},
	}}
	return p
}

func TestNew(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	p := New("boom")

	assert.Len(t, p.EventID(), 32)
	assert.Equal(t, time.UTC, p.Timestamp().Location())
	assert.True(t, p.Timestamp().After(before))
	assert.Equal(t, LevelError, p.Level)
	assert.Equal(t, DefaultLogger, p.Logger)
	assert.Equal(t, DefaultPlatform, p.Platform)
	assert.Equal(t, DefaultProject, p.Project)
	assert.Equal(t, "boom", p.Message)

	assert.NotEqual(t, p.EventID(), New("boom").EventID())
}

func TestLevel(t *testing.T) {
	level, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarning, level)

	_, err = ParseLevel("critical")
	assert.Error(t, err)

	assert.True(t, LevelFatal.AtLeast(LevelError))
	assert.True(t, LevelWarning.AtLeast(LevelWarning))
	assert.False(t, LevelInfo.AtLeast(LevelWarning))
	assert.True(t, LevelDebug.AtLeast(LevelDebug))
}

func TestEncode(t *testing.T) {
	data, err := Encode(fixedPacket())
	require.NoError(t, err)

	expected := `{"event_id":"18e110117d1e474fa0f9f63a2d661ccc","project":"79295","level":"error",` +
		`"timestamp":"2024-01-02T03:04:05","logger":"root","platform":"csharp","message":"Division by zero",` +
		`"sentry.interfaces.Exception":{"type":"DivideByZeroException","value":"Division by zero"},` +
		`"sentry.interfaces.Stacktrace":{"frames":[` +
		`{"filename":"CaptureTest.cs","function":"testWithStacktrace","lineno":"57"},` +
		`{"filename":"CaptureTest.cs","function":"PerformDivideByZero","lineno":"70"}]}}`

	assert.Equal(t, expected, string(data))
}

func TestEncode_KeyOrder(t *testing.T) {
	p := fixedPacket()
	p.Culprit = "CaptureTest in PerformDivideByZero"
	p.Tags = map[string]string{"os": "linux"}
	p.Exception.Module = "Assembly-CSharp"

	data, err := Encode(p)
	require.NoError(t, err)

	v, err := fastjson.ParseBytes(data)
	require.NoError(t, err)

	var keys []string
	v.GetObject().Visit(func(key []byte, _ *fastjson.Value) {
		keys = append(keys, string(key))
	})

	assert.Equal(t, []string{
		"event_id", "project", "culprit", "level", "timestamp", "logger", "platform",
		"message", "tags", "sentry.interfaces.Exception", "sentry.interfaces.Stacktrace",
	}, keys)

	keys = nil
	v.GetObject("sentry.interfaces.Exception").Visit(func(key []byte, _ *fastjson.Value) {
		keys = append(keys, string(key))
	})
	assert.Equal(t, []string{"type", "value", "module"}, keys)
}

func TestEncode_OmitsEmptyFields(t *testing.T) {
	p := New("")
	p.eventID = ""
	p.Project = ""
	p.Logger = ""
	p.Platform = ""
	p.Level = ""
	p.Tags = map[string]string{}

	data, err := Encode(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	// Only the mandatory fields remain.
	assert.Equal(t, map[string]any{
		"level":                       "error",
		"timestamp":                   p.Timestamp().Format(TimestampFormat),
		"sentry.interfaces.Exception": map[string]any{},
	}, decoded)
}

func TestEncode_NeverNull(t *testing.T) {
	p := fixedPacket()
	p.Exception = &Exception{Type: "NullReferenceException"}
	p.StackTrace.Frames = append(p.StackTrace.Frames, Frame{Function: "UnityEngine.Debug:Log(Object)", Filename: UnknownFilename, LineNumber: UnknownLine})

	data, err := Encode(p)
	require.NoError(t, err)

	v, err := fastjson.ParseBytes(data)
	require.NoError(t, err)

	var visit func(v *fastjson.Value)
	visit = func(v *fastjson.Value) {
		require.NotEqual(t, fastjson.TypeNull, v.Type())
		switch v.Type() {
		case fastjson.TypeObject:
			v.GetObject().Visit(func(_ []byte, child *fastjson.Value) { visit(child) })
		case fastjson.TypeArray:
			for _, child := range v.GetArray() {
				visit(child)
			}
		}
	}
	visit(v)

	assert.False(t, v.Exists("sentry.interfaces.Exception", "value"))
	assert.Equal(t, "-1", string(v.GetStringBytes("sentry.interfaces.Stacktrace", "frames", "2", "lineno")))
}

func TestEncode_EmptyStackTraceOmitted(t *testing.T) {
	p := fixedPacket()
	p.StackTrace = StackTrace{}

	data, err := Encode(p)
	require.NoError(t, err)

	v, err := fastjson.ParseBytes(data)
	require.NoError(t, err)
	assert.False(t, v.Exists("sentry.interfaces.Stacktrace"))
}

func TestEncode_Tags(t *testing.T) {
	p := fixedPacket()
	p.Tags = map[string]string{"scene": "Main", "build": "42", "device": "pc"}

	data, err := Encode(p)
	require.NoError(t, err)

	var decoded struct {
		Tags [][]string `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, [][]string{{"build", "42"}, {"device", "pc"}, {"scene", "Main"}}, decoded.Tags)
}

func TestEncode_RoundTrip(t *testing.T) {
	p := fixedPacket()
	p.Culprit = "CaptureTest"
	p.Tags = map[string]string{"k": "v \"quoted\""}
	p.Message = "line one\nline two"

	data, err := Encode(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, p.EventID(), decoded["event_id"])
	assert.Equal(t, p.Project, decoded["project"])
	assert.Equal(t, p.Culprit, decoded["culprit"])
	assert.Equal(t, "2024-01-02T03:04:05", decoded["timestamp"])
	assert.Equal(t, p.Message, decoded["message"])
	assert.Equal(t, []any{[]any{"k", "v \"quoted\""}}, decoded["tags"])

	frames := decoded["sentry.interfaces.Stacktrace"].(map[string]any)["frames"].([]any)
	require.Len(t, frames, 2)
	assert.Equal(t, map[string]any{"filename": "CaptureTest.cs", "function": "testWithStacktrace", "lineno": "57"}, frames[0])
	assert.Equal(t, map[string]any{"filename": "CaptureTest.cs", "function": "PerformDivideByZero", "lineno": "70"}, frames[1])
}

func TestEncode_Idempotent(t *testing.T) {
	p := fixedPacket()
	p.Tags = map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}

	first, err := Encode(p)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Encode(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncode_NilPacket(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

func TestMarshalJSON(t *testing.T) {
	p := fixedPacket()

	viaJSON, err := json.Marshal(p)
	require.NoError(t, err)

	direct, err := Encode(p)
	require.NoError(t, err)

	assert.JSONEq(t, string(direct), string(viaJSON))
}

func TestEncode_EscapesControlCharacters(t *testing.T) {
	p := fixedPacket()
	p.Message = "ansi \x1b[31mred\x1b[0m \"quoted\""
	p.Culprit = "bell\a \\ back"
	p.Tags = map[string]string{"nul\x00": "bad utf8 \xff \"x\""}
	p.Exception.Value = "nul\x00 <tag> & \"x\""
	p.StackTrace.Frames = append(p.StackTrace.Frames, Frame{
		Filename:   UnknownFilename,
		Function:   "\x1b[1mbold\x1b[0m \"frame\"",
		LineNumber: UnknownLine,
	})

	data, err := Encode(p)
	require.NoError(t, err)
	require.True(t, json.Valid(data), string(data))

	var decoded struct {
		Message   string     `json:"message"`
		Culprit   string     `json:"culprit"`
		Tags      [][]string `json:"tags"`
		Exception struct {
			Value string `json:"value"`
		} `json:"sentry.interfaces.Exception"`
		StackTrace struct {
			Frames []struct {
				Function string `json:"function"`
			} `json:"frames"`
		} `json:"sentry.interfaces.Stacktrace"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, p.Message, decoded.Message)
	assert.Equal(t, p.Culprit, decoded.Culprit)
	assert.Equal(t, [][]string{{"nul\x00", "bad utf8 \uFFFD \"x\""}}, decoded.Tags)
	assert.Equal(t, p.Exception.Value, decoded.Exception.Value)
	require.Len(t, decoded.StackTrace.Frames, 3)
	assert.Equal(t, "\x1b[1mbold\x1b[0m \"frame\"", decoded.StackTrace.Frames[2].Function)

	assert.Contains(t, string(data), `\u001b[31mred`)
	assert.Contains(t, string(data), `<tag> &`)
}
