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
	"fmt"
	"time"

	"github.com/dpeckett/raven/internal/util"
)

// Level is the severity of an event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

var levelRanks = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
	LevelFatal:   4,
}

// ParseLevel validates a level name.
func ParseLevel(name string) (Level, error) {
	level := Level(name)
	if _, ok := levelRanks[level]; !ok {
		return "", fmt.Errorf("unknown level: %q", name)
	}
	return level, nil
}

// AtLeast reports whether l is as severe as min or more.
func (l Level) AtLeast(min Level) bool {
	return levelRanks[l] >= levelRanks[min]
}

const (
	// DefaultLogger is the logger name used when none is configured.
	DefaultLogger = "root"
	// DefaultPlatform tells the ingestion service how to render frames.
	DefaultPlatform = "csharp"
	// DefaultProject is replaced with the DSN project id on send.
	DefaultProject = "default"
	// UnknownFilename is the filename of a frame that could not be parsed.
	UnknownFilename = "unknown"
	// UnknownLine marks a frame that could not be parsed.
	UnknownLine = -1
)

// Frame is a single call site in a stack trace.
type Frame struct {
	// The file name of the call site, including the .cs extension.
	Filename string
	// The name of the method, as printed by the runtime.
	Function string
	// The line number, or UnknownLine if the trace line could not be parsed.
	LineNumber int
}

// Degraded reports whether the frame was built from an unparseable line.
func (f Frame) Degraded() bool {
	return f.LineNumber == UnknownLine && f.Filename == UnknownFilename
}

// StackTrace is an ordered list of frames, outermost call first.
type StackTrace struct {
	Frames []Frame
}

// Exception describes the error that triggered an event.
type Exception struct {
	Type   string
	Value  string
	Module string
}

// Packet is a single event, ready to be encoded and sent to the ingestion endpoint.
type Packet struct {
	eventID   string
	timestamp time.Time

	// The project the event belongs to.
	Project string
	// The function call which was the primary perpetrator of the event.
	Culprit string
	// The severity of the event.
	Level Level
	// The name of the logger which created the event.
	Logger string
	// The platform the client is submitting from.
	Platform string
	// A human readable summary of the event.
	Message string
	// Tags to index the event by.
	Tags map[string]string
	// The exception that caused the event, if any.
	Exception *Exception
	// The stack trace of the event, if any.
	StackTrace StackTrace
}

// New creates a packet with a fresh event id and the current UTC time.
func New(message string) *Packet {
	return &Packet{
		eventID:   util.NewEventID(),
		timestamp: time.Now().UTC(),
		Project:   DefaultProject,
		Level:     LevelError,
		Logger:    DefaultLogger,
		Platform:  DefaultPlatform,
		Message:   message,
	}
}

// EventID returns the hex encoded unique id of the event.
func (p *Packet) EventID() string {
	return p.eventID
}

// Timestamp returns when the packet was created.
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}
