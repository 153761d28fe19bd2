// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package logscan groups the lines of a Unity player or editor log into
// captured events.
//
// With stack trace logging enabled every log call is written as a block: the
// message, the stack trace one frame per line, an optional filename hint and
// a blank line.
package logscan

import (
	"regexp"
	"strings"

	"github.com/dpeckett/raven"
)

var exceptionPattern = regexp.MustCompile(`^[\w.]+Exception(: |$)`)

// Unity's logging entry points, as they appear in the first trace line.
var logCallSeverities = []struct {
	prefix   string
	severity raven.Severity
}{
	{"UnityEngine.Debug:LogException", raven.SeverityException},
	{"UnityEngine.Debug:LogAssertion", raven.SeverityAssert},
	{"UnityEngine.Debug:Assert", raven.SeverityAssert},
	{"UnityEngine.Debug:LogError", raven.SeverityError},
	{"UnityEngine.Debug:LogWarning", raven.SeverityWarning},
	{"UnityEngine.Debug:Log", raven.SeverityLog},
}

// Scanner assembles log lines into events. It is not safe for concurrent use.
type Scanner struct {
	block []string
}

// Feed adds a line to the current block. When the line completes a block that
// carries a stack trace, the event is returned.
func (s *Scanner) Feed(line string) (raven.Event, bool) {
	line = strings.TrimRight(line, "\r")

	if strings.TrimSpace(line) == "" {
		return s.Flush()
	}

	if strings.HasPrefix(line, "(Filename:") {
		return raven.Event{}, false
	}

	s.block = append(s.block, line)
	return raven.Event{}, false
}

// Flush completes the current block, if any.
func (s *Scanner) Flush() (raven.Event, bool) {
	block := s.block
	s.block = nil

	// Lines without a stack trace are plain engine output.
	if len(block) < 2 {
		return raven.Event{}, false
	}

	return raven.Event{
		Message:    block[0],
		StackTrace: strings.Join(block[1:], "\n"),
		Severity:   severityOf(block[0], block[1]),
	}, true
}

func severityOf(message, firstFrame string) raven.Severity {
	if exceptionPattern.MatchString(message) {
		return raven.SeverityException
	}

	for _, c := range logCallSeverities {
		if strings.HasPrefix(firstFrame, c.prefix) {
			return c.severity
		}
	}

	return raven.SeverityLog
}
