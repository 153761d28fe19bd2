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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	locationMarker  = " (at "
	extensionMarker = ".cs:"
)

// ParseError is returned when a trace line has the shape of a frame but its
// line number is not an integer.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid stack frame %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStackTrace parses a Unity style stack trace, eg:
//
//	ExceptionGenerator.ThrowNestedB () (at Assets/Script/ExceptionGenerator.cs:26)
//	ExceptionGenerator.Update () (at Assets/Script/ExceptionGenerator.cs:13)
//
// The runtime prints the innermost call first, so the returned frames are in
// reverse line order. Lines that don't match are kept as degraded frames.
//
// The returned trace is always complete. The error, if any, joins a ParseError
// for every line whose line number could not be parsed.
func ParseStackTrace(raw string) (StackTrace, error) {
	var (
		trace StackTrace
		errs  []error
	)

	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSuffix(lines[i], "\r")
		if line == "" {
			continue
		}

		frame, err := parseFrame(line)
		if err != nil {
			errs = append(errs, err)
		}

		trace.Frames = append(trace.Frames, frame)
	}

	return trace, errors.Join(errs...)
}

func parseFrame(line string) (Frame, error) {
	degraded := Frame{
		Filename:   UnknownFilename,
		Function:   line,
		LineNumber: UnknownLine,
	}

	parts := splitAny(line, locationMarker, extensionMarker)
	if len(parts) != 3 {
		return degraded, nil
	}

	lineNumber, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(parts[2], ")", "")))
	if err != nil {
		return degraded, &ParseError{Line: line, Err: err}
	}

	return Frame{
		Filename:   parts[1] + ".cs",
		Function:   parts[0],
		LineNumber: lineNumber,
	}, nil
}

// splitAny splits s around every occurrence of any of the separators,
// dropping empty segments.
func splitAny(s string, seps ...string) []string {
	var parts []string
	for len(s) > 0 {
		idx, width := -1, 0
		for _, sep := range seps {
			if i := strings.Index(s, sep); i >= 0 && (idx < 0 || i < idx) {
				idx, width = i, len(sep)
			}
		}

		if idx < 0 {
			parts = append(parts, s)
			break
		}

		if idx > 0 {
			parts = append(parts, s[:idx])
		}
		s = s[idx+width:]
	}

	return parts
}
