// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"
)

// Maximum number of response bytes read so the connection can be reused.
const maxDrainBytes = 4 << 10

var parsers fastjson.ParserPool

// StatusError is returned when the ingestion endpoint answers with a non 2xx status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Request is a single packet submission.
type Request struct {
	// URL is the store endpoint.
	URL string
	// Body is the encoded packet.
	Body []byte
	// Header is added to the outgoing request.
	Header http.Header
}

// Handle is a reusable request slot. It owns the buffer its request bodies are
// written into, so it must only be used by the caller that checked it out.
type Handle struct {
	pool        *Pool
	httpClient  *http.Client
	compression bool
	body        bytes.Buffer
	gz          *gzip.Writer
	inUse       atomic.Bool
}

func newHandle(pool *Pool, httpClient *http.Client, conf handleConfig) *Handle {
	h := &Handle{
		pool:        pool,
		httpClient:  httpClient,
		compression: conf.compression,
	}

	if h.compression {
		h.gz = gzip.NewWriter(&h.body)
	}

	return h
}

// Send posts the request and waits for the response. It returns the event id
// the endpoint acknowledged, which is empty if the response didn't carry one.
func (h *Handle) Send(ctx context.Context, r Request) (string, error) {
	if err := h.writeBody(r.Body); err != nil {
		return "", fmt.Errorf("failed to write body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(h.body.Bytes()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range r.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if h.compression {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	return acceptedID(data), nil
}

// acceptedID extracts the id from a {"id": "..."} acknowledgement.
func acceptedID(data []byte) string {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return ""
	}

	return string(v.GetStringBytes("id"))
}

func (h *Handle) writeBody(data []byte) error {
	h.body.Reset()

	if !h.compression {
		_, err := h.body.Write(data)
		return err
	}

	h.gz.Reset(&h.body)
	if _, err := h.gz.Write(data); err != nil {
		return err
	}

	return h.gz.Close()
}
