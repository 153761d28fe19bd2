// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package raven

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dpeckett/raven/dsn"
	"github.com/dpeckett/raven/packet"
	"github.com/dpeckett/raven/transport"
	"golang.org/x/sync/errgroup"
)

const (
	// The environment variable name to disable event reporting.
	disableEnvName = "RAVEN_DISABLE"
	// The default upper bound on the duration of a single send.
	defaultSendTimeout = 30 * time.Second
)

// Configuration is the client configuration.
type Configuration struct {
	// DSN is where events are sent and the credentials used to send them.
	DSN dsn.DSN
	// Logger is the logger name attached to every event (default "root").
	Logger string
	// Platform is the platform attached to every event (default "csharp").
	Platform string
	// PoolCapacity is the maximum number of in-flight sends (default 16).
	PoolCapacity int
	// SendTimeout bounds a single send (default 30s).
	SendTimeout time.Duration
	// HTTPClient is the optional HTTP client used to send events.
	HTTPClient *http.Client
	// Compression gzips request bodies.
	Compression bool
	// Tags are added to every event that doesn't already set them.
	Tags map[string]string
	// Scrubber is an optional scrubber applied to event text before sending.
	Scrubber Scrubber
	// OnDropped is an optional callback invoked for every undelivered event.
	// It may be called concurrently.
	OnDropped func(reason DropReason)
}

// Event is a log message captured from the host.
type Event struct {
	// Message is the log message.
	Message string
	// StackTrace is the raw stack trace printed by the host runtime.
	StackTrace string
	// Severity is the kind of log message.
	Severity Severity
}

// Capturer is implemented by anything that accepts host log messages.
type Capturer interface {
	CaptureEvent(message, rawTrace string, severity Severity)
}

// Client sends events to the ingestion endpoint. Sends are fire and forget,
// when every transport handle is busy new events are dropped.
type Client struct {
	logger       *slog.Logger
	dsn          dsn.DSN
	loggerName   string
	platform     string
	tags         map[string]string
	scrubber     Scrubber
	onDropped    func(reason DropReason)
	sendTimeout  time.Duration
	pool         *transport.Pool
	sendsCtx     context.Context
	cancelSends  context.CancelFunc
	sends        *errgroup.Group
	// Held for reading while starting a send, so no send starts once Wait has.
	sendsMu      sync.RWMutex
	shuttingDown atomic.Bool
	sent         atomic.Int64
	droppedMu    sync.Mutex
	dropped      map[DropReason]int64
}

var _ Capturer = (*Client)(nil)

// NewClient creates a new client.
func NewClient(ctx context.Context, logger *slog.Logger, conf Configuration) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	loggerName := conf.Logger
	if loggerName == "" {
		loggerName = packet.DefaultLogger
	}

	sendTimeout := conf.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	pool := transport.NewPool(conf.PoolCapacity, conf.HTTPClient, transport.WithCompression(conf.Compression))

	// The pool bounds the number of in-flight sends, the group only tracks them.
	ctx, cancelSends := context.WithCancel(ctx)
	sends, sendsCtx := errgroup.WithContext(ctx)

	return &Client{
		logger:      logger,
		dsn:         conf.DSN,
		loggerName:  loggerName,
		platform:    conf.Platform,
		tags:        conf.Tags,
		scrubber:    conf.Scrubber,
		onDropped:   conf.OnDropped,
		sendTimeout: sendTimeout,
		pool:        pool,
		sendsCtx:    sendsCtx,
		cancelSends: cancelSends,
		sends:       sends,
		dropped:     make(map[DropReason]int64),
	}
}

// Close aborts any in-flight sends.
func (c *Client) Close() error {
	c.stopAccepting()
	c.cancelSends()

	if err := c.sends.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// Shutdown stops accepting events and waits for in-flight sends to complete.
// If ctx ends first, in-flight sends are aborted.
func (c *Client) Shutdown(ctx context.Context) error {
	c.stopAccepting()

	sendsDone := make(chan error, 1)
	go func() {
		defer close(sendsDone)

		sendsDone <- c.sends.Wait()
	}()

	select {
	case <-ctx.Done():
		// Abort any in-flight sends.
		return c.Close()
	case err := <-sendsDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		c.cancelSends()
		return nil
	}
}

// stopAccepting waits for sends being started to be registered with the
// group, then refuses new ones.
func (c *Client) stopAccepting() {
	c.sendsMu.Lock()
	defer c.sendsMu.Unlock()

	c.shuttingDown.Store(true)
}

// Stats returns a snapshot of the delivery counters.
func (c *Client) Stats() Stats {
	c.droppedMu.Lock()
	defer c.droppedMu.Unlock()

	dropped := make(map[DropReason]int64, len(c.dropped))
	for reason, n := range c.dropped {
		dropped[reason] = n
	}

	return Stats{
		Sent:    c.sent.Load(),
		Dropped: dropped,
	}
}

// CaptureEvent builds an event from a host log message and sends it.
func (c *Client) CaptureEvent(message, rawTrace string, severity Severity) {
	c.Capture(Event{
		Message:    message,
		StackTrace: rawTrace,
		Severity:   severity,
	})
}

// Capture builds a packet from the event and sends it.
func (c *Client) Capture(ev Event) {
	defer c.recoverDrop()

	c.Send(c.NewPacket(ev))
}

// NewPacket builds a packet from a host log message. Stack trace lines that
// can't be parsed are kept as degraded frames.
func (c *Client) NewPacket(ev Event) *packet.Packet {
	p := packet.New(ev.Message)
	p.Level = LevelFor(ev.Severity)
	p.Exception = &packet.Exception{
		Type:  ev.Severity.String(),
		Value: ev.Message,
	}

	trace, err := packet.ParseStackTrace(ev.StackTrace)
	if err != nil {
		c.logger.Debug("Failed to parse stack trace frames", slog.Any("error", err))
	}
	p.StackTrace = trace

	return p
}

// Send encodes and sends a packet. It never blocks, the packet is dropped if
// the client is saturated or shutting down. The client takes ownership of the
// packet, it must not be modified afterwards.
func (c *Client) Send(p *packet.Packet) {
	defer c.recoverDrop()

	if p == nil {
		return
	}

	if os.Getenv(disableEnvName) != "" {
		c.logger.Debug("Event reporting is disabled, dropping event")
		return
	}

	if c.shuttingDown.Load() {
		c.logger.Debug("Shutting down, dropping event")
		c.drop(ReasonShutdown)
		return
	}

	c.prepare(p)

	body, err := packet.Encode(p)
	if err != nil {
		c.logger.Warn("Failed to encode event, dropping event", slog.Any("error", err))
		c.drop(ReasonInternalError)
		return
	}

	header := make(http.Header, 3)
	header.Set("Content-Type", "application/json")
	header.Set("User-Agent", transport.ClientName)
	header.Set(transport.AuthHeaderName, transport.AuthHeader(c.dsn.PublicKey, c.dsn.PrivateKey, time.Now()))

	h, ok := c.pool.TryAcquire()
	if !ok {
		c.logger.Warn("Too many in-flight event sends, dropping event")
		c.drop(ReasonQueueOverflow)
		return
	}

	eventID := p.EventID()
	req := transport.Request{
		URL:    c.dsn.StoreURI,
		Body:   body,
		Header: header,
	}

	if !c.startSend(h, eventID, req) {
		c.pool.Release(h)
		c.logger.Debug("Shutting down, dropping event")
		c.drop(ReasonShutdown)
	}
}

// startSend dispatches the request in the background unless the client has
// begun shutting down.
func (c *Client) startSend(h *transport.Handle, eventID string, req transport.Request) bool {
	c.sendsMu.RLock()
	defer c.sendsMu.RUnlock()

	if c.shuttingDown.Load() {
		return false
	}

	c.sends.Go(func() error {
		defer c.recoverDrop()

		acceptedID, err := c.dispatch(h, req)
		c.record(eventID, acceptedID, err)
		return nil
	})

	return true
}

// dispatch sends the request on a checked out handle and always returns the
// handle to the pool.
func (c *Client) dispatch(h *transport.Handle, req transport.Request) (string, error) {
	defer c.pool.Release(h)

	// Absolute maximum limit.
	ctx, cancel := context.WithTimeout(c.sendsCtx, c.sendTimeout)
	defer cancel()

	return h.Send(ctx, req)
}

func (c *Client) record(eventID, acceptedID string, err error) {
	if err == nil {
		c.sent.Add(1)
		c.logger.Debug("Sent event",
			slog.String("event_id", eventID), slog.String("accepted_id", acceptedID))
		return
	}

	// Don't spam the logs when the user is offline.
	c.logger.Debug("Failed to send event",
		slog.String("event_id", eventID), slog.Any("error", err))

	var statusErr *transport.StatusError
	if errors.As(err, &statusErr) {
		c.drop(ReasonSendError)
	} else {
		c.drop(ReasonNetworkError)
	}
}

// prepare stamps the client wide fields onto the packet.
func (c *Client) prepare(p *packet.Packet) {
	p.Logger = c.loggerName

	if c.dsn.ProjectID != "" {
		p.Project = c.dsn.ProjectID
	}

	if c.platform != "" {
		p.Platform = c.platform
	}

	for k, v := range c.tags {
		if p.Tags == nil {
			p.Tags = make(map[string]string, len(c.tags))
		}
		if _, ok := p.Tags[k]; !ok {
			p.Tags[k] = v
		}
	}

	if c.scrubber != nil {
		scrubPacket(c.scrubber, p)
	}
}

func (c *Client) drop(reason DropReason) {
	c.droppedMu.Lock()
	c.dropped[reason]++
	c.droppedMu.Unlock()

	if c.onDropped != nil {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Recovered from drop callback", slog.Any("panic", r))
			}
		}()

		c.onDropped(reason)
	}
}

// recoverDrop keeps a failure to build or send an event from reaching the host.
func (c *Client) recoverDrop() {
	if r := recover(); r != nil {
		c.logger.Error("Recovered while sending event", slog.Any("panic", r))
		c.drop(ReasonInternalError)
	}
}
