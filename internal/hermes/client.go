package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	clientName = "chattxt"
	// queueGroup spreads convert requests across running instances.
	queueGroup   = "chattxt-converters"
	drainTimeout = 10 * time.Second
)

// ConvertRequestHandler processes one decoded convert request.
type ConvertRequestHandler func(ctx context.Context, req ConvertRequest)

// Client publishes conversion events and consumes convert requests over NATS.
type Client struct {
	conn   *nats.Conn
	ctx    context.Context
	closed chan struct{}
	logger *slog.Logger
}

// NewClient connects to url. ctx is handed to convert request handlers; cancel it
// to abort requests still in flight.
func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{ctx: ctx, closed: make(chan struct{}), logger: logger}

	opts := []nats.Option{
		nats.Name(clientName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			close(c.closed)
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	c.conn = nc
	return c, nil
}

// Publish marshals data as JSON and publishes it on subject.
func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeConvertRequests delivers decoded requests from SubjectConvertRequest to h.
// Instances share one queue group, so each request is converted once.
func (c *Client) SubscribeConvertRequests(h ConvertRequestHandler) error {
	if _, err := c.conn.QueueSubscribe(SubjectConvertRequest, queueGroup, c.convertRequestHandler(h)); err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectConvertRequest, err)
	}
	c.logger.Info("subscribed", "subject", SubjectConvertRequest, "queue", queueGroup)
	return nil
}

func (c *Client) convertRequestHandler(h ConvertRequestHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		req, err := DecodeConvertRequest(msg.Data)
		if err != nil {
			c.logger.Warn("dropping convert request", "subject", msg.Subject, "error", err)
			return
		}
		h(c.ctx, req)
	}
}

// Announce publishes the service registration on SubjectRegistered.
func (c *Client) Announce(port int, version string) error {
	return c.Publish(SubjectRegistered, NewRegistration(port, version, time.Now()))
}

// Close drains subscriptions so requests already received finish converting, then
// closes the connection. It waits at most the drain timeout.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
		return
	}
	select {
	case <-c.closed:
	case <-time.After(drainTimeout + time.Second):
		c.conn.Close()
	}
}
