// Package registration issues host registration requests on behalf of the
// operator and keeps the pending input and last error for display.
package registration

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lagren/fleetwatch/status"
)

// Adder registers a host with the status service.
type Adder interface {
	Add(ctx context.Context, host string) error
}

// Controller holds the operator's pending host name and the error from
// the last add attempt. Concurrent AddHost calls are not serialized.
type Controller struct {
	client Adder

	mu        sync.Mutex
	pending   string
	lastError string
}

func New(client Adder) *Controller {
	return &Controller{client: client}
}

// SetPending replaces the pending host name.
func (c *Controller) SetPending(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = host
}

func (c *Controller) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pending
}

func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastError
}

// AddHost makes a single registration attempt for host. On success the
// pending input and last error are cleared. On failure the last error is
// set to the service's message and the pending input is kept.
func (c *Controller) AddHost(ctx context.Context, host string) error {
	err := c.client.Add(ctx, host)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.lastError = message(err)
		logrus.Warnf("Could not add %s: %s", host, err)

		return err
	}

	logrus.Infof("Added %s", host)
	c.pending = ""
	c.lastError = ""

	return nil
}

func message(err error) string {
	var se *status.ServiceError
	if errors.As(err, &se) {
		return se.Message
	}

	return err.Error()
}
