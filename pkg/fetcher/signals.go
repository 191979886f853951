package fetcher

import (
	"context"

	"github.com/bft-labs/bgloc/pkg/log"
)

// OnBootCompleted resumes sampling if it was active before the process
// started.
func (c *Controller) OnBootCompleted(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	active, err := c.settings.IsActive(ctx)
	if err != nil {
		c.logger.Error("reading activation failed", log.Err(err))
		return err
	}
	if !active {
		c.logger.Debug("boot completed, sampling not active")
		return nil
	}
	c.logger.Info("boot completed, resuming sampling")
	return c.startLocked(ctx, "boot completed")
}

// OnForeground records that the host is visible. With foreground release
// enabled the background lease is given back.
func (c *Controller) OnForeground(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.background = false
	if c.releaseInForeground {
		c.releaseLeaseLocked()
	}
	return nil
}

// OnBackground records that the host went to the background and takes the
// lease if the running session wants one.
func (c *Controller) OnBackground(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.background = true
	if c.session != nil && c.shouldHoldLeaseLocked(c.session.cfg) {
		c.acquireLeaseLocked(ctx)
	}
	return nil
}

type permissionSetter interface {
	Set(granted bool)
}

// OnPermissionChanged reacts to the platform granting or revoking
// location access. Revocation ends the session but keeps the activation
// flag, so a later grant resumes sampling.
func (c *Controller) OnPermissionChanged(ctx context.Context, granted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if s, ok := c.permission.(permissionSetter); ok {
		s.Set(granted)
	}

	if !granted {
		if c.session != nil {
			c.logger.Warn("location permission revoked, sampling suspended")
			c.endSessionLocked("location permission revoked")
		}
		return nil
	}

	if c.session != nil {
		return nil
	}
	active, err := c.settings.IsActive(ctx)
	if err != nil {
		c.logger.Error("reading activation failed", log.Err(err))
		return err
	}
	if !active {
		return nil
	}
	c.logger.Info("location permission granted, resuming sampling")
	return c.startLocked(ctx, "location permission granted")
}

// OnConfigChanged re-reads the stored configuration and restarts a
// running session if it changed underneath it.
func (c *Controller) OnConfigChanged(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if c.session == nil {
		return nil
	}
	cfg, err := c.settings.SamplingConfig(ctx)
	if err != nil {
		c.logger.Error("reading sampling config failed", log.Err(err))
		return err
	}
	if cfg == c.session.cfg {
		return nil
	}

	c.logger.Info("stored configuration changed, restarting sampling")
	c.endSessionLocked("stored configuration changed")
	return c.startLocked(ctx, "stored configuration changed")
}
