// Package expiry periodically re-evaluates GST credential sessions and
// announces when one approaches or passes its token expiry.
package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/domain/gst"
	"github.com/davidleathers/gstbooks/internal/service/credential"
)

type EventKind string

const (
	EventUsable       EventKind = "usable"
	EventNeedsRefresh EventKind = "needs_refresh"
	EventExpired      EventKind = "expired"
)

// Event is published when a credential's usability changes.
type Event struct {
	Kind           EventKind  `json:"kind"`
	CredentialID   uuid.UUID  `json:"credentialId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	GSTIN          string     `json:"gstin"`
	TokenExpiry    *time.Time `json:"tokenExpiry,omitempty"`
	At             time.Time  `json:"at"`
}

// Notifier fans events out to interested clients.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// Source lists the credentials worth watching.
type Source interface {
	WatchedCredentials(ctx context.Context) ([]*gst.Credential, error)
}

// StatusChecker is the slice of the credential service the watcher drives.
type StatusChecker interface {
	Status(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error)
	Usability(ctx context.Context, credentialID uuid.UUID) (*credential.StatusResponse, error)
}

// Gauge receives the number of usable credentials after each pass.
type Gauge interface {
	SetUsableCredentials(n int)
}

type Config struct {
	Interval time.Duration
	// RemoteCheck asks the backend for auth-status before evaluating
	// credentials that hold a token.
	RemoteCheck bool
	Clock       gst.Clock
}

// Summary describes one pass.
type Summary struct {
	Checked      int
	Usable       int
	NeedsRefresh int
	Expired      int
	Errors       int
}

type Watcher struct {
	source   Source
	checker  StatusChecker
	notifier Notifier
	gauge    Gauge
	config   Config
	logger   *zap.Logger

	mu   sync.Mutex
	last map[uuid.UUID]EventKind
}

func NewWatcher(source Source, checker StatusChecker, notifier Notifier, gauge Gauge, cfg Config, logger *zap.Logger) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = gst.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		source:   source,
		checker:  checker,
		notifier: notifier,
		gauge:    gauge,
		config:   cfg,
		logger:   logger.Named("expiry"),
		last:     make(map[uuid.UUID]EventKind),
	}
}

// Run checks once immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("expiry watcher started", zap.Duration("interval", w.config.Interval))
	for {
		if _, err := w.CheckOnce(ctx); err != nil {
			w.logger.Error("expiry check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.logger.Info("expiry watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// CheckOnce evaluates every watched credential and publishes changes.
func (w *Watcher) CheckOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	creds, err := w.source.WatchedCredentials(ctx)
	if err != nil {
		return summary, err
	}

	seen := make(map[uuid.UUID]struct{}, len(creds))
	for _, c := range creds {
		seen[c.ID] = struct{}{}
		summary.Checked++

		status, err := w.evaluate(ctx, c)
		if err != nil {
			summary.Errors++
			w.logger.Warn("could not evaluate credential",
				zap.String("credential_id", c.ID.String()),
				zap.Error(err))
			continue
		}

		kind, ok := classify(status.Usability)
		if !ok {
			continue
		}
		switch kind {
		case EventUsable:
			summary.Usable++
		case EventNeedsRefresh:
			summary.Usable++
			summary.NeedsRefresh++
		case EventExpired:
			summary.Expired++
		}

		if w.changed(c.ID, kind) && w.notifier != nil {
			w.notifier.Publish(ctx, Event{
				Kind:           kind,
				CredentialID:   c.ID,
				OrganizationID: status.Credential.OrganizationID,
				GSTIN:          status.Credential.GSTIN.String(),
				TokenExpiry:    status.Usability.TokenExpiry,
				At:             w.config.Clock.Now(),
			})
		}
	}

	w.forget(seen)
	if w.gauge != nil {
		w.gauge.SetUsableCredentials(summary.Usable)
	}
	return summary, nil
}

// evaluate prefers the backend's view and falls back to the stored record
// when the backend cannot be reached.
func (w *Watcher) evaluate(ctx context.Context, c *gst.Credential) (*credential.StatusResponse, error) {
	if w.config.RemoteCheck && c.Token != nil {
		status, err := w.checker.Status(ctx, c.ID)
		if err == nil {
			return status, nil
		}
		w.logger.Warn("auth-status check failed, using stored expiry",
			zap.String("credential_id", c.ID.String()),
			zap.Error(err))
	}
	return w.checker.Usability(ctx, c.ID)
}

// classify maps usability onto an event. Credentials that never held a
// token have nothing to announce.
func classify(u gst.Usability) (EventKind, bool) {
	switch {
	case u.NeedsRefresh:
		return EventNeedsRefresh, true
	case u.Usable:
		return EventUsable, true
	case u.TokenExpired:
		return EventExpired, true
	default:
		return "", false
	}
}

func (w *Watcher) changed(id uuid.UUID, kind EventKind) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last[id] == kind {
		return false
	}
	w.last[id] = kind
	return true
}

func (w *Watcher) forget(seen map[uuid.UUID]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.last {
		if _, ok := seen[id]; !ok {
			delete(w.last, id)
		}
	}
}
