package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"offer-clv/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle of the dashboard data.
type Status string

const (
	StatusEmpty   Status = "empty"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// ErrNotLoaded is returned by Result while no successful load is held.
var ErrNotLoaded = errors.New("dashboard data not loaded")

// RefreshFunc loads both datasets and aggregates them.
type RefreshFunc func(ctx context.Context) (models.AggregateResult, error)

// Snapshot is a consistent copy of the dashboard state.
type Snapshot struct {
	Status   Status                  `json:"status"`
	AsOf     string                  `json:"asOf"`
	Result   *models.AggregateResult `json:"result,omitempty"`
	Error    string                  `json:"error,omitempty"`
	LoadedAt time.Time               `json:"loadedAt"`
}

// Dashboard owns the loaded metrics. The aggregator stays stateless; this is
// the only place where results live between requests.
type Dashboard struct {
	asOf    string
	refresh RefreshFunc
	logger  *zap.Logger
	now     func() time.Time

	group singleflight.Group

	mu       sync.RWMutex
	status   Status
	result   *models.AggregateResult
	lastErr  error
	loadedAt time.Time
}

func New(asOf string, refresh RefreshFunc, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		asOf:    asOf,
		refresh: refresh,
		logger:  logger,
		now:     time.Now,
		status:  StatusEmpty,
	}
}

// Refresh reloads the data. Calls made while a refresh is running wait for
// and share that refresh's outcome. A refresh canceled through ctx leaves the
// previous state in place.
func (d *Dashboard) Refresh(ctx context.Context) error {
	_, err, shared := d.group.Do("refresh", func() (interface{}, error) {
		return nil, d.doRefresh(ctx)
	})
	if shared {
		d.logger.Debug("refresh shared with in-flight load")
	}
	return err
}

func (d *Dashboard) doRefresh(ctx context.Context) error {
	d.mu.Lock()
	prev := d.status
	d.status = StatusLoading
	d.mu.Unlock()

	start := d.now()
	res, err := d.refresh(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if errors.Is(err, context.Canceled) {
		// abandoned by the caller: the data did not change
		d.status = prev
		d.logger.Warn("dashboard load canceled", zap.String("kept", string(prev)))
		return err
	}
	if err != nil {
		d.status = StatusFailed
		d.result = nil
		d.lastErr = err
		d.logger.Error("dashboard load failed", zap.Error(err))
		return err
	}
	d.status = StatusLoaded
	d.result = &res
	d.lastErr = nil
	d.loadedAt = d.now()
	d.logger.Info("dashboard loaded",
		zap.Int("total", res.Summary.Total),
		zap.Duration("took", d.loadedAt.Sub(start)),
	)
	return nil
}

// Snapshot returns the current state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{Status: d.status, AsOf: d.asOf, LoadedAt: d.loadedAt}
	if d.result != nil {
		res := *d.result
		res.UnmatchedOffers = append([]string(nil), d.result.UnmatchedOffers...)
		s.Result = &res
	}
	if d.lastErr != nil {
		s.Error = d.lastErr.Error()
	}
	return s
}

// Result returns the last successful result (kept while a reload runs), the
// load error when the last load failed, or ErrNotLoaded.
func (d *Dashboard) Result() (models.AggregateResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case d.result != nil:
		return *d.result, nil
	case d.lastErr != nil:
		return models.AggregateResult{}, d.lastErr
	default:
		return models.AggregateResult{}, ErrNotLoaded
	}
}
