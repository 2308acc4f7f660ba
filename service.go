package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lagren/fleetwatch/persistence"
	"github.com/lagren/fleetwatch/probe"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEmptyHost     = errors.New("missing host")
	ErrDuplicateHost = errors.New("duplicate host")
	ErrUnknownHost   = errors.New("unknown host")
)

type checkFunc func(ctx context.Context, host string) (probe.Result, error)

// fleetService is the reference status service: a set of registered hosts
// in sqlite and a loop probing them.
type fleetService struct {
	db    *gorm.DB
	check checkFunc
}

func newFleetService(db *gorm.DB, opts probe.Options) *fleetService {
	return &fleetService{
		db: db,
		check: func(ctx context.Context, host string) (probe.Result, error) {
			return probe.Check(ctx, host, opts)
		},
	}
}

func (s *fleetService) Add(ctx context.Context, hostname string) error {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return ErrEmptyHost
	}

	var existing persistence.Host

	res := s.db.WithContext(ctx).Limit(1).Find(&existing, "hostname = ?", hostname)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected > 0 {
		return ErrDuplicateHost
	}

	h := &persistence.Host{
		Hostname: hostname,
		Status:   "pending",
	}

	if err := s.db.WithContext(ctx).Create(h).Error; err != nil {
		return err
	}

	if err := s.Update(ctx, hostname); err != nil {
		logrus.Warnf("Could not update %s: %s", hostname, err)
	}

	return nil
}

func (s *fleetService) Remove(ctx context.Context, hostname string) error {
	res := s.db.WithContext(ctx).Delete(&persistence.Host{}, "hostname = ?", hostname)
	if res.Error != nil {
		logrus.Errorf("Could not delete host entry: %s", res.Error)

		return fmt.Errorf("could not remove: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrUnknownHost
	}

	return nil
}

// Update probes a single registered host and stores the outcome.
func (s *fleetService) Update(ctx context.Context, hostname string) error {
	var host persistence.Host

	res := s.db.WithContext(ctx).Limit(1).Find(&host, "hostname = ?", hostname)
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrUnknownHost
	}

	return s.probe(ctx, &host)
}

// Run probes every registered host once.
func (s *fleetService) Run(ctx context.Context) error {
	logrus.Debugf("Initiate probe run...")
	defer logrus.Debugf("Probe run finished")

	var hosts []persistence.Host

	if err := s.db.WithContext(ctx).Find(&hosts).Error; err != nil {
		return err
	}

	for i := range hosts {
		if err := s.probe(ctx, &hosts[i]); err != nil {
			return err
		}
	}

	return nil
}

// Loop runs a probe pass every interval until ctx is cancelled.
func (s *fleetService) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("Could not run probe run: %s", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Status returns the records served on /status keyed by hostname.
func (s *fleetService) Status(ctx context.Context) (map[string]map[string]any, error) {
	var hosts []persistence.Host

	if err := s.db.WithContext(ctx).Find(&hosts).Error; err != nil {
		return nil, err
	}

	out := make(map[string]map[string]any, len(hosts))
	for _, h := range hosts {
		out[h.Hostname] = h.Record()
	}

	return out, nil
}

func (s *fleetService) probe(ctx context.Context, host *persistence.Host) error {
	res, err := s.check(ctx, host.Hostname)

	now := time.Now()

	host.Checks++
	host.LastChecked = now
	host.Latency = res.Latency
	host.BytesRead = res.BytesRead
	host.Issuer = res.Issuer
	host.Expires = res.Expires

	if err != nil {
		logrus.Debugf("Host %s is unreachable: %s", host.Hostname, err)
		host.Alive = false
		host.Status = "unreachable"
		host.ErrorMessage = err.Error()
		host.Failures++
	} else {
		host.Alive = true
		host.Status = "reachable"
		host.ErrorMessage = ""
		host.LastAlive = now
	}

	// Only touch rows that still exist, so a host removed mid-run stays gone.
	return s.db.WithContext(ctx).Model(&persistence.Host{}).
		Where("hostname = ?", host.Hostname).
		Updates(map[string]interface{}{
			"alive":         host.Alive,
			"status":        host.Status,
			"error_message": host.ErrorMessage,
			"last_checked":  host.LastChecked,
			"last_alive":    host.LastAlive,
			"latency":       host.Latency,
			"bytes_read":    host.BytesRead,
			"issuer":        host.Issuer,
			"expires":       host.Expires,
			"checks":        host.Checks,
			"failures":      host.Failures,
		}).Error
}
