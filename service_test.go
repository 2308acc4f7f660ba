package main

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagren/fleetwatch/probe"
)

// fakeProbe marks hosts alive unless they are listed as down.
type fakeProbe struct {
	mu   sync.Mutex
	down map[string]bool
}

func (p *fakeProbe) setDown(host string, down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.down[host] = down
}

func (p *fakeProbe) check(_ context.Context, host string) (probe.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.down[host] {
		return probe.Result{}, errors.New("connection refused")
	}

	return probe.Result{Latency: 3 * time.Millisecond, BytesRead: 4096}, nil
}

func newTestService(t *testing.T) (*fleetService, *fakeProbe) {
	db, err := openDB(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)

	fp := &fakeProbe{down: make(map[string]bool)}
	svc := newFleetService(db, probe.Options{Timeout: time.Second, DefaultPort: 443})
	svc.check = fp.check

	return svc, fp
}

func TestFleetServiceAdd(t *testing.T) {
	ctx := context.Background()
	svc, fp := newTestService(t)
	fp.setDown("down.example", true)

	require.NoError(t, svc.Add(ctx, "up.example"))
	require.NoError(t, svc.Add(ctx, " down.example "))

	assert.ErrorIs(t, svc.Add(ctx, "up.example"), ErrDuplicateHost)
	assert.ErrorIs(t, svc.Add(ctx, "  "), ErrEmptyHost)

	records, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, true, records["up.example"]["Alive"])
	assert.Equal(t, int64(4096), records["up.example"]["ReadBytes"])
	assert.Equal(t, false, records["down.example"]["Alive"])
	assert.Equal(t, "connection refused", records["down.example"]["ErrorMessage"])
}

func TestFleetServiceRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	require.NoError(t, svc.Add(ctx, "a"))
	require.NoError(t, svc.Remove(ctx, "a"))
	assert.ErrorIs(t, svc.Remove(ctx, "a"), ErrUnknownHost)

	records, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFleetServiceRun(t *testing.T) {
	ctx := context.Background()
	svc, fp := newTestService(t)

	require.NoError(t, svc.Add(ctx, "a"))
	require.NoError(t, svc.Add(ctx, "b"))

	fp.setDown("a", true)
	require.NoError(t, svc.Run(ctx))

	records, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, records["a"]["Alive"])
	assert.Equal(t, true, records["b"]["Alive"])
	assert.Equal(t, int64(2), records["a"]["Checks"])
	assert.Equal(t, int64(1), records["a"]["Failures"])

	fp.setDown("a", false)
	require.NoError(t, svc.Run(ctx))

	records, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, records["a"]["Alive"])
	assert.Equal(t, "reachable", records["a"]["Status"])
}

func TestFleetServiceUpdateUnknown(t *testing.T) {
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.Update(context.Background(), "nope"), ErrUnknownHost)
}
