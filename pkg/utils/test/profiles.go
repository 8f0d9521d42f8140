// Package testutils holds fakes shared by the banter test suites.
package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/banter/pkg/persona"
	"github.com/papercomputeco/banter/pkg/storage"
	"github.com/papercomputeco/banter/pkg/storage/inmemory"
)

// ErrInjected is the failure returned by fakes when told to fail.
var ErrInjected = errors.New("injected failure")

// CountingDriver is a storage.Driver that records every call and can be told
// to fail individual operations. It stores profiles in an inmemory.Driver.
type CountingDriver struct {
	Inner storage.Driver

	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]error
}

func NewCountingDriver() *CountingDriver {
	return &CountingDriver{
		Inner:  inmemory.NewDriver(),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

// Fail makes op ("FindByExternalID", "Create", "UpdatePersona", "Ping")
// return err. A nil err clears the failure.
func (d *CountingDriver) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failOn, op)
		return
	}
	d.failOn[op] = err
}

// Calls returns how often op was called.
func (d *CountingDriver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// TotalCalls returns the number of data calls (Ping and Close excluded).
func (d *CountingDriver) TotalCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls["FindByExternalID"] + d.calls["Create"] + d.calls["UpdatePersona"]
}

// ResetCalls zeroes the call counters.
func (d *CountingDriver) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = make(map[string]int)
}

func (d *CountingDriver) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[op]++
	return d.failOn[op]
}

func (d *CountingDriver) FindByExternalID(ctx context.Context, externalID string) (*storage.Profile, error) {
	if err := d.record("FindByExternalID"); err != nil {
		return nil, err
	}
	return d.Inner.FindByExternalID(ctx, externalID)
}

func (d *CountingDriver) Create(ctx context.Context, externalID, displayName string) (*storage.Profile, bool, error) {
	if err := d.record("Create"); err != nil {
		return nil, false, err
	}
	return d.Inner.Create(ctx, externalID, displayName)
}

func (d *CountingDriver) UpdatePersona(ctx context.Context, externalID string, p persona.Persona) error {
	if err := d.record("UpdatePersona"); err != nil {
		return err
	}
	return d.Inner.UpdatePersona(ctx, externalID, p)
}

func (d *CountingDriver) Ping(ctx context.Context) error {
	if err := d.record("Ping"); err != nil {
		return err
	}
	return d.Inner.Ping(ctx)
}

func (d *CountingDriver) Close() error {
	d.record("Close")
	return d.Inner.Close()
}
