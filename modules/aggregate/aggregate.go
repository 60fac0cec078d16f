package aggregate

import (
	"context"
	"errors"

	"github.com/chebyrash/promise"
)

type Aggregate struct {
	ctx     context.Context
	cancel  context.CancelFunc
	plugins []Plugin
}

var _ Plugin = &Aggregate{}

func New(plugins []Plugin) *Aggregate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregate{
		ctx,
		cancel,
		plugins,
	}
}

// Runs init, waits for every plugin's start promise, then stops.
// Shutdown() unblocks the wait.
func (a *Aggregate) Run() error {
	if err := a.Init(); err != nil {
		return err
	}

	_, startErr := a.Start().Await(a.ctx)
	if errors.Is(startErr, context.Canceled) {
		startErr = nil
	}

	return errors.Join(startErr, a.Stop())
}

func (a *Aggregate) Shutdown() {
	a.cancel()
}

func (a *Aggregate) Context() context.Context {
	return a.ctx
}

// Init implements Plugin.
func (a *Aggregate) Init() error {
	for _, p := range a.plugins {
		if err := p.Init(); err != nil {
			return err
		}
	}
	return nil
}

// Start implements Plugin.
func (a *Aggregate) Start() *promise.Promise[any] {
	promises := make([]*promise.Promise[any], len(a.plugins))
	for i, p := range a.plugins {
		promises[i] = p.Start()
	}
	return promise.Then(
		promise.All(a.ctx, promises...),
		a.ctx,
		func([]any) (any, error) {
			return nil, nil
		},
	)
}

// Stop implements Plugin. Plugins stop in reverse init order.
func (a *Aggregate) Stop() error {
	var errs []error
	for i := len(a.plugins) - 1; i >= 0; i-- {
		if err := a.plugins[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	a.cancel()
	return errors.Join(errs...)
}
