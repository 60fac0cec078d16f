package aggregate

import "github.com/chebyrash/promise"

type Plugin interface {
	// Runs initialization in order of how they are passed in to `Aggregate`
	Init() error
	// Runs startup and should be non blocking. The promise settles when the plugin is done.
	Start() *promise.Promise[any]
	// Runs cleanup once the `Aggregate` is finished, in reverse order
	Stop() error
}

// Resolves immediately; for plugins that have nothing to run
func Resolved() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		resolve(nil)
	})
}
