package test_utils

import (
	"context"

	"github.com/thebeyondr/sekiva/modules/aggregate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestingT interface {
	require.TestingT
	Cleanup(func())
}

// Inits the plugin, then starts it. Stop runs when the test finishes.
//
// A plugin whose Start only settles on Stop (servers, producers) needs
// blockUntilComplete unset so the test is not stuck on it.
func RunPlugin(t TestingT, plugin aggregate.Plugin, blockUntilComplete ...bool) {
	require.NoError(t, plugin.Init())
	t.Cleanup(func() {
		require.NoError(t, plugin.Stop())
	})
	run := func() {
		_, err := plugin.Start().Await(context.Background())
		// may run off the test goroutine, where FailNow is not allowed
		assert.NoError(t, err)
	}
	if len(blockUntilComplete) >= 1 && blockUntilComplete[0] {
		run()
	} else {
		go run()
	}
}

// Runs plugins the way the node binary does: one aggregate, init in order,
// stop in reverse once the test is done.
func RunPlugins(t TestingT, plugins ...aggregate.Plugin) *aggregate.Aggregate {
	agg := aggregate.New(plugins)
	RunPlugin(t, agg, true)
	return agg
}
