/*
Package observability turns engine lifecycle hooks into logs and Prometheus metrics.

The traversal engine emits domain.LifecycleHooks callbacks for phase entry and exit, applied
turns and session ends. This package provides ready-made hook sets for both concerns and a way
to chain them:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Chain(metrics.Hooks(), observability.LoggingHooks(logger))
	engine := runtime.NewEngine(runtime.WithLifecycleHooks(hooks))
*/
package observability
