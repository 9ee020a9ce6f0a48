// Package shutdown coordinates graceful termination of tokbroker processes.
//
// A Handler collects named hooks while components start and runs them in
// reverse order once SIGINT, SIGTERM or context cancellation arrives, all
// within a single timeout:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("store", func(context.Context) error { return store.Close() })
//	err := h.Wait(ctx)
package shutdown
