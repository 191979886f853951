// Package dispatch launches the downstream callback environment and hands
// paced samples to it.
//
// # Environments
//
// An Entrypoint is resolved from the persisted dispatcher handle and
// launched at most once per process. The resulting Environment receives
// every CallbackEvent for the rest of the process lifetime:
//
//	reg := dispatch.NewRegistry()
//	reg.Register(1001, dispatch.NewWebhookEntrypoint(dispatch.WebhookConfig{
//	    URL: "https://example.com/hooks/location",
//	}, http.DefaultClient, logger))
//
//	gate := dispatch.NewGate(reg, settings.DispatcherHandle, dispatch.WithLogger(logger))
//	if err := gate.EnsureDispatched(ctx); err != nil {
//	    // ErrHandleNotFound: retried on the next start or setCallback
//	}
//
// # Custom Environments
//
// Implement Entrypoint and Environment to deliver events elsewhere, or use
// NewFuncEntrypoint for an in-process callback.
package dispatch
