// Package app bootstraps and runs hotpatch.
//
// An Application is created in two phases:
//
//  1. Bootstrap: load config.yaml (or defaults), initialise logging.
//  2. Execution: wire the services for the selected mode and run them until
//     the context is cancelled.
//
// # Modes
//
// Watch mode connects a transport.Client to an update socket, subscribes the
// configured resources and prints every delivered update and every change of
// the issue list through a formatting.Formatter.
//
// Serve mode runs a devserver.Server behind an HTTP listener and, when a spool
// directory is configured, publishes the update files dropped into it.
//
// Both modes run their goroutines in an errgroup: the first failure cancels
// the others, and SIGINT or SIGTERM shut everything down gracefully.
//
// Example:
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.RunServe(ctx)
package app
