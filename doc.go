// Package tracebeacon records client-side telemetry (user actions, spans,
// component-ready timings, data requests and errors) as causally linked
// events and ships them to a beacon endpoint in batches.
//
// # Basic Usage
//
//	cfg := tracebeacon.DefaultConfig()
//	cfg.BeaconURL = "https://beacon.example.com/beacon"
//
//	client, err := tracebeacon.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.StartSession(map[string]any{"user": "u-42"})
//	client.RecordAction(tracebeacon.ActionOptions{Description: "open board"})
//
//	span := client.StartSpan(tracebeacon.SpanOptions{Description: "render"})
//	// ... work ...
//	span.End(tracebeacon.EndOptions{})
//
// # Trace Model
//
// Every action starts a new trace. Events recorded afterwards carry the
// trace id (tId) and a parent id (pId) so the beacon can rebuild the tree.
// Without an action there is no trace and span, component-ready and data
// request calls do nothing.
//
// # Sending
//
// POST batches carry between MinNumberOfEvents and MaxNumberOfEvents events
// as a JSON object of "<key>.<index>" strings. GET batches put the same
// keys in the query string and are cut by URL length. The first transport
// failure switches sending off for the rest of the process.
//
// # Error Hook
//
// With Config.InstallErrorHook the client becomes the process-wide error
// hook. ReportError forwards errors to it and Recover reports panics:
//
//	defer tracebeacon.Recover()
//
// # Dependency Injection
//
// For testing, inject custom implementations of external dependencies:
//
//	client, err := tracebeacon.New(cfg,
//	    tracebeacon.WithTransport(fakeTransport),
//	    tracebeacon.WithIDGenerator(ids),
//	    tracebeacon.WithLogger(logger),
//	)
package tracebeacon
