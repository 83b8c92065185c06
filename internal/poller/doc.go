// Package poller drives the fixed-interval device polling loop.
//
// # Features
//
//   - Startup first contact: cloud bridges authenticate and every device
//     is read once before the steady loop begins
//   - Concurrent fan-out: one goroutine per schedulable device per cycle,
//     cloud reads bounded by a per-read timeout
//   - Strict per-device sequencing: a device whose previous read is still
//     in flight is skipped until that attempt returns, and the late
//     result is discarded
//   - Bounded credential recovery: an authentication rejection suspends
//     only that device and opens a three-attempt prompt-and-verify
//     session; exhaustion disables the device until process restart
//   - Fault isolation: a transient fault keeps the device scheduled with
//     no backoff, and one device's failure never blocks another's write
//   - Schema hot-reload between cycles, never mid-cycle
//   - Optional sinks receive a copy of each persisted record; sink
//     errors never affect polling or persistence
//
// # Usage
//
//	p, err := poller.New(poller.Options{
//	    Schemas: watcher,
//	    Devices: devices,
//	    Bridges: []bridges.Bridge{tapoBridge, modbusBridge},
//	    Store:   st,
//	    Credentials: provider,
//	})
//	if err != nil {
//	    return err
//	}
//	return p.Run(ctx)
//
// Shutdown is context cancellation: Run waits for in-flight reads,
// recovery sessions, and datastore writes to drain before returning.
package poller
