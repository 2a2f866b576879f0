// Package broadcast distributes frames from a single capture loop to many
// HTTP subscribers without blocking the producer.
//
// # Overview
//
// One Pump pulls frames from a FrameProvider at a fixed cadence and
// publishes them to a Bus. Each subscriber owns a single-slot mailbox: when
// a subscriber has not yet consumed the previous frame, the newer frame
// replaces it. The design principle is:
//
//	"Drop frames, never queue. Latency > Completeness."
//
// Publish never blocks, even if every subscriber is slow, so a stalled HTTP
// client can never back-pressure the capture loop or other subscribers.
//
// # Basic Usage
//
//	bus := broadcast.NewBus()
//	pump := broadcast.NewPump(source, bus, broadcast.PumpConfig{Interval: 33 * time.Millisecond})
//	pump.Start(ctx)
//	defer pump.Stop()
//
//	sub, _ := bus.Subscribe("viewer-1")
//	defer sub.Close()
//	for {
//	    frame, err := sub.Next(ctx)
//	    if err != nil {
//	        break // cancelled, or the pump terminated
//	    }
//	    // deliver frame...
//	}
//
// # Failure Semantics
//
// Transient capture failures are tolerated up to a configured threshold of
// consecutive misses. At the threshold the pump stops and closes the bus
// with the terminal cause; every blocked Next call wakes up with that
// cause. Subscribers racing their own context cancellation always observe
// the context error instead.
//
// # Thread Safety
//
// All Bus and Pump operations are safe for concurrent use. Publish is
// reserved for the single pump goroutine.
package broadcast
