// Package server exposes an HTTP inspection surface over a running
// thread engine: current state, message history, the plan, tracked file
// changes, and a server-sent event stream mirroring the engine's bus.
//
// A handful of POST endpoints drive the engine (prompt, cancel, mode
// changes, permission replies) so a detached client can operate a
// thread remotely.
//
// # Usage Example
//
//	cfg := server.DefaultConfig()
//	cfg.Addr = "127.0.0.1:7433"
//
//	srv := server.New(cfg, thread, changeTracker)
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// The SSE endpoint streams every engine event with heartbeat support;
// slow consumers drop events rather than stalling the engine.
package server
