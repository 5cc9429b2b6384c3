// Package gateway serves the coven-supervisor over HTTP.
//
// # Overview
//
// The gateway owns the supervisor's components: the agent registry, the
// routing policy, the delegation engine, the team service and the session
// store. It exposes them through a single echo server.
//
// # HTTP API
//
// The supervisor is itself an agent and speaks the same protocol as its
// team:
//
//   - GET /.well-known/agent.json - Supervisor agent card (streaming)
//   - POST /task - Run a task, returning {"result": {...}}
//   - POST /task/stream - Run a task as server-sent "data:" lines ending in [DONE]
//
// Team management:
//
//   - POST /team/add - Connect an agent by URL
//   - DELETE /team/remove - Remove a dynamically added agent
//   - GET /team/list - List every member
//   - GET /team/info/:name - One member with its agent card
//   - POST /team/reconnect - Refresh an agent's connection
//   - GET /team/status - Totals and health
//   - POST /team/batch/add - Up to 10 adds
//   - POST /team/batch/remove - Up to 10 removes
//
// Session history and health:
//
//   - GET /sessions/:id - Session metadata and messages
//   - DELETE /sessions/:id - Forget a session
//   - GET /health - Liveness check
//   - GET /health/ready - Readiness check (at least one agent connected)
//
// A task id seen again within the dedupe window is rejected with 409.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run connects configured agents in the background, and on shutdown closes
// every agent connection and the store.
package gateway
