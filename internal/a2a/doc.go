// Package a2a implements the HTTP side of the agent-to-agent task protocol
// spoken between the supervisor and its worker agents.
//
// # Endpoints
//
// Every agent is addressed by a base URL and exposes:
//
//	GET  <base>/.well-known/agent.json   agent card (discovery)
//	POST <base>/task                     unary task submission
//	POST <base>/task/stream              task submission with SSE updates
//
// The streaming endpoint writes one JSON object per "data:" line and ends
// with the sentinel line "data: [DONE]".
//
// # Failure semantics
//
// Client never returns transport errors from task submission. A failed
// request becomes a TaskResponse with StateFailed, and a failed stream
// becomes a single failed StreamEvent, so callers can always produce a
// terminal state. Discovery does return errors; the caller decides what a
// missing agent means.
package a2a
