// Package agent tracks the remote agents the supervisor can delegate to.
//
// # Connection
//
// A Connection is one agent reached over HTTP. It starts disconnected and
// becomes connected after a successful discovery handshake:
//
//	disconnected -> connecting -> connected
//	                    |
//	                    +-> disconnected (permanent for this instance)
//
// Task calls on a Connection that is not connected fail with a failed
// response or event rather than an error. Reconnecting means creating a new
// Connection.
//
// # Registry
//
// The Registry maps unique names to connections:
//
//	reg := agent.NewRegistry(agent.RegistryParams{URLs: cfg.Agents.URLs, Logger: logger})
//	reg.EnsureInitialized(ctx)
//
// Key operations:
//
//   - EnsureInitialized(ctx): connect configured URLs once; concurrent callers wait
//   - Add(ctx, url, name): connect and register a dynamic agent
//   - Remove(name): drop a dynamic agent
//   - Reconnect(ctx, name): swap in a fresh connection to the stored URL
//   - List(), Info(name), Connected(), Get(name)
//
// # Naming
//
// An agent is registered under the requested name, or the name on its card.
// When that name is taken the registry appends _1, _2, ... until it finds a
// free one. URLs are unique across the registry.
//
// # Thread Safety
//
// Registry and Connection are safe for concurrent use. Network handshakes
// happen outside the registry lock.
package agent
