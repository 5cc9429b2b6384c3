// Package client calls a running coven-supervisor over HTTP.
//
// It covers the team management routes, session history and tasks, and is
// what coven-supervisorctl is built on. Management calls decode the
// gateway's JSON bodies directly into the agent and team result types;
// non-2xx responses become *APIError carrying the server's message.
//
// Tasks are sent through the a2a client, so the supervisor is addressed
// exactly like any other agent:
//
//	c := client.New(client.Params{BaseURL: "http://localhost:8000"})
//	defer c.Close()
//	for ev := range c.StreamTask(ctx, "session-1", "what's the weather?") {
//	    // ...
//	}
package client
