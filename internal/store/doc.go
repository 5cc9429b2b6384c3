// Package store persists supervisor session history.
//
// A session is identified by the session id a caller puts on its tasks. The
// delegation engine reads recent turns from it to give routing policies
// context, and appends the user's text plus a note naming the agent that
// handled each request.
//
// SQLiteStore is the production implementation (modernc.org/sqlite, no cgo).
// MockStore keeps everything in memory and can be told to fail reads or
// writes, which tests use to check that history problems never break a task.
//
// Registry membership is not stored here; agents are
// reconnected from configuration on every start.
package store
