// Package supervisor implements the delegation engine.
//
// For each incoming task the engine:
//
//  1. makes sure the agent registry has been initialized
//  2. extracts the request text and records it in session history
//  3. emits running "Analyzing your request..."
//  4. loads recent session history
//  5. fails with "No suitable agent available to handle this request." when
//     no agent is connected, without consulting the routing policy
//  6. asks the routing policy for an agent name
//  7. emits running "Delegating to <name> agent..."
//  8. forwards a fresh task to that agent and relays its result
//
// Policy answers are matched case-insensitively. An unknown name falls back
// to the configured default agent and then to the first connected agent. An
// explicit "none" ends the task as failed with no fallback. A policy error
// falls back to the first connected agent.
//
// Whatever happens, including panics, the event channel ends with exactly
// one event that has Final set.
package supervisor
