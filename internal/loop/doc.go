// Package loop drives the per-frame state machine around the event
// dispatcher: drain host events, special-case "quit", fire the update
// channels with the frame delta-time, fire the draw channels when a frame is
// ready, then hand the frame remainder to the rate limiter.
//
// The loop is thin glue over host collaborators. It owns no rendering, no
// game state and no timing policy beyond invoking the limiter; hosts supply
// an event Source, an optional RenderGate and a Clock.
package loop
