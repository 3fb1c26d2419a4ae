// Package script embeds a sandboxed Lua runtime and exposes the modrun
// registration surface to scripts. Lua-registered callbacks are ordinary
// registry entries: they carry priorities and error handlers and sort
// against Go-registered callbacks on the same channels.
//
// gopher-lua states are not goroutine-safe. Scripts are loaded before the
// frame loop starts and their callbacks run inside the loop's goroutine, so
// no cross-goroutine access occurs during normal operation.
package script
