// Package host adapts a tcell terminal to the loop's collaborator surfaces:
// an event Source producing (name, args...) occurrences and a RenderGate
// with clear/present primitives. The dispatch core never sees tcell types.
package host
