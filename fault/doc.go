// Package fault defines the closed error taxonomy for the client runtime.
//
// Every failure surfaced by the runtime is a *fault.Error carrying a Kind
// (what failed), a Category (whose fault it is), and enough classification
// detail for a caller to distinguish "fix your input" from "try again later"
// without inspecting HTTP status codes.
package fault
