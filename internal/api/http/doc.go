// Package http holds JSON handlers shared by the host server that are not
// tied to the worker table itself.
package http
