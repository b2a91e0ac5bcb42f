// Package app provides the application service layer.
//
// Validates reaction requests, calls the configured ReactionStore, shapes the
// per-item view and writes the optional activity log. Sits between the HTTP
// handlers and the store; depends on the domain interface, not a backend.
package app
