// Package session provides the current-user session value and the binder
// that keeps the connection manager in sync with it.
//
// A session with a user id and a registered (or admin) role means a live
// connection should exist; anything else means disconnected.
package session
