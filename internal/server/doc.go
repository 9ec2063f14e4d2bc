// Package server implements the realtime endpoint of Messenger: the
// connection hub, the user-to-connection registry, the per-connection
// authentication gate, the message broadcast router, and the presence
// notifier.
//
// Clients connect over WebSocket and exchange line-delimited JSON frames.
// A connection starts unauthenticated and must present a session token in an
// auth frame before it can send messages. Authentication installs the
// connection in the registry under its user identity; a later authentication
// for the same identity replaces the entry and silently orphans the earlier
// socket. Presence is announced to all authenticated connections when a user
// comes online; no offline announcement is made on disconnect.
package server
