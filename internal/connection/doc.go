// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains one WebSocket connection bound to the current user identity
//   - Throttles connect attempts to one per minimum interval
//   - Schedules a reconnect after transport failure, guarded by identity
//   - Replays channel subscriptions after each reconnect
//   - Broadcasts ConnectionState transitions and feeds raw frames to the
//     Message Dispatcher
package connection
