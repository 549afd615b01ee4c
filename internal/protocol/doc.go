// Package protocol defines the JSON frames exchanged with the notification
// server.
//
// Every frame is a JSON object with a "type" discriminator. Outbound types:
// subscribe, message, pong. Recognized inbound types: ping, subscribe_ack,
// notification. Anything else is forwarded to consumers verbatim.
package protocol
