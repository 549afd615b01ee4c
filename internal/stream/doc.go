// Package stream provides the broadcast primitive shared by the connection
// and dispatch layers.
//
// A Broadcaster fans a value out to every live subscriber. Subscribers see
// values published from the point of subscription onward; there is no
// replay. Publishing never blocks: a subscriber whose buffer is full misses
// the value.
package stream
