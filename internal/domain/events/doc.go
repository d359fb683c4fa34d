// Package events defines the notifications produced by running sessions and
// the Hub that delivers them to UI connections.
//
// Every id sees zero or more output events followed by exactly one terminal
// event (exit or error). Output for one stream arrives in read order.
package events
