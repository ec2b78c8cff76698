// Package relay is the rendezvous server replicas sync through.
//
// A relay keeps one LWW register set per room. Pushed operations are merged
// into it with the same rule replicas use; pulls return the room's
// registers minus those written by the requester. After a push changes
// anything, every other session in the room gets a notify frame so it can
// pull immediately.
//
// The relay never originates writes, so it needs no clock and no replica
// id of its own.
package relay
