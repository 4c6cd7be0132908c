// Package position stores and serves GPS fixes tied to an authenticated device
// identity, including a live websocket feed of newly submitted fixes.
package position
