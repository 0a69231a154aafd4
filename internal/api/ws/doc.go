// Package ws provides the view channel: one websocket per page view that
// runs a delivery.View on the server and relays client signals to it.
//
// Message Types (server -> client):
//   - render: {"type":"render","mode":"proxy|embed|default","attempt":"...","src":"..."}
//   - settled: {"type":"settled","mode":"..."}; the server then closes the socket
//
// Message Types (client -> server):
//   - demo-proxy-status: forwarded from the proxied document's announcement
//   - embed-load: the embed frame's load callback
//
// Either client message may carry performance: {loadTimeMs, memoryBytes, domNodes}.
// Unknown message types are ignored.
package ws
