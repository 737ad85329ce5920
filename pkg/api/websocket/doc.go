// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/analyses/:id/ws to receive updates about
// one analysis. The first message is a snapshot of the analysis; the
// connection is closed after the completed or failed event.
package websocket
