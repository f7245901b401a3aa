// Package server implements the line-oriented chat server.
//
// Each accepted stream (raw TCP or a WebSocket) becomes a Connection held in
// the Registry. Inbound lines are routed either to every other client as
// plain chat or to the command processor (/w, /username, /kick,
// /clientlist). Every notable event is written to an eventlog.Recorder
// before it takes effect on the network.
package server
