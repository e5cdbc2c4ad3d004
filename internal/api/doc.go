// Package api provides the HTTP API and WebSocket traffic stream for the
// Insteon service.
//
// It exposes the device registry, link groups, the scheduler queue and the
// traffic journal, and accepts device and group commands. Commands go
// through the same path as MQTT commands and answer with the same ack
// message.
//
// Endpoints (under /api/v1):
//
//	GET  /health                       service status (never authenticated)
//	GET  /devices                      all known devices
//	GET  /devices/{address}            one device
//	POST /devices/{address}/commands   {"command": "on"}
//	GET  /groups                       all link groups
//	POST /groups/{group}/commands      {"command": "group_on"}
//	POST /modem/commands               {"command": "load_devices"}
//	GET  /schedule                     queued scheduler events
//	GET  /traffic?limit=N              newest journaled frames
//	GET  /ws                           live traffic and ack stream
//
// When a JWT secret is configured every endpoint except /health requires
// an HS256 bearer token. Browsers that cannot set headers on a WebSocket
// upgrade may pass it as the token query parameter.
package api
