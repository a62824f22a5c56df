// Package api provides the local HTTP REST API and WebSocket server for
// the SmartThings bridge.
//
// It exposes the device directory, rooms, scenes, command dispatch and
// bridge status to local consumers (dashboards, automations, curl), and
// relays directory changes to WebSocket clients in real time. The cloud
// webhook handler is mounted on the same listener so a single port
// serves both local clients and tunnelled SmartThings deliveries.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
