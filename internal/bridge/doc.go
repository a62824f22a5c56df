// Package bridge is the coordinator: it owns the startup and shutdown
// order of the moving parts and the glue between them.
//
// On startup it loads the persisted installation identity (webhook hook
// id, installed app id, tunnel subdomain), wires the webhook ingestor
// behind the tunnel, registers the cloud subscription set against the
// tunnel's public URL, and starts the reconciliation and renewal loops.
// Directory changes fan out to the MQTT bus as retained state topics,
// and inbound MQTT commands are handed to the dispatcher.
//
// Shutdown runs in the reverse of the data flow: delete the cloud
// subscriptions first so no new events are sent, then drop the tunnel,
// then stop the loops. The bus and database are closed by the caller's
// defer chain.
package bridge
