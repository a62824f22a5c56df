// Package capability models the SmartThings capability vocabulary.
//
// A capability names a unit of device behaviour ("switch", "switchLevel",
// "temperatureMeasurement"). Devices advertise a set of capabilities; each
// capability reports attributes and may accept commands. This package
// provides:
//
//   - typed names for the capabilities the bridge understands
//   - a capability-to-domain table used to classify devices for topic
//     routing and API filtering
//   - per-capability command schemas used to validate outbound commands
//     before they are sent to the cloud
//
// SmartThings introduces vendor capabilities (for example the samsungce.*
// namespace) faster than any table can track, so unknown capabilities are
// never rejected: classification falls back to DomainUnknown and command
// validation is skipped for capabilities without a schema.
package capability
