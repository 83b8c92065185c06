// Package tapo implements the bridge for TP-Link Tapo smart plugs.
//
// Tapo plugs expose a JSON-over-HTTP envelope protocol on their local
// /app endpoint, authenticated with the owner's cloud account
// credentials. Each read establishes a session with login_device, uses
// its token for the data calls and discards it; readings combine the
// get_device_info and get_energy_usage payloads.
//
// # Fault classification
//
// Classification happens here, at the protocol edge. Credential
// rejections are recognised by the vendor's message text in any
// spelling or casing and surface as authentication faults; expired
// sessions are re-established once per read; everything else, including
// unrecognised vendor codes, is a transient fault and retried by the
// poller on the next cycle.
//
// Security considerations:
//   - Account credentials are held in memory only and never logged;
//     session lifecycle events log the device name at most
//   - The password crosses the wire base64 wrapped per the vendor
//     protocol, so plugs should only ever be polled on a trusted LAN
package tapo
