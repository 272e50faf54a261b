// Package exchange implements the shared transport and correlation engine
// for Pico controllers.
//
// One UDP socket is multiplexed across any number of device sessions. Each
// session owns a disjoint range of sequential identifiers (IDPs); the socket
// reader decodes every inbound datagram and routes it to the session whose
// range contains the frame's IDP. Within a session, exactly one correlated
// exchange is in flight at a time: the session encodes the command with its
// current IDP, waits for an ACK and then a RESPONSE echoing that IDP, and
// recovers from counter desynchronization by probing forward (incrementing
// the IDP) and, failing that, resetting to the range start and retrying.
//
// The layering is:
//
//   - Manager: owns the socket, the range allocator, and the session
//     registry; entry point for Register/Unregister/Send.
//   - Session: per-device send-wait-retry-resync state machine.
//   - RangeAllocator: first-fit allocation of fixed-size IDP ranges.
package exchange
