// Package stage models the ordered steps of a SMELLIE bring-up and run sequence and the
// single rule used to classify every controller response.
//
// A Stage declares what it sends, how many responses it waits for, the code it accepts as
// success and a small table mapping other expected codes to a specific failure. Evaluate
// applies the same rule to every stage, so no stage carries bespoke branching.
//
// Failure Kinds:
//   - ConnectivityError: the connectivity check returned an unexpected token.
//   - DeviceDisconnected: Sepia or the laser switch reported it is not connected.
//   - SafeStateViolation: a sub-device is not in its default configuration.
//   - ConfigurationRejected: a parameter, the self-test or the run was rejected.
//   - RemoteTimeout: the universal timeout code was received, at any wait point.
//   - ProtocolViolation: the token is not known to the current stage.
//   - TransportError: the connection failed while sending or receiving.
//
// Plan returns the canonical sequence of thirteen stages. The laser switch stage waits twice
// because switching a channel power-cycles Sepia; the intensity stage sends the frequency mode
// as a follow-up and the frequency stage only receives its confirmation.
package stage
