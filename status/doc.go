// Package status defines the status codes exchanged with a SMELLIE controller and the
// immutable registry that maps each symbolic meaning to its wire code.
//
// Status codes are short ASCII numeric strings. They are opaque tokens: the driver only
// compares them for equality and never performs arithmetic on them.
//
// Registry:
// A Registry is built once and never mutated. Every code in a registry is unique, so a code
// received from the controller resolves to at most one meaning. The Default registry carries
// the code table used by the controller firmware:
//   - Continue: the stage succeeded, advance to the next one.
//   - CheckConnection, StartInitialise, SetupRun: handshake and command codes.
//   - SepiaNotConnected, LaserSwitchNotConnected: sub-device connectivity failures.
//   - SepiaWrongIntensity, SepiaWrongFrequency, SepiaWrongPulseMode, LaserSwitchWrongDefault:
//     safe-state violations.
//   - SelfTestFailed, LaserSwitchSetWrong, FibreSwitchChannelBroken, PulseCountTooHigh,
//     RunFailed, TriggerFrequencyInvalid: rejected configuration or failed run.
//   - Timeout: the universal remote timeout, valid at every wait point.
package status
