// Package session implements the driver that brings a SMELLIE controller through its ordered
// bring-up and run sequence over a stream connection.
//
// A Session owns the position in the stage list and a Transport handle, but not the
// construction of the transport. RunStage executes one stage: it sends the stage payload,
// reads exactly one token per wait point, classifies it with stage.Evaluate and sends the
// follow-up once every wait point advanced. Run executes the stages in order and stops at
// the first failure without issuing any further command.
//
// Result:
// Run returns a Result that is either Completed or Failed. A failed result carries a
// *Failure naming the stage, the failure kind, the reason, the wait phase and, for
// unrecognized responses, the raw token. *Failure implements error and unwraps to the
// sentinel of its kind:
//
//	res := sess.Run(ctx)
//	if errors.Is(res.Err(), session.ErrRemoteTimeout) {
//		// the controller timed out
//	}
//
// Deciding what to do with a failure (e.g. terminating the process) is left to the caller.
//
// Blocking:
// Receives block until the transport delivers a token. Timeouts are reported in-band by the
// controller with its timeout code. Canceling the context passed to Run closes a transport
// implementing io.Closer, which unblocks a pending receive.
package session
