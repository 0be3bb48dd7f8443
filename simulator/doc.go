// Package simulator implements a simulated SMELLIE controller.
//
// The simulator plays the controller side of the stage sequence built by stage.Plan: it
// replies with the regular success code at each wait point, validates the commands the
// driver sends against configurable Limits and answers the matching failure code when a
// value is out of range.
//
// Faults force a given code at a given wait point, which is how failure paths are exercised
// end to end without hardware:
//
//	srv := simulator.New(simulator.Config{
//		Framing: transport.FrameLine,
//		Faults:  []simulator.Fault{{Stage: stage.SetLSChannel, Phase: 2, Code: status.Timeout}},
//	})
//	if err := srv.Start("127.0.0.1:50007"); err != nil {
//		return err
//	}
//	defer srv.Close()
package simulator
