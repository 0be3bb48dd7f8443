// Package transport provides the TCP connection used to drive a SMELLIE controller.
//
// Conn implements session.Transport: Send writes one token, Receive blocks until one token is
// available, and Close releases the connection and unblocks a pending Receive.
//
// Framing:
// The controller protocol sends ASCII tokens without delimiter or length prefix and relies on
// each read returning exactly one token. FramePacket reproduces this behavior. It breaks when the
// network coalesces two tokens into one segment, e.g. the two confirmations of a laser switch
// channel change sent back to back; the result is an unrecognized token. FrameLine delimits
// tokens with a newline and is the mode to use with controllers and simulators that support it.
package transport
