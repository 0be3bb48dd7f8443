package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
)

// tokenReader reads one token per call from a stream.
//
// A tokenReader is NOT goroutine-safe. The Session driving a connection is its single receiver.
type tokenReader interface {
	ReadToken() ([]byte, error)
}

// packetReader treats each successful read as one token.
//
// Zero-length reads are skipped, so the caller only ever sees non-empty tokens.
// A read longer than maxSize fails with ErrTokenTooLarge instead of being split.
type packetReader struct {
	r       io.Reader
	buf     []byte
	maxSize int
}

func newPacketReader(r io.Reader, maxSize int) *packetReader {
	return &packetReader{r: r, buf: make([]byte, maxSize+1), maxSize: maxSize}
}

func (pr *packetReader) ReadToken() ([]byte, error) {
	for {
		n, err := pr.r.Read(pr.buf)
		if n > pr.maxSize {
			return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTokenTooLarge, pr.maxSize)
		}
		if n > 0 {
			token := make([]byte, n)
			copy(token, pr.buf[:n])
			return token, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// lineReader reads newline delimited tokens.
type lineReader struct {
	br *bufio.Reader
}

func newLineReader(r io.Reader, maxSize int) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, maxSize)}
}

func (lr *lineReader) ReadToken() ([]byte, error) {
	for {
		line, err := lr.br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTokenTooLarge, lr.br.Size())
		}
		if err != nil {
			if len(line) > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		token := bytes.TrimRight(line, "\r\n")
		if len(token) == 0 {
			continue
		}

		return bytes.Clone(token), nil
	}
}

func newTokenReader(conn net.Conn, framing Framing, maxSize int) tokenReader {
	if framing == FrameLine {
		return newLineReader(conn, maxSize)
	}

	return newPacketReader(conn, maxSize)
}

// frame returns payload encoded for the wire in the given framing mode.
func frame(payload []byte, framing Framing) []byte {
	if framing != FrameLine {
		return payload
	}

	out := make([]byte, 0, len(payload)+1)
	out = append(out, payload...)

	return append(out, '\n')
}
