// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"unicode/utf8"

	"github.com/creack/pty"
)

// PtyChild spawns the agentic CLI attached to a freshly opened pty pair and
// exposes the byte stream as whole-UTF8-codepoint chunks over a channel —
// the Go analogue of the spec's cooperative-task "non-blocking read": a
// single reader goroutine owns the blocking syscall, and SessionActor
// selects on the resulting channel alongside its other event sources.
type PtyChild struct {
	cmd  *exec.Cmd
	ptmx *os.File

	chunks  chan chunk
	partial []byte
}

type chunk struct {
	text string
	eof  bool
	err  error
}

// Spawn opens a pty, sizes it to rows×cols, and starts name(args...) with
// the slave end as its controlling terminal. sessionID is exposed to the
// child as AGENTGATE_SESSION_ID so it can namespace its own transcript
// file if it chooses to.
func Spawn(name string, args []string, rows, cols int, sessionID string) (*PtyChild, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		"COLUMNS="+strconv.Itoa(cols),
		"LINES="+strconv.Itoa(rows),
		"FORCE_COLOR=1",
		"COLORTERM=truecolor",
		"PYTHONUNBUFFERED=1",
		"AGENTGATE_SESSION_ID="+sessionID,
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("spawn pty child: %w", err)
	}

	c := &PtyChild{
		cmd:    cmd,
		ptmx:   ptmx,
		chunks: make(chan chunk, 16),
	}
	go c.readLoop()
	return c, nil
}

func (c *PtyChild) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.ptmx.Read(buf)
		if n > 0 {
			c.partial = append(c.partial, buf[:n]...)
			text, rest := splitValidUTF8(c.partial)
			c.partial = rest
			if text != "" {
				c.chunks <- chunk{text: text}
			}
		}
		if err != nil {
			// Flush whatever partial bytes remain, lossily decoded, then
			// signal EOF — matches read_utf8_chunk's "EOF mid-codepoint"
			// contract.
			if len(c.partial) > 0 {
				c.chunks <- chunk{text: string(c.partial)}
				c.partial = nil
			}
			c.chunks <- chunk{eof: true, err: err}
			close(c.chunks)
			return
		}
		if n == 0 {
			c.chunks <- chunk{eof: true}
			close(c.chunks)
			return
		}
	}
}

// splitValidUTF8 returns buf as a string when it is valid UTF-8, or else
// the longest valid prefix that leaves a suffix of at most utf8.UTFMax-1
// bytes to carry over to the next read. When no such prefix exists (an
// invalid byte earlier in buf), it returns "" and carries all of buf.
func splitValidUTF8(buf []byte) (string, []byte) {
	if utf8.Valid(buf) {
		return string(buf), nil
	}
	for i := len(buf) - 1; i >= 0 && i > len(buf)-utf8.UTFMax; i-- {
		if utf8.Valid(buf[:i]) {
			return string(buf[:i]), append([]byte(nil), buf[i:]...)
		}
	}
	return "", buf
}

// Chunks exposes the reader channel. A chunk with eof set means no more
// chunks will arrive; an empty, non-eof chunk never occurs.
func (c *PtyChild) Chunks() <-chan chunk {
	return c.chunks
}

// Write writes raw bytes to the pty master.
func (c *PtyChild) Write(b []byte) error {
	_, err := c.ptmx.Write(b)
	return err
}

// WriteEscape sends ESC (0x1B), the Cancel primitive.
func (c *PtyChild) WriteEscape() error { return c.Write([]byte{0x1B}) }

// WriteEnter sends CR (0x0D), the Confirm primitive.
func (c *PtyChild) WriteEnter() error { return c.Write([]byte{0x0D}) }

// WriteInterrupt sends ETX (0x03), SIGINT's terminal-driver equivalent.
func (c *PtyChild) WriteInterrupt() error { return c.Write([]byte{0x03}) }

// WriteArrowDown writes one CSI 'B' down-arrow sequence.
func (c *PtyChild) WriteArrowDown() error { return c.Write([]byte{0x1B, '[', 'B'}) }

// WriteArrowUp writes one CSI 'A' up-arrow sequence.
func (c *PtyChild) WriteArrowUp() error { return c.Write([]byte{0x1B, '[', 'A'}) }

// WriteArrowLeft writes one CSI 'D' left-arrow sequence.
func (c *PtyChild) WriteArrowLeft() error { return c.Write([]byte{0x1B, '[', 'D'}) }

// WriteArrowRight writes one CSI 'C' right-arrow sequence.
func (c *PtyChild) WriteArrowRight() error { return c.Write([]byte{0x1B, '[', 'C'}) }

// WriteFocusIn writes ESC [ I, the focus-in sequence used to nudge TUIs
// past a splash screen while the transcript file has not yet appeared.
func (c *PtyChild) WriteFocusIn() error { return c.Write([]byte{0x1B, '[', 'I'}) }

// Resize updates the pty's window size.
func (c *PtyChild) Resize(rows, cols int) error {
	return pty.Setsize(c.ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// Wait awaits child exit. Its result is used for observability only; the
// session's derived state never depends on the exit status.
func (c *PtyChild) Wait() error {
	return c.cmd.Wait()
}

// Kill force-terminates the child's entire process group, falling back to
// a direct process kill if the group lookup fails.
func (c *PtyChild) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	if pgid, err := syscall.Getpgid(c.cmd.Process.Pid); err == nil {
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
	return c.cmd.Process.Kill()
}

// Close releases the pty master file descriptor.
func (c *PtyChild) Close() error {
	return c.ptmx.Close()
}
