package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nf/intcode/intcode"
	"github.com/nf/intcode/program"
)

// errInputClosed is returned when a program waits for input after the
// console input has reached EOF.
var errInputClosed = errors.New("program wants input but input is closed")

// slice is the number of instructions executed between checks for
// cancellation.
const slice = 1 << 14

// console drives a machine from a line-oriented reader and writer.
// In ASCII mode each input line is queued byte by byte, including its
// newline, and output values below 128 are written as characters.
type console struct {
	ascii bool
	out   *bufio.Writer
	lines chan line
}

type line struct {
	text string
	err  error
}

func newConsole(r io.Reader, w io.Writer, ascii bool) *console {
	lines := make(chan line)
	go readInput(r, lines)
	return &console{ascii: ascii, out: bufio.NewWriter(w), lines: lines}
}

// readInput sends every line of r, then the error that ended it.
func readInput(r io.Reader, lines chan<- line) {
	br := bufio.NewReader(r)
	for {
		s, err := br.ReadString('\n')
		if s != "" {
			lines <- line{text: s}
		}
		if err != nil {
			lines <- line{err: err}
			return
		}
	}
}

// run executes m until it halts, feeding it input whenever it blocks and
// writing its output as it is produced.
func (c *console) run(ctx context.Context, m *intcode.Machine) error {
	defer c.flush()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := runSlice(m, slice)
		c.write(m.Output()...)
		if err != nil {
			return err
		}
		switch s {
		case intcode.Halted:
			return nil
		case intcode.WaitingForInput:
			if err := c.flush(); err != nil {
				return err
			}
			vs, err := c.read(ctx)
			if err != nil {
				return err
			}
			m.PushInput(vs...)
		}
	}
}

// runSlice executes at most n instructions of m.
func runSlice(m *intcode.Machine, n int) (intcode.Status, error) {
	for i := 0; i < n; i++ {
		s, err := m.Step()
		if err != nil || s != intcode.Running {
			return s, err
		}
	}
	return m.Status(), nil
}

// read blocks until the next non-empty line of input and returns its values.
func (c *console) read(ctx context.Context) ([]int64, error) {
	for {
		var l line
		select {
		case l = <-c.lines:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if l.err == io.EOF {
			// Keep reporting EOF to later reads.
			go func() { c.lines <- l }()
			return nil, errInputClosed
		} else if l.err != nil {
			return nil, fmt.Errorf("reading input: %w", l.err)
		}
		if c.ascii {
			vs := make([]int64, len(l.text))
			for i := 0; i < len(l.text); i++ {
				vs[i] = int64(l.text[i])
			}
			return vs, nil
		}
		vs, err := program.ParseString(l.text)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		if len(vs) > 0 {
			return vs, nil
		}
	}
}

func (c *console) write(vs ...int64) {
	for _, v := range vs {
		if c.ascii && v >= 0 && v < 128 {
			c.out.WriteByte(byte(v))
			continue
		}
		c.out.WriteString(strconv.FormatInt(v, 10))
		c.out.WriteByte('\n')
	}
}

func (c *console) flush() error { return c.out.Flush() }
