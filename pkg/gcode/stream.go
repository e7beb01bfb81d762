package gcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Actor receives every parsed line of a stream in order.
type Actor interface {
	Act(l *Line) error
}

type ActorFunc func(l *Line) error

func (f ActorFunc) Act(l *Line) error {
	return f(l)
}

// Stream parses r line by line and hands each line to a. Nothing is
// buffered beyond the current line. The first parse or actor error stops
// the stream.
func Stream(r io.Reader, a Actor) error {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	for n := 1; ; n++ {
		raw, err := br.ReadString('\n')
		if len(raw) > 0 {
			l, perr := Parse(raw)
			if perr != nil {
				return fmt.Errorf("line %d: %w", n, perr)
			}
			if aerr := a.Act(l); aerr != nil {
				return fmt.Errorf("line %d: %w", n, aerr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
