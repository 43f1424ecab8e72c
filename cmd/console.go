/*
Copyright © 2023 Glossopoeia
*/
package cmd

import (
	"errors"
	"io"
	"os"

	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// Line editing console input for PULL. The terminal is only taken over once
// a program actually reads from it.
type consoleReader struct {
	state *liner.State
}

func (r *consoleReader) ReadLine() (string, error) {
	if r.state == nil {
		r.state = liner.NewLiner()
		r.state.SetCtrlCAborts(true)
	}
	line, err := r.state.Prompt("")
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	r.state.AppendHistory(line)
	return line, nil
}

func (r *consoleReader) Close() error {
	if r.state == nil {
		return nil
	}
	return r.state.Close()
}

// A reader for program input: line editing on an interactive terminal,
// plain lines otherwise.
func newInputReader(in io.Reader) (runtime.LineReader, func() error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) && liner.TerminalSupported() {
		console := &consoleReader{}
		return console, console.Close
	}
	return runtime.NewLineReader(in), func() error { return nil }
}
