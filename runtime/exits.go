package runtime

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
	"github.com/glossopoeia/rexxcore/object"
	"github.com/rs/zerolog/log"
)

// The points where a host can take over what the interpreter would do.
type ExitKind int

const (
	ExitSay ExitKind = iota
	ExitTrace
	ExitPull
	ExitQueue
	ExitCommand
	ExitNovalue
	ExitHalt
)

func (k ExitKind) String() string {
	switch k {
	case ExitSay:
		return "SAY"
	case ExitTrace:
		return "TRACE"
	case ExitPull:
		return "PULL"
	case ExitQueue:
		return "QUEUE"
	case ExitCommand:
		return "COMMAND"
	case ExitNovalue:
		return "NOVALUE"
	case ExitHalt:
		return "HALT"
	default:
		panic("Invalid exit kind encountered.")
	}
}

// The data an exit is called with. An exit fills in the result fields it
// understands.
type ExitRequest struct {
	Kind ExitKind
	// SAY and TRACE text, PUSH/QUEUE line, command string.
	Text string
	// Address environment of a command.
	Environment string
	// Variable name for NOVALUE.
	Name string
	// PUSH when true, QUEUE otherwise.
	Lifo bool

	// Line read for PULL.
	Line string
	// Replacement value for NOVALUE.
	Value object.Value
	// Command return code.
	RC int
	// Set by a HALT exit to halt the program.
	Halt        bool
	Description string
}

// An exit handler returns true when it handled the request.
type ExitHandler func(act *Activation, req *ExitRequest) (bool, error)

// Reads one line of console input.
type LineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	scanner *bufio.Scanner
}

func (r *scannerReader) ReadLine() (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Read lines from any reader.
func NewLineReader(r io.Reader) LineReader {
	return &scannerReader{bufio.NewScanner(r)}
}

// Where SAY, tracing and PULL go when no exit takes them.
type Streams struct {
	Output io.Writer
	Error  io.Writer
	Input  LineReader
	Queue  *DataQueue
}

func DefaultStreams() Streams {
	return Streams{
		Output: os.Stdout,
		Error:  os.Stderr,
		Input:  NewLineReader(os.Stdin),
		Queue:  NewDataQueue(),
	}
}

// The external data queue shared by PUSH, QUEUE, PULL and QUEUED().
type DataQueue struct {
	lines *doublylinkedlist.List
}

func NewDataQueue() *DataQueue {
	return &DataQueue{doublylinkedlist.New()}
}

// Add a line at the head of the queue.
func (q *DataQueue) Push(line string) {
	q.lines.Prepend(line)
}

// Add a line at the tail of the queue.
func (q *DataQueue) Queue(line string) {
	q.lines.Append(line)
}

func (q *DataQueue) Pull() (string, bool) {
	v, ok := q.lines.Get(0)
	if !ok {
		return "", false
	}
	q.lines.Remove(0)
	return v.(string), true
}

func (q *DataQueue) Size() int {
	return q.lines.Size()
}

func (a *Activity) callExit(act *Activation, req *ExitRequest) (bool, error) {
	handler, ok := a.exits[req.Kind]
	if !ok {
		return false, nil
	}
	return handler(act, req)
}

// Install an exit on this activity only.
func (a *Activity) SetExit(kind ExitKind, handler ExitHandler) {
	if handler == nil {
		delete(a.exits, kind)
		return
	}
	a.exits[kind] = handler
}

func (a *Activity) say(act *Activation, text string) error {
	req := &ExitRequest{Kind: ExitSay, Text: text}
	if handled, err := a.callExit(act, req); handled || err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.manager.options.Streams.Output, text)
	return err
}

// Write a trace line. A failing TRACE exit is logged and the line goes to
// the error stream instead.
func (a *Activity) traceOutput(act *Activation, text string) {
	req := &ExitRequest{Kind: ExitTrace, Text: text}
	handled, err := a.callExit(act, req)
	if err != nil {
		log.Warn().Err(err).Int("activity", a.id).Msg("trace exit failed")
	} else if handled {
		return
	}
	fmt.Fprintln(a.manager.options.Streams.Error, text)
}

// Read a line for PULL: from the exit, else the external data queue, else
// the console. The kernel is released while the console is read. The end
// of input reads as an empty line.
func (a *Activity) pull(act *Activation) (string, error) {
	req := &ExitRequest{Kind: ExitPull}
	if handled, err := a.callExit(act, req); err != nil {
		return "", err
	} else if handled {
		return req.Line, nil
	}
	if line, ok := a.manager.options.Streams.Queue.Pull(); ok {
		return line, nil
	}
	a.unlockKernel()
	line, err := a.manager.options.Streams.Input.ReadLine()
	a.lockKernel()
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return line, err
}

func (a *Activity) queueLine(act *Activation, line string, lifo bool) error {
	req := &ExitRequest{Kind: ExitQueue, Text: line, Lifo: lifo}
	if handled, err := a.callExit(act, req); handled || err != nil {
		return err
	}
	if lifo {
		a.manager.options.Streams.Queue.Push(line)
	} else {
		a.manager.options.Streams.Queue.Queue(line)
	}
	return nil
}
