package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/glossopoeia/rexxcore/object"
	"github.com/rjNemo/underscore"
	"github.com/rs/zerolog/log"
)

// Turns source text into code, for INTERPRET.
type Translator interface {
	Translate(source string) (*Code, error)
}

// Finds external routines and REQUIRES packages by name. A nil code with a
// nil error means nothing by that name exists.
type Loader interface {
	Load(name string) (*Code, error)
}

// Delivers messages to objects. FORWARD and message terms in expressions go
// through the messenger.
type Messenger interface {
	Send(act *Activation, receiver object.Value, message string, args []object.Value) (object.Value, error)
}

// Runs a command for an ADDRESS environment and reports its return code. A
// negative return code is a failure, any other nonzero code an error.
type CommandHandler func(act *Activation, command string) (int, error)

type Options struct {
	// Clauses an activation runs before giving other activities a turn.
	MaxInstructions int
	// When positive, the kernel owner is also asked to yield this often.
	TimeSlice           time.Duration
	MaxThreadPoolSize   int
	ActivationCacheSize int
	Numeric             object.NumericSettings
	Trace               TraceSetting
	Address             string
	Streams             Streams
	Translator          Translator
	Loader              Loader
	Messenger           Messenger
	Security            SecurityManager
	Exits               map[ExitKind]ExitHandler
	OnShutdown          func()
	// Seeds RANDOM on new activities. Defaults to the clock.
	Seed func() uint64
}

func DefaultOptions() Options {
	return Options{
		MaxInstructions:     100,
		MaxThreadPoolSize:   5,
		ActivationCacheSize: 5,
		Numeric:             object.DefaultNumeric,
		Trace:               TraceNormal,
		Address:             "SYSTEM",
		Streams:             DefaultStreams(),
		Messenger:           DefaultMessenger{},
	}
}

// The ActivityManager owns the kernel lock, the activity pool, the
// activation cache and the registries shared by everything it runs.
type ActivityManager struct {
	options Options

	kernelMutex sync.Mutex
	kernel      kernel

	registry  sync.Mutex
	all       []*Activity
	active    []*Activity
	available []*Activity
	nextID    int
	natives   map[string]*NativeRoutine
	commands  map[string]CommandHandler

	// Only touched with the kernel held.
	activationCache *arraystack.Stack
	builtins        map[string]BuiltinFunc
	installed       map[string]*Code
	installOrder    []string

	inflight     sync.WaitGroup
	shutdown     atomic.Bool
	shutdownOnce sync.Once
	stopTicker   chan struct{}
}

func NewActivityManager(opts Options) *ActivityManager {
	defaults := DefaultOptions()
	if opts.MaxInstructions <= 0 {
		opts.MaxInstructions = defaults.MaxInstructions
	}
	if opts.MaxThreadPoolSize < 0 {
		opts.MaxThreadPoolSize = defaults.MaxThreadPoolSize
	}
	if opts.ActivationCacheSize < 0 {
		opts.ActivationCacheSize = defaults.ActivationCacheSize
	}
	if opts.Numeric.Digits <= 0 {
		opts.Numeric = defaults.Numeric
	}
	if opts.Trace == 0 {
		opts.Trace = defaults.Trace
	}
	if opts.Address == "" {
		opts.Address = defaults.Address
	}
	if opts.Streams.Output == nil {
		opts.Streams.Output = defaults.Streams.Output
	}
	if opts.Streams.Error == nil {
		opts.Streams.Error = defaults.Streams.Error
	}
	if opts.Streams.Input == nil {
		opts.Streams.Input = defaults.Streams.Input
	}
	if opts.Streams.Queue == nil {
		opts.Streams.Queue = NewDataQueue()
	}
	if opts.Messenger == nil {
		opts.Messenger = defaults.Messenger
	}

	m := &ActivityManager{
		options:         opts,
		kernel:          kernel{waiting: linkedlistqueue.New()},
		natives:         make(map[string]*NativeRoutine),
		commands:        make(map[string]CommandHandler),
		activationCache: arraystack.New(),
		builtins:        defaultBuiltins(),
		installed:       make(map[string]*Code),
		stopTicker:      make(chan struct{}),
	}
	if opts.TimeSlice > 0 {
		go m.timeSlicer(opts.TimeSlice)
	}
	return m
}

func (m *ActivityManager) Options() Options {
	return m.options
}

func (m *ActivityManager) Queue() *DataQueue {
	return m.options.Streams.Queue
}

// Run a program to completion and return its result. Cancelling the context
// raises HALT in the program.
func (m *ActivityManager) RunProgram(ctx context.Context, code *Code, args []object.Value) (object.Value, error) {
	res, err := m.start(code, ContextProgram, args, nil)
	if err != nil {
		return nil, err
	}
	return res.Await(ctx)
}

// Start a routine on its own activity.
func (m *ActivityManager) StartRoutine(code *Code, args []object.Value) (*MessageResult, error) {
	return m.start(code, ContextExternal, args, nil)
}

// Start a method on its own activity. Guarded methods reserve the scope
// before running.
func (m *ActivityManager) StartMethod(code *Code, receiver object.Value, scope *ObjectScope, guarded bool, args []object.Value) (*MessageResult, error) {
	return m.start(code, ContextMethod, args, func(act *Activation) {
		act.SetMethod(receiver, scope, guarded)
	})
}

func (m *ActivityManager) start(code *Code, context CallContext, args []object.Value, setup func(*Activation)) (*MessageResult, error) {
	activity, err := m.getActivity()
	if err != nil {
		return nil, err
	}
	res := newMessageResult(activity)
	m.dispatch(activity, func() {
		result, err := activity.runCode(code, context, args, setup)
		res.complete(result, err)
	})
	return res, nil
}

func (m *ActivityManager) dispatch(activity *Activity, task func()) {
	m.inflight.Add(1)
	activity.work <- task
}

func (m *ActivityManager) getActivity() (*Activity, error) {
	m.registry.Lock()
	defer m.registry.Unlock()
	if m.shutdown.Load() {
		return nil, ErrShutdown
	}
	var activity *Activity
	if n := len(m.available); n > 0 {
		activity = m.available[n-1]
		m.available = m.available[:n-1]
		log.Debug().Int("activity", activity.id).Msg("activity reused from pool")
	} else {
		m.nextID++
		activity = newActivity(m, m.nextID)
		m.all = append(m.all, activity)
		log.Debug().Int("activity", activity.id).Msg("activity created")
	}
	m.active = append(m.active, activity)
	return activity, nil
}

// Get an activity for a REPLY continuation, inheriting the exits, numeric
// settings and random seed of the replying one.
func (m *ActivityManager) spawnActivity(parent *Activity) *Activity {
	m.registry.Lock()
	var activity *Activity
	if n := len(m.available); n > 0 {
		activity = m.available[n-1]
		m.available = m.available[:n-1]
	} else {
		m.nextID++
		activity = newActivity(m, m.nextID)
		m.all = append(m.all, activity)
	}
	m.active = append(m.active, activity)
	m.registry.Unlock()

	clear(activity.exits)
	for kind, handler := range parent.exits {
		activity.exits[kind] = handler
	}
	activity.numeric = parent.numeric
	activity.randomSeed = parent.randomSeed
	return activity
}

// Take back an activity whose task finished. Activities beyond the pool
// size are torn down.
func (m *ActivityManager) returnActivity(activity *Activity) {
	m.registry.Lock()
	defer m.registry.Unlock()
	m.active = underscore.Filter(m.active, func(a *Activity) bool { return a != activity })
	activity.recycle()
	if !m.shutdown.Load() && len(m.available) < m.options.MaxThreadPoolSize {
		m.available = append(m.available, activity)
		return
	}
	m.all = underscore.Filter(m.all, func(a *Activity) bool { return a != activity })
	log.Debug().Int("activity", activity.id).Msg("activity torn down")
	close(activity.work)
}

func (m *ActivityManager) newActivation() *Activation {
	if v, ok := m.activationCache.Pop(); ok {
		log.Trace().Msg("activation reused from cache")
		return v.(*Activation)
	}
	return &Activation{}
}

func (m *ActivityManager) cacheActivation(a *Activation) {
	a.reset()
	if m.activationCache.Size() < m.options.ActivationCacheSize {
		m.activationCache.Push(a)
	}
}

// The number of activations waiting for reuse.
func (m *ActivityManager) CachedActivations() int {
	return m.activationCache.Size()
}

func (m *ActivityManager) seedSource() uint64 {
	if m.options.Seed != nil {
		return m.options.Seed()
	}
	return uint64(time.Now().UnixNano())
}

// The number of activities running work, the number pooled, and the total.
func (m *ActivityManager) ActivityCounts() (active int, available int, all int) {
	m.registry.Lock()
	defer m.registry.Unlock()
	return len(m.active), len(m.available), len(m.all)
}

// Register a native routine callable by name from programs.
func (m *ActivityManager) RegisterNative(routine *NativeRoutine) {
	m.registry.Lock()
	defer m.registry.Unlock()
	m.natives[routine.Name] = routine
}

// Register the handler for an ADDRESS environment.
func (m *ActivityManager) RegisterCommand(environment string, handler CommandHandler) {
	m.registry.Lock()
	defer m.registry.Unlock()
	m.commands[strings.ToUpper(environment)] = handler
}

func (m *ActivityManager) native(name string) (*NativeRoutine, bool) {
	m.registry.Lock()
	defer m.registry.Unlock()
	n, ok := m.natives[name]
	return n, ok
}

func (m *ActivityManager) command(environment string) (CommandHandler, bool) {
	m.registry.Lock()
	defer m.registry.Unlock()
	h, ok := m.commands[environment]
	return h, ok
}

func (m *ActivityManager) isInstalled(name string) bool {
	_, ok := m.installed[name]
	return ok
}

func (m *ActivityManager) install(name string, code *Code) {
	m.installed[name] = code
	m.installOrder = append(m.installOrder, name)
	log.Debug().Str("package", name).Msg("package installed")
}

// Find a public routine among installed packages, earliest install first.
func (m *ActivityManager) installedRoutine(name string) (*Code, bool) {
	for _, pkg := range m.installOrder {
		if code, ok := m.installed[pkg].Routine(name); ok {
			return code, true
		}
	}
	return nil, false
}

// Ask every running activity to halt.
func (m *ActivityManager) HaltAll(description string) {
	m.registry.Lock()
	defer m.registry.Unlock()
	for _, a := range m.active {
		a.Halt(description)
	}
}

// Switch tracing on or off in every running activity.
func (m *ActivityManager) SetTraceAll(on bool) {
	m.registry.Lock()
	defer m.registry.Unlock()
	for _, a := range m.active {
		a.SetTrace(on)
	}
}

// Block until every dispatched task, REPLY continuations included, is done.
func (m *ActivityManager) Wait() {
	m.inflight.Wait()
}

// Stop accepting work, wait for running work to finish and tear down the
// pooled activities. The shutdown callback runs once.
func (m *ActivityManager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.shutdown.Store(true)
		m.inflight.Wait()
		close(m.stopTicker)

		m.registry.Lock()
		pooled := m.available
		m.available = nil
		m.all = underscore.Filter(m.all, func(a *Activity) bool { return !underscore.Contains(pooled, a) })
		m.registry.Unlock()

		for _, a := range pooled {
			close(a.work)
			<-a.done
		}
		log.Debug().Int("activities", len(pooled)).Msg("activity manager shut down")
		if m.options.OnShutdown != nil {
			m.options.OnShutdown()
		}
	})
}

func (m *ActivityManager) timeSlicer(slice time.Duration) {
	ticker := time.NewTicker(slice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if owner := m.KernelOwner(); owner != nil {
				owner.Yield()
			}
		case <-m.stopTicker:
			return
		}
	}
}

// The process exit code for a program result: the negated major error
// number for errors, the result when it is a whole number, otherwise 0.
func ExitCode(result object.Value, err error) int {
	var condErr *ConditionError
	if errors.As(err, &condErr) {
		return condErr.ExitCode()
	}
	if err != nil {
		return 1
	}
	if result == nil {
		return 0
	}
	if n, ok := object.DefaultNumeric.WholeNumber(object.RequestText(result)); ok {
		return n
	}
	return 0
}
