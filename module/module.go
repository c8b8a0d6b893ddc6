// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package module

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"retico-go/config"
	"retico-go/core"
	"retico-go/errors"
	"retico-go/events"
	"retico-go/logger"
	"retico-go/metrics"
)

// Kind distinguishes the four I/O shapes a module can take. They share one
// implementation via composition (buffer management, lifecycle, IU
// factory) rather than through a type hierarchy.
type Kind int

const (
	KindGeneral Kind = iota
	KindProducing
	KindConsuming
	KindTrigger
)

func (k Kind) String() string {
	switch k {
	case KindProducing:
		return "producing"
	case KindConsuming:
		return "consuming"
	case KindTrigger:
		return "trigger"
	default:
		return "general"
	}
}

// State is the module's lifecycle position.
type State int

const (
	StateConstructed State = iota
	StateSetup
	StateRunning
	StateStopped
)

// IUFactory builds one concrete output IU. A module supplies this instead
// of a reflective "instantiate my declared class" mechanism, matching the
// construct-from-primitive-mapping adapter approach: each module type
// knows its own output type at compile time.
type IUFactory func(creator core.Module, iuid string, previousIU, groundedIn core.IU) core.IU

// ProcessFunc is the per-message handler for general, consuming, and
// producing modules. msg is nil for producing modules. A non-nil,
// non-empty return value is fanned out to every right buffer.
type ProcessFunc func(m *Module, msg *core.UpdateMessage) (*core.UpdateMessage, error)

// SetupFunc, PrepareRunFunc, and ShutdownFunc are the optional lifecycle
// hooks; a nil hook is treated as a no-op.
type SetupFunc func(m *Module) error
type PrepareRunFunc func(m *Module) error
type ShutdownFunc func(m *Module) error

// TriggerFunc builds the one IU a trigger module emits from caller-supplied
// data. It runs inside Trigger, which wraps the result into an update
// message and fans it out.
type TriggerFunc func(m *Module, data interface{}) (core.IU, error)

// Options configures a new Module. Name, Kind, and a Process (or Trigger)
// hook are normally required; the rest default sensibly.
type Options struct {
	Name        string
	Description string
	Kind        Kind

	InputClasses []core.IUClass
	OutputClass  core.IUClass
	NewOutputIU  IUFactory

	Process    ProcessFunc
	Setup      SetupFunc
	PrepareRun PrepareRunFunc
	Shutdown   ShutdownFunc
	Trigger    TriggerFunc

	// ClassID and Args are persisted verbatim by the network controller's
	// save/load; Args must be restricted to primitive-typed values
	// (int, float64, bool, string, map[string]interface{}).
	ClassID string
	Args    map[string]interface{}

	Config  *config.Config
	Bus     *events.Bus
	Metrics *metrics.PipelineMetrics
}

// Module is a single scheduled stage: one worker, its input and output
// queues, an IU factory bound to its previous-IU chain, and the revoke/
// commit bookkeeping lists a module author manages by hand while inside
// Process.
type Module struct {
	mu sync.Mutex

	name        string
	description string
	kind        Kind
	classID     string
	args        map[string]interface{}

	inputClasses []core.IUClass
	outputClass  core.IUClass
	newOutputIU  IUFactory

	processFunc    ProcessFunc
	setupFunc      SetupFunc
	prepareRunFunc PrepareRunFunc
	shutdownFunc   ShutdownFunc
	triggerFunc    TriggerFunc

	bus     *events.Bus
	metrics *metrics.PipelineMetrics

	state   State
	running bool

	leftBuffers  []*Queue
	rightBuffers []*Queue

	previousIU core.IU
	iuCounter  uint64

	currentInput  []core.IU
	currentOutput []core.IU

	metaData map[string]interface{}

	queueCapacity       int
	pollTimeout         time.Duration
	triggerPollInterval time.Duration

	shutdownErr error
	wg          sync.WaitGroup
}

// New constructs a module in the Constructed state. It does not start a
// worker; call Run for that.
func New(opts Options) *Module {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}
	snap := cfg.Snapshot()

	args := opts.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	return &Module{
		name:        opts.Name,
		description: opts.Description,
		kind:        opts.Kind,
		classID:     opts.ClassID,
		args:        args,

		inputClasses: append([]core.IUClass(nil), opts.InputClasses...),
		outputClass:  opts.OutputClass,
		newOutputIU:  opts.NewOutputIU,

		processFunc:    opts.Process,
		setupFunc:      opts.Setup,
		prepareRunFunc: opts.PrepareRun,
		shutdownFunc:   opts.Shutdown,
		triggerFunc:    opts.Trigger,

		bus:     opts.Bus,
		metrics: opts.Metrics,

		metaData: map[string]interface{}{},

		queueCapacity:       snap.DefaultQueueCapacity,
		pollTimeout:         snap.PollTimeout,
		triggerPollInterval: snap.TriggerPollInterval,

		state: StateConstructed,
	}
}

// Name satisfies core.Module.
func (m *Module) Name() string { return m.name }

func (m *Module) Description() string { return m.description }
func (m *Module) Kind() Kind           { return m.kind }
func (m *Module) ClassID() string      { return m.classID }

// Args returns the primitive-typed constructor arguments recorded for
// network persistence.
func (m *Module) Args() map[string]interface{} {
	return m.args
}

// Identity returns a stable-for-this-process identifier, analogous to the
// source's use of object identity for module references in save/load.
func (m *Module) Identity() string { return fmt.Sprintf("%p", m) }

func (m *Module) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Module) MetaData() map[string]interface{} { return m.metaData }

func (m *Module) InputClasses() []core.IUClass {
	return append([]core.IUClass(nil), m.inputClasses...)
}

func (m *Module) OutputClass() core.IUClass { return m.outputClass }

// LatestIU returns the most recently created output IU, or nil if none has
// been created yet.
func (m *Module) LatestIU() core.IU {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previousIU
}

func (m *Module) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LeftBuffers and RightBuffers return snapshot copies of the module's
// current queue lists, in insertion order.
func (m *Module) LeftBuffers() []*Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Queue(nil), m.leftBuffers...)
}

func (m *Module) RightBuffers() []*Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Queue(nil), m.rightBuffers...)
}

func (m *Module) addLeftBuffer(q *Queue) {
	if m.isRunning() {
		m.Stop(true)
		m.Wait()
	}
	m.mu.Lock()
	m.leftBuffers = append(m.leftBuffers, q)
	m.mu.Unlock()
}

func (m *Module) addRightBuffer(q *Queue) {
	if m.isRunning() {
		m.Stop(true)
		m.Wait()
	}
	m.mu.Lock()
	m.rightBuffers = append(m.rightBuffers, q)
	m.mu.Unlock()
}

func (m *Module) removeLeftBuffer(q *Queue) {
	if m.isRunning() {
		m.Stop(true)
		m.Wait()
	}
	m.mu.Lock()
	m.leftBuffers = removeQueue(m.leftBuffers, q)
	m.mu.Unlock()
}

func (m *Module) removeRightBuffer(q *Queue) {
	if m.isRunning() {
		m.Stop(true)
		m.Wait()
	}
	m.mu.Lock()
	m.rightBuffers = removeQueue(m.rightBuffers, q)
	m.mu.Unlock()
}

func removeQueue(list []*Queue, target *Queue) []*Queue {
	out := list[:0:0]
	for _, q := range list {
		if q != target {
			out = append(out, q)
		}
	}
	return out
}

// Subscribe creates a queue from m (provider) to consumer, registering it
// on both modules' buffer lists. Subscribing to a consuming module is a
// topology error: it has no output class to feed the new queue.
func (m *Module) Subscribe(consumer *Module) (*Queue, error) {
	if m.kind == KindConsuming {
		return nil, errors.TopologyErrorf("subscribe", "module %q is consuming-only and cannot be subscribed to", m.name)
	}
	q := NewQueue(m, consumer, m.queueCapacity, m.metrics)
	m.addRightBuffer(q)
	consumer.addLeftBuffer(q)
	if m.bus != nil {
		m.bus.Call(events.EventSubscribe, consumer)
	}
	return q, nil
}

// RemoveFromRightBuffer removes every queue from m to other.
func (m *Module) RemoveFromRightBuffer(other *Module) {
	m.mu.Lock()
	var doomed []*Queue
	for _, q := range m.rightBuffers {
		if q.consumer == other {
			doomed = append(doomed, q)
		}
	}
	m.mu.Unlock()
	for _, q := range doomed {
		q.Remove()
	}
}

// RemoveFromLeftBuffer removes every queue from other to m.
func (m *Module) RemoveFromLeftBuffer(other *Module) {
	m.mu.Lock()
	var doomed []*Queue
	for _, q := range m.leftBuffers {
		if q.provider == other {
			doomed = append(doomed, q)
		}
	}
	m.mu.Unlock()
	for _, q := range doomed {
		q.Remove()
	}
}

// Remove detaches every queue on both sides of m.
func (m *Module) Remove() {
	m.mu.Lock()
	qs := append(append([]*Queue(nil), m.leftBuffers...), m.rightBuffers...)
	m.mu.Unlock()
	for _, q := range qs {
		q.Remove()
	}
}

// CreateIU builds the module's declared output IU, wired into its
// previous-IU chain. Callers must not discard the result: it is already
// linked as this module's latest IU, and discarding it would not undo
// that link.
func (m *Module) CreateIU(groundedIn core.IU) (core.IU, error) {
	if m.newOutputIU == nil {
		return nil, errors.ConfigErrorf("create_iu", "module %q has no output IU factory configured", m.name)
	}
	id := atomic.AddUint64(&m.iuCounter, 1)
	iuid := fmt.Sprintf("%s:%d", m.Identity(), id)

	m.mu.Lock()
	prev := m.previousIU
	m.mu.Unlock()

	newIU := m.newOutputIU(m, iuid, prev, groundedIn)

	m.mu.Lock()
	m.previousIU = newIU
	m.mu.Unlock()

	return newIU, nil
}

// CurrentInput and CurrentOutput expose the revoke/commit tracking lists.
// The runtime never populates these automatically; a module's Process hook
// manages them the way it manages any other local state.
func (m *Module) CurrentInput() []core.IU {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.IU(nil), m.currentInput...)
}

func (m *Module) SetCurrentInput(ius []core.IU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentInput = append([]core.IU(nil), ius...)
}

func (m *Module) AppendCurrentInput(iu core.IU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentInput = append(m.currentInput, iu)
}

func (m *Module) CurrentOutput() []core.IU {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.IU(nil), m.currentOutput...)
}

func (m *Module) SetCurrentOutput(ius []core.IU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentOutput = append([]core.IU(nil), ius...)
}

func (m *Module) AppendCurrentOutput(iu core.IU) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentOutput = append(m.currentOutput, iu)
}

// Revoke marks iu revoked if it is present in current_input or
// current_output, optionally dropping it from whichever list(s) held it.
// It reports whether a match was found.
func (m *Module) Revoke(iu core.IU, removeRevoked bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	foundIn, remainingIn := extractMatch(m.currentInput, iu, removeRevoked)
	foundOut, remainingOut := extractMatch(m.currentOutput, iu, removeRevoked)
	if removeRevoked {
		m.currentInput = remainingIn
		m.currentOutput = remainingOut
	}
	if foundIn || foundOut {
		iu.SetRevoked(true)
		if m.metrics != nil {
			m.metrics.IUsRevoked.WithLabelValues(m.name).Inc()
		}
		return true
	}
	return false
}

// Commit marks iu committed if it is present in current_input or
// current_output. Unlike Revoke it never removes the IU from its list.
func (m *Module) Commit(iu core.IU) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	found, _ := extractMatch(m.currentInput, iu, false)
	if !found {
		found, _ = extractMatch(m.currentOutput, iu, false)
	}
	if found {
		iu.SetCommitted(true)
		if m.metrics != nil {
			m.metrics.IUsCommitted.WithLabelValues(m.name).Inc()
		}
	}
	return found
}

// InputCommitted reports whether every IU currently in current_input is
// committed. An empty current_input is vacuously true.
func (m *Module) InputCommitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.currentInput {
		if !u.Committed() {
			return false
		}
	}
	return true
}

func extractMatch(list []core.IU, target core.IU, remove bool) (bool, []core.IU) {
	found := false
	if !remove {
		for _, u := range list {
			if u.Equal(target) {
				found = true
				break
			}
		}
		return found, list
	}
	out := list[:0:0]
	for _, u := range list {
		if u.Equal(target) {
			found = true
			continue
		}
		out = append(out, u)
	}
	return found, out
}

// Setup runs the module's one-time setup hook, idempotent once the module
// has already reached Setup or Running.
func (m *Module) Setup() error {
	m.mu.Lock()
	if m.state == StateSetup || m.state == StateRunning {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if m.setupFunc != nil {
		if err := m.setupFunc(m); err != nil {
			return errors.ModuleErrorf("setup", err, "module %q setup failed", m.name)
		}
	}

	m.mu.Lock()
	m.state = StateSetup
	m.mu.Unlock()
	return nil
}

// Run transitions the module to Running: it clears every right buffer,
// runs prepare_run, and spawns the worker goroutine appropriate to its
// Kind. When runSetup is true, Setup is called first.
func (m *Module) Run(runSetup bool) error {
	if runSetup {
		if err := m.Setup(); err != nil {
			return err
		}
	}

	if m.prepareRunFunc != nil {
		if err := m.prepareRunFunc(m); err != nil {
			return errors.ModuleErrorf("prepare_run", err, "module %q prepare_run failed", m.name)
		}
	}

	m.mu.Lock()
	for _, q := range m.rightBuffers {
		q.Clear()
	}
	m.running = true
	m.state = StateRunning
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		switch m.kind {
		case KindProducing:
			m.runProducing()
		case KindTrigger:
			m.runTrigger()
		default:
			m.runGeneral()
		}
		m.runShutdown()
	}()

	if m.bus != nil {
		m.bus.Call(events.EventStart, m)
	}
	return nil
}

// Stop clears the running flag; the worker observes it at its next
// iteration and shuts down on its own. Stop does not block — call Wait if
// the caller needs to observe the shutdown hook's result.
func (m *Module) Stop(clearBuffer bool) {
	m.mu.Lock()
	m.running = false
	if clearBuffer {
		for _, q := range m.rightBuffers {
			q.Clear()
		}
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Call(events.EventStop, m)
	}
}

// Wait blocks until the worker goroutine has returned and shutdown has run.
func (m *Module) Wait() { m.wg.Wait() }

// ShutdownErr returns the error (if any) the shutdown hook returned the
// last time the worker stopped.
func (m *Module) ShutdownErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownErr
}

func (m *Module) runShutdown() {
	var err error
	if m.shutdownFunc != nil {
		err = m.shutdownFunc(m)
	}
	m.mu.Lock()
	m.state = StateStopped
	m.shutdownErr = err
	m.mu.Unlock()
}

// haltFatal stops the worker in response to a type violation or a
// process_update hook error it cannot recover from, and records the
// termination in metrics.
func (m *Module) haltFatal(reason error) {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	logger.Error("module %q halted: %v", m.name, reason)
	if m.metrics != nil {
		m.metrics.WorkerRestarts.WithLabelValues(m.name).Inc()
	}
}

// fanOut validates out against the module's declared output class (when
// one is set) and delivers an independent copy to every right buffer.
func (m *Module) fanOut(out *core.UpdateMessage) error {
	if out == nil || out.Len() == 0 {
		return nil
	}
	if m.outputClass != nil && !out.HasValidIUs([]core.IUClass{m.outputClass}) {
		return errors.TypeErrorf("fan_out", "module %q produced an IU outside its declared output class", m.name)
	}
	for _, q := range m.RightBuffers() {
		q.Put(out)
	}
	return nil
}

// runGeneral is the worker loop shared by general and consuming modules:
// poll every left buffer in order, process what arrives, fan out what
// comes back.
func (m *Module) runGeneral() {
	for m.isRunning() {
		buffers := m.LeftBuffers()
		if len(buffers) == 0 {
			time.Sleep(m.pollTimeout)
			continue
		}
		for _, q := range buffers {
			if !m.isRunning() {
				return
			}
			msg, ok := q.Get(m.pollTimeout)
			if !ok {
				continue
			}

			out, err := m.handle(msg)
			if err != nil {
				m.haltFatal(err)
				return
			}
			if err := m.fanOut(out); err != nil {
				m.haltFatal(err)
				return
			}
		}
	}
}

// handle runs steps 2-4 of the worker loop under the lifecycle mutex:
// input validation, the Process hook, marking processed, and firing the
// per-IU and per-message events.
func (m *Module) handle(msg *core.UpdateMessage) (*core.UpdateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.inputClasses) > 0 && !msg.HasValidIUs(m.inputClasses) {
		return nil, errors.TypeErrorf("process_update", "module %q received an IU outside its declared input classes", m.name)
	}

	var out *core.UpdateMessage
	if m.processFunc != nil {
		var err error
		out, err = m.processFunc(m, msg)
		if err != nil {
			return nil, errors.ModuleErrorf("process_update", err, "module %q process_update failed", m.name)
		}
	}

	msg.SetProcessed(m)
	if m.bus != nil {
		for _, iu := range msg.IUs() {
			m.bus.Call(events.EventProcessIU, iu)
		}
		m.bus.Call(events.EventProcessUpdateMessage, msg)
	}
	if m.metrics != nil {
		m.metrics.IUsProcessed.WithLabelValues(m.name).Add(float64(msg.Len()))
	}
	return out, nil
}

// runProducing loops calling Process(nil) under the lifecycle mutex, with
// no input queues to poll. It yields only inside the Process hook itself.
func (m *Module) runProducing() {
	for m.isRunning() {
		m.mu.Lock()
		var out *core.UpdateMessage
		var err error
		if m.processFunc != nil {
			out, err = m.processFunc(m, nil)
		}
		m.mu.Unlock()

		if err != nil {
			m.haltFatal(errors.ModuleErrorf("process_update", err, "module %q process_update failed", m.name))
			return
		}
		if err := m.fanOut(out); err != nil {
			m.haltFatal(err)
			return
		}
	}
}

// runTrigger does nothing by itself beyond polling the running flag; all
// of a trigger module's output is produced synchronously by Trigger.
func (m *Module) runTrigger() {
	for m.isRunning() {
		time.Sleep(m.triggerPollInterval)
	}
}

// Trigger synchronously builds one IU via the module's TriggerFunc and
// fans it out as a single-pair update message. It is the only entry point
// that produces output on a trigger module.
func (m *Module) Trigger(data interface{}, ut core.UpdateType) error {
	if m.kind != KindTrigger {
		return errors.TopologyErrorf("trigger", "module %q is not a trigger module", m.name)
	}
	if m.triggerFunc == nil {
		return errors.ConfigErrorf("trigger", "module %q has no trigger hook configured", m.name)
	}

	m.mu.Lock()
	iu, err := m.triggerFunc(m, data)
	if err != nil {
		m.mu.Unlock()
		return errors.ModuleErrorf("trigger", err, "module %q trigger hook failed", m.name)
	}
	msg, err := core.FromIU(iu, ut)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.bus != nil {
		for _, u := range msg.IUs() {
			m.bus.Call(events.EventProcessIU, u)
		}
	}
	m.mu.Unlock()

	return m.fanOut(msg)
}
