// Package timer drives the irrigation countdown.
package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"greendrop/internal/command"
	"greendrop/internal/events"
	"greendrop/internal/logger"
	"greendrop/internal/models"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

var (
	ErrNotIdle         = errors.New("an irrigation run is already in progress")
	ErrNotRunning      = errors.New("no irrigation run in progress")
	ErrNotStopped      = errors.New("irrigation run has not stopped")
	ErrInvalidDuration = errors.New("invalid irrigation duration")
)

// Phases of a run.
const (
	PhaseIdle     = "idle"
	PhaseRunning  = "running"
	PhaseStopping = "stopping"
	PhaseStopped  = "stopped"
)

const (
	evStart  = "start"
	evResume = "resume"
	evStop   = "stop"
	evFinish = "finish"
	evAck    = "ack"
)

// RouteDevice is the view the UI returns to after a run.
const RouteDevice = "device"

// Commander sends valve commands.
type Commander interface {
	Send(ctx context.Context, cmd string) error
}

// Store persists the global timer record.
type Store interface {
	Save(ctx context.Context, st models.TimerState) error
}

// Publisher receives timer snapshots and navigation requests.
type Publisher interface {
	Publish(name string, payload any)
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Total     int
	Left      int // seconds remaining when the stop won
	StartedAt time.Time
	Manual    bool
}

// CompletionFunc runs once per stopped run.
type CompletionFunc func(ctx context.Context, s Summary)

type Options struct {
	Tick       time.Duration
	MinMinutes int
	MaxMinutes int
}

// Status is the controller view served to clients.
type Status struct {
	Phase string `json:"phase"`
	models.TimerState
	Progress int    `json:"progress"`
	Clock    string `json:"clock"`
}

type run struct {
	id        string
	startedAt time.Time
}

// Controller owns one countdown. The fsm only allows stop from running, which
// makes the stop sequence single-shot.
type Controller struct {
	mu     sync.Mutex
	fsm    *fsm.FSM
	state  models.TimerState
	run    run
	cancel context.CancelFunc

	opts      Options
	cmds      Commander
	store     Store
	pub       Publisher
	onStopped CompletionFunc
	log       *logger.Logger
	now       func() time.Time
}

func NewController(cmds Commander, store Store, pub Publisher, onStopped CompletionFunc, opts Options, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.MinMinutes <= 0 {
		opts.MinMinutes = 1
	}
	c := &Controller{
		opts:      opts,
		cmds:      cmds,
		store:     store,
		pub:       pub,
		onStopped: onStopped,
		log:       log.Named("timer"),
		now:       time.Now,
	}
	c.fsm = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: evStart, Src: []string{PhaseIdle}, Dst: PhaseRunning},
			{Name: evResume, Src: []string{PhaseIdle}, Dst: PhaseRunning},
			{Name: evStop, Src: []string{PhaseRunning}, Dst: PhaseStopping},
			{Name: evFinish, Src: []string{PhaseStopping}, Dst: PhaseStopped},
			{Name: evAck, Src: []string{PhaseStopped}, Dst: PhaseIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.log.Debugw("timer_transition", "event", e.Event, "from", e.Src, "to", e.Dst)
			},
		},
	)
	return c
}

// Start begins a run of minutes and asks the valve to open.
func (c *Controller) Start(ctx context.Context, minutes int) error {
	if minutes < c.opts.MinMinutes || (c.opts.MaxMinutes > 0 && minutes > c.opts.MaxMinutes) {
		return ErrInvalidDuration
	}
	total := minutes * 60

	c.mu.Lock()
	if err := c.fsm.Event(ctx, evStart); err != nil {
		c.mu.Unlock()
		return ErrNotIdle
	}
	runID := c.beginLocked(ctx, models.TimerState{Total: total, Left: total, Running: true})
	c.mu.Unlock()

	if err := c.cmds.Send(ctx, command.CmdIrrigationOn); err != nil {
		c.log.Warnw("irrigation_on_failed", "run_id", runID, "err", err)
	}
	c.log.Infow("irrigation_started", "run_id", runID, "total_sec", total)
	return nil
}

// Resume continues a persisted running timer without commanding the valve.
// Anything but a running record with time left is ignored.
func (c *Controller) Resume(ctx context.Context, st models.TimerState) error {
	if !st.Running || st.Left <= 0 || st.Total <= 0 {
		return nil
	}
	st.Left = min(st.Left, st.Total)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fsm.Event(ctx, evResume); err != nil {
		return ErrNotIdle
	}
	runID := c.beginLocked(ctx, st)
	c.log.Infow("irrigation_resumed", "run_id", runID, "left_sec", st.Left)
	return nil
}

// beginLocked publishes the first snapshot and starts ticking. Caller holds mu.
func (c *Controller) beginLocked(ctx context.Context, st models.TimerState) string {
	c.state = st
	c.run = run{id: uuid.NewString(), startedAt: c.now()}
	c.commitLocked(ctx)

	loopCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(loopCtx, c.run.id)
	return c.run.id
}

func (c *Controller) loop(ctx context.Context, runID string) {
	t := time.NewTicker(c.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.advance(runID) {
				if err := c.stop(context.Background(), false); err != nil && !errors.Is(err, ErrNotRunning) {
					c.log.Errorw("auto_stop", "run_id", runID, "err", err)
				}
				return
			}
		}
	}
}

// advance applies one tick to run runID and reports whether it hit zero.
func (c *Controller) advance(runID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.fsm.Is(PhaseRunning) || c.run.id != runID || c.state.Left <= 0 {
		return false
	}
	c.state.Left--
	c.commitLocked(context.Background())
	return c.state.Left == 0
}

// Stop ends the current run on operator request.
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx, true)
}

// stop runs the terminal sequence once per run: close the valve, stop
// ticking, publish the zero snapshot, report completion and send the UI
// back to the device view.
func (c *Controller) stop(ctx context.Context, manual bool) error {
	c.mu.Lock()
	if err := c.fsm.Event(ctx, evStop); err != nil {
		c.mu.Unlock()
		return ErrNotRunning
	}
	cancel := c.cancel
	c.cancel = nil
	summary := Summary{
		RunID:     c.run.id,
		Total:     c.state.Total,
		Left:      c.state.Left,
		StartedAt: c.run.startedAt,
		Manual:    manual,
	}
	c.mu.Unlock()

	if err := c.cmds.Send(ctx, command.CmdIrrigationOff); err != nil {
		c.log.Warnw("irrigation_off_failed", "run_id", summary.RunID, "err", err)
	}
	if cancel != nil {
		cancel()
	}

	c.mu.Lock()
	c.state = models.TimerState{Total: summary.Total, Left: 0, Running: false}
	c.commitLocked(ctx)
	c.mu.Unlock()

	if c.onStopped != nil {
		c.onStopped(ctx, summary)
	}
	c.pub.Publish(events.Navigate, events.NavigateEvent{Route: RouteDevice})

	c.mu.Lock()
	_ = c.fsm.Event(context.WithoutCancel(ctx), evFinish)
	c.mu.Unlock()

	c.log.Infow("irrigation_stopped", "run_id", summary.RunID, "manual", manual, "left_sec", summary.Left)
	return nil
}

// Acknowledge settles a stopped run back to idle so a new one can start.
func (c *Controller) Acknowledge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fsm.Is(PhaseIdle) {
		return nil
	}
	if err := c.fsm.Event(ctx, evAck); err != nil {
		return ErrNotStopped
	}
	return nil
}

// commitLocked writes the working copy to the global record and observers.
// Caller holds mu.
func (c *Controller) commitLocked(ctx context.Context) {
	snap := c.state
	if err := c.store.Save(context.WithoutCancel(ctx), snap); err != nil {
		c.log.Warnw("timer_persist_failed", "err", err)
	}
	c.pub.Publish(events.TimerSnapshot, snap)
}

// Phase returns the current state name.
func (c *Controller) Phase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fsm.Current()
}

// Status returns the phase with the display fields filled in.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Phase:      c.fsm.Current(),
		TimerState: c.state,
		Progress:   Progress(c.state.Total, c.state.Left),
		Clock:      FormatClock(c.state.Left),
	}
}

// Close stops ticking without ending the run; the persisted record stays
// running so the next process can Resume it.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
