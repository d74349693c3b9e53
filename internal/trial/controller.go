package trial

import (
	"sync"

	"go.uber.org/zap"
)

type eventKind int

const (
	eventValidKey eventKind = iota
	eventInvalidKey
	eventHideStimulus
	eventTimeout
	eventAbort
)

func (k eventKind) String() string {
	switch k {
	case eventValidKey:
		return "valid_key"
	case eventInvalidKey:
		return "invalid_key"
	case eventHideStimulus:
		return "hide_stimulus"
	case eventTimeout:
		return "timeout"
	case eventAbort:
		return "abort"
	default:
		return "unknown"
	}
}

type event struct {
	kind     eventKind
	response KeyResponse
}

// Controller runs a single keyboard-response trial. Every keyboard and timer
// callback is funneled through dispatch, which runs one event at a time to
// completion and drops everything that arrives after the trial ended.
type Controller struct {
	cfg  Config
	host Host
	log  *zap.Logger

	mu      sync.Mutex
	ended   bool
	rt      *float64
	key     *string
	invalid []InvalidResponse

	validListener   Handle
	invalidListener Handle

	result Result
	done   chan struct{}
}

// Run starts a trial on host and returns its controller. The result is
// delivered to host.Sink exactly once.
//
// The host's Listen and After must not invoke their callbacks synchronously.
func Run(cfg Config, host Host, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		cfg:     cfg,
		host:    host,
		log:     log,
		invalid: []InvalidResponse{},
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	host.Display.Show(cfg.Stimulus, cfg.Prompt)

	if !cfg.Choices.IsNone() {
		c.validListener = host.Keyboard.Listen(ListenOptions{
			Handler:      c.handler(eventValidKey),
			Keys:         cfg.Choices,
			TimingMethod: TimingPerformance,
			Persist:      false,
			AllowHeldKey: false,
		})
	}

	if invalid := cfg.invalidRouting(); !invalid.IsNone() {
		c.invalidListener = host.Keyboard.Listen(ListenOptions{
			Handler:      c.handler(eventInvalidKey),
			Keys:         invalid,
			TimingMethod: TimingPerformance,
			Persist:      true,
			AllowHeldKey: false,
		})
	}

	if cfg.StimulusDuration != nil {
		host.Scheduler.After(max(*cfg.StimulusDuration, 0), func() {
			c.dispatch(event{kind: eventHideStimulus})
		})
	}

	if cfg.TrialDuration != nil {
		host.Scheduler.After(max(*cfg.TrialDuration, 0), func() {
			c.dispatch(event{kind: eventTimeout})
		})
	}

	fields := []zap.Field{
		zap.String("choices", cfg.Choices.String()),
		zap.String("invalid_choices", cfg.InvalidChoices.String()),
		zap.Bool("response_ends_trial", cfg.ResponseEndsTrial),
	}
	if cfg.StimulusDuration != nil {
		fields = append(fields, zap.Duration("stimulus_duration", *cfg.StimulusDuration))
	}
	if cfg.TrialDuration != nil {
		fields = append(fields, zap.Duration("trial_duration", *cfg.TrialDuration))
	}
	c.log.Debug("Trial started", fields...)
	return c
}

func (c *Controller) handler(kind eventKind) func(KeyResponse) {
	return func(r KeyResponse) {
		c.dispatch(event{kind: kind, response: r})
	}
}

// Abort ends the trial immediately with whatever has been recorded so far.
// It is a no-op once the trial has ended.
func (c *Controller) Abort() {
	c.dispatch(event{kind: eventAbort})
}

// Done is closed after the result has been delivered to the sink.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Result returns the emitted result and whether the trial has ended.
func (c *Controller) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.ended
}

func (c *Controller) dispatch(ev event) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		c.log.Debug("Dropping event after trial end", zap.Stringer("event", ev.kind))
		return
	}

	finished := false
	switch ev.kind {
	case eventValidKey:
		finished = c.onValidResponse(ev.response)
	case eventInvalidKey:
		c.onInvalidResponse(ev.response)
	case eventHideStimulus:
		c.host.Display.HideStimulus()
	case eventTimeout, eventAbort:
		finished = true
	}

	var result Result
	if finished {
		result = c.end(ev.kind)
	}
	c.mu.Unlock()

	if finished {
		c.host.Sink.Finish(result)
		close(c.done)
	}
}

func (c *Controller) onValidResponse(r KeyResponse) bool {
	c.host.Display.MarkResponded()

	if c.key == nil {
		key, rt := r.Key, r.RT
		c.key, c.rt = &key, &rt
	}
	return c.cfg.ResponseEndsTrial
}

func (c *Controller) onInvalidResponse(r KeyResponse) {
	c.invalid = append(c.invalid, InvalidResponse{KeyPress: r.Key, RT: r.RT})
}

// end tears the trial down and freezes its result. Callers hold c.mu.
func (c *Controller) end(cause eventKind) Result {
	c.ended = true

	c.host.Scheduler.CancelAll()
	if c.validListener != nil {
		c.validListener.Cancel()
	}
	if c.invalidListener != nil {
		c.invalidListener.Cancel()
	}

	c.result = Result{
		RT:               c.rt,
		Stimulus:         c.cfg.Stimulus,
		KeyPress:         c.key,
		InvalidCount:     len(c.invalid),
		InvalidResponses: c.invalid,
	}
	c.host.Display.Clear()

	fields := []zap.Field{
		zap.Stringer("cause", cause),
		zap.Int("invalid_count", c.result.InvalidCount),
	}
	if c.key != nil {
		fields = append(fields, zap.String("key_press", *c.key), zap.Float64("rt", *c.rt))
	}
	c.log.Debug("Trial ended", fields...)
	return c.result
}
