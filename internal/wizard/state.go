package wizard

import (
	"context"
	"errors"

	"minuteman/internal/disk"
	"minuteman/internal/logging"
	"minuteman/internal/wipe"
)

var (
	// ErrInvalidTransition is returned for a command the current screen does
	// not accept. Callers are expected to ignore it.
	ErrInvalidTransition = errors.New("command not valid on this screen")
	// ErrNoSelection is returned when advancing without a selected item.
	ErrNoSelection = errors.New("nothing selected")
	// ErrJobRunning is returned for back or quit while a job is running.
	ErrJobRunning = errors.New("sanitization in progress")
)

// Screen is one step of the wizard
type Screen int

const (
	SelectDrive Screen = iota
	SelectMethod
	Confirm
	Deleting
	Verifying
	Complete
	Error
)

var screenTitles = []string{
	"Select Drive",
	"Select Deletion Method",
	"Confirm",
	"Deletion In Progress",
	"Verify In Progress",
	"Complete",
	"Error",
}

func (s Screen) String() string {
	if s < 0 || int(s) >= len(screenTitles) {
		return "Unknown"
	}
	return screenTitles[s]
}

// Titles lists every screen title in order, for tab headers.
func Titles() []string {
	return append([]string(nil), screenTitles...)
}

// Confirmation options, in toggle order.
const (
	ConfirmNo  = 0
	ConfirmYes = 1
)

// Inventory rebuilds the drive list.
type Inventory interface {
	Build() []disk.Disk
}

// Runner starts sanitization jobs in the background.
type Runner interface {
	Start(ctx context.Context, d disk.Disk, m wipe.Method) (*wipe.Job, error)
	Simulated() bool
}

// Wizard holds the navigation state shared by the renderer and the input
// loop. Commands must be issued from one goroutine.
type Wizard struct {
	ctx       context.Context
	inventory Inventory
	runner    Runner
	logger    *logging.Logger

	screen     Screen
	drives     []disk.Disk
	driveIdx   int
	methods    []wipe.Method
	methodIdx  int
	confirmIdx int

	job     *wipe.Job
	last    wipe.Snapshot
	message string
	quit    bool
}

// New builds the initial drive list and starts on SelectDrive with nothing
// selected. ctx bounds every job the wizard starts.
func New(ctx context.Context, inventory Inventory, runner Runner, methods []wipe.Method, logger *logging.Logger) *Wizard {
	w := &Wizard{
		ctx:       ctx,
		inventory: inventory,
		runner:    runner,
		logger:    logger,
		methods:   methods,
	}
	w.reset()
	return w
}

func (w *Wizard) reset() {
	w.screen = SelectDrive
	w.drives = w.inventory.Build()
	w.driveIdx = -1
	w.methodIdx = -1
	w.confirmIdx = ConfirmNo
	w.job = nil
	w.last = wipe.Snapshot{}
	w.message = ""
}

// running reports whether the current job has no outcome yet.
func (w *Wizard) running() bool {
	return w.job != nil && w.job.Running()
}

func (w *Wizard) moveTo(s Screen) {
	if s != w.screen {
		w.logger.Log("DEBUG", "Wizard transition", "from", w.screen, "to", s)
	}
	w.screen = s
}

// Advance is the "continue" command.
func (w *Wizard) Advance() error {
	switch w.screen {
	case SelectDrive:
		if w.driveIdx < 0 {
			return ErrNoSelection
		}
		w.moveTo(SelectMethod)
	case SelectMethod:
		if w.methodIdx < 0 {
			return ErrNoSelection
		}
		w.confirmIdx = ConfirmNo
		w.moveTo(Confirm)
	case Confirm:
		if w.confirmIdx != ConfirmYes {
			w.moveTo(SelectMethod)
			return nil
		}
		return w.start()
	case Deleting, Verifying:
		// Already running; nothing to restart.
	case Complete, Error:
		w.reset()
	}
	return nil
}

func (w *Wizard) start() error {
	d := w.drives[w.driveIdx]
	m := w.methods[w.methodIdx]
	job, err := w.runner.Start(w.ctx, d, m)
	if err != nil {
		w.logger.Log("ERROR", "Failed to start sanitization", "device", d.DevicePath, "error", err)
		w.message = wipe.Describe(err)
		w.moveTo(Error)
		return err
	}
	w.job = job
	w.last = job.Snapshot()
	w.message = ""
	w.moveTo(Deleting)
	return nil
}

// Retreat is the "back" command. It never interrupts a running job.
func (w *Wizard) Retreat() error {
	if w.running() {
		return ErrJobRunning
	}
	switch w.screen {
	case SelectMethod:
		w.moveTo(SelectDrive)
	case Confirm:
		w.job = nil
		w.moveTo(SelectMethod)
	case Complete, Error:
		w.reset()
	default:
		return ErrInvalidTransition
	}
	return nil
}

// SelectNext moves the highlighted drive or method down, wrapping.
func (w *Wizard) SelectNext() error {
	return w.step(1)
}

// SelectPrevious moves the highlighted drive or method up, wrapping.
func (w *Wizard) SelectPrevious() error {
	return w.step(-1)
}

func (w *Wizard) step(delta int) error {
	switch w.screen {
	case SelectDrive:
		w.driveIdx = wrap(w.driveIdx, delta, len(w.drives))
	case SelectMethod:
		w.methodIdx = wrap(w.methodIdx, delta, len(w.methods))
	default:
		return ErrInvalidTransition
	}
	return nil
}

// wrap moves i by delta inside [0, n). From no selection (-1) either
// direction selects the first item.
func wrap(i, delta, n int) int {
	if n == 0 {
		return -1
	}
	if i < 0 {
		return 0
	}
	return ((i+delta)%n + n) % n
}

// ToggleLeft flips the confirmation choice.
func (w *Wizard) ToggleLeft() error {
	return w.toggle()
}

// ToggleRight flips the confirmation choice.
func (w *Wizard) ToggleRight() error {
	return w.toggle()
}

func (w *Wizard) toggle() error {
	if w.screen != Confirm {
		return ErrInvalidTransition
	}
	w.confirmIdx = 1 - w.confirmIdx
	return nil
}

// Cancel asks the running job to stop. The outcome is picked up by Tick.
func (w *Wizard) Cancel() error {
	if !w.running() {
		return ErrInvalidTransition
	}
	w.logger.Log("WARN", "Cancellation requested", "job", w.job.ID(), "device", w.job.DevicePath())
	w.job.Cancel()
	return nil
}

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done is closed once the current job has reached an outcome and released
// its device. Without a job it is already closed.
func (w *Wizard) Done() <-chan struct{} {
	if w.job == nil {
		return closedDone
	}
	return w.job.Done()
}

// Quit marks the wizard for exit unless a job is running.
func (w *Wizard) Quit() error {
	if w.running() {
		return ErrJobRunning
	}
	w.quit = true
	return nil
}

// Rescan rebuilds the drive list while choosing a drive.
func (w *Wizard) Rescan() error {
	if w.screen != SelectDrive {
		return ErrInvalidTransition
	}
	w.drives = w.inventory.Build()
	w.driveIdx = -1
	return nil
}

// Tick polls the running job and moves to the matching screen.
func (w *Wizard) Tick() {
	if w.job == nil || (w.screen != Deleting && w.screen != Verifying) {
		return
	}
	snap := w.job.Snapshot()
	w.last = snap

	switch snap.Status {
	case wipe.StatusRunning:
		if snap.Phase == wipe.PhaseVerifying {
			w.moveTo(Verifying)
		} else {
			w.moveTo(Deleting)
		}
	case wipe.StatusSucceeded:
		w.message = snap.Method + " completed on " + snap.DevicePath
		w.moveTo(Complete)
	default:
		w.message = wipe.Describe(snap.Err)
		w.moveTo(Error)
	}
}

func (w *Wizard) Screen() Screen { return w.screen }

func (w *Wizard) Drives() []disk.Disk { return w.drives }

// DriveIndex is -1 when no drive is selected.
func (w *Wizard) DriveIndex() int { return w.driveIdx }

func (w *Wizard) Methods() []wipe.Method { return w.methods }

// MethodIndex is -1 when no method is selected.
func (w *Wizard) MethodIndex() int { return w.methodIdx }

func (w *Wizard) ConfirmIndex() int { return w.confirmIdx }

// SelectedDrive returns the highlighted drive, if any.
func (w *Wizard) SelectedDrive() (disk.Disk, bool) {
	if w.driveIdx < 0 || w.driveIdx >= len(w.drives) {
		return disk.Disk{}, false
	}
	return w.drives[w.driveIdx], true
}

// SelectedMethod returns the highlighted method, if any.
func (w *Wizard) SelectedMethod() (wipe.Method, bool) {
	if w.methodIdx < 0 || w.methodIdx >= len(w.methods) {
		return wipe.Method{}, false
	}
	return w.methods[w.methodIdx], true
}

// Progress returns the 0-based pass index, the pass count and the overall
// fraction as of the last Tick.
func (w *Wizard) Progress() (pass, count int, fraction float64) {
	return w.last.PassIndex, w.last.PassCount, w.last.Progress
}

// Job returns the snapshot taken at the last Tick.
func (w *Wizard) Job() wipe.Snapshot { return w.last }

// Message is the outcome text shown on Complete and Error.
func (w *Wizard) Message() string { return w.message }

func (w *Wizard) ShouldQuit() bool { return w.quit }

// Simulated reports whether jobs write to a stand-in device.
func (w *Wizard) Simulated() bool { return w.runner.Simulated() }
