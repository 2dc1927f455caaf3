package wizard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"minuteman/internal/disk"
	"minuteman/internal/logging"
	"minuteman/internal/rawio"
	"minuteman/internal/wipe"
)

type fakeInventory struct {
	disks  []disk.Disk
	builds int
}

func (f *fakeInventory) Build() []disk.Disk {
	f.builds++
	return append([]disk.Disk(nil), f.disks...)
}

// gate blocks device I/O until opened.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate(open bool) *gate {
	g := &gate{ch: make(chan struct{})}
	if open {
		g.open()
	}
	return g
}

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

type gatedDevice struct {
	rawio.Device
	writes, reads *gate
}

func (d *gatedDevice) Write(p []byte) (int, error) {
	<-d.writes.ch
	return d.Device.Write(p)
}

func (d *gatedDevice) Read(p []byte) (int, error) {
	<-d.reads.ch
	return d.Device.Read(p)
}

type gatedOpener struct {
	writes, reads *gate
}

func (o gatedOpener) Open(disk.Disk) (rawio.Device, int64, error) {
	return &gatedDevice{Device: rawio.NewMemDevice(16 * 1024), writes: o.writes, reads: o.reads}, 16 * 1024, nil
}

func (gatedOpener) Simulated() bool { return true }

// countingRunner records Start calls.
type countingRunner struct {
	*wipe.Engine
	starts int
}

func (r *countingRunner) Start(ctx context.Context, d disk.Disk, m wipe.Method) (*wipe.Job, error) {
	r.starts++
	return r.Engine.Start(ctx, d, m)
}

type fixture struct {
	w      *Wizard
	inv    *fakeInventory
	runner *countingRunner
	writes *gate
	reads  *gate
}

func newFixture(t *testing.T, methods ...wipe.Method) *fixture {
	t.Helper()
	if len(methods) == 0 {
		methods = wipe.Catalog()
	}
	f := &fixture{
		inv: &fakeInventory{disks: []disk.Disk{
			{DevicePath: "/dev/sdb", Model: "Cruzer"},
			{DevicePath: "/dev/sdc", Model: "DataTraveler"},
			{DevicePath: "/dev/sdd", Model: "Extreme"},
		}},
		writes: newGate(false),
		reads:  newGate(true),
	}
	t.Cleanup(f.writes.open)
	t.Cleanup(f.reads.open)
	engine := wipe.NewEngine(gatedOpener{writes: f.writes, reads: f.reads}, wipe.Options{ChunkSize: 4096}, logging.Discard())
	f.runner = &countingRunner{Engine: engine}
	f.w = New(context.Background(), f.inv, f.runner, methods, logging.Discard())
	return f
}

// toConfirm selects the first drive and first method.
func (f *fixture) toConfirm(t *testing.T) {
	t.Helper()
	steps := []func() error{f.w.SelectNext, f.w.Advance, f.w.SelectNext, f.w.Advance}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("navigation failed: %v", err)
		}
	}
	if f.w.Screen() != Confirm {
		t.Fatalf("screen = %s, want Confirm", f.w.Screen())
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.toConfirm(t)
	if err := f.w.ToggleRight(); err != nil {
		t.Fatalf("ToggleRight: %v", err)
	}
	if err := f.w.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.w.Screen() != Deleting {
		t.Fatalf("screen = %s, want Deleting", f.w.Screen())
	}
}

func (f *fixture) tickUntil(t *testing.T, want Screen) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		f.w.Tick()
		if f.w.Screen() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("screen = %s, never reached %s", f.w.Screen(), want)
}

func TestInitialState(t *testing.T) {
	f := newFixture(t)
	if f.w.Screen() != SelectDrive || f.w.DriveIndex() != -1 || f.w.MethodIndex() != -1 {
		t.Fatalf("unexpected initial state: %s %d %d", f.w.Screen(), f.w.DriveIndex(), f.w.MethodIndex())
	}
	if len(f.w.Drives()) != 3 || f.inv.builds != 1 {
		t.Fatalf("inventory not built once at start")
	}
	if !f.w.Simulated() {
		t.Fatalf("expected simulation mode")
	}
}

func TestAdvanceRequiresSelection(t *testing.T) {
	f := newFixture(t)
	if err := f.w.Advance(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("Advance without drive = %v", err)
	}
	if f.w.Screen() != SelectDrive {
		t.Fatalf("screen changed to %s", f.w.Screen())
	}

	f.w.SelectNext()
	if err := f.w.Advance(); err != nil || f.w.Screen() != SelectMethod {
		t.Fatalf("Advance with drive: %v, screen %s", err, f.w.Screen())
	}
	if err := f.w.Advance(); !errors.Is(err, ErrNoSelection) || f.w.Screen() != SelectMethod {
		t.Fatalf("Advance without method: %v, screen %s", err, f.w.Screen())
	}
}

func TestSelectionWraps(t *testing.T) {
	f := newFixture(t)

	f.w.SelectPrevious()
	if f.w.DriveIndex() != 0 {
		t.Fatalf("first move should select index 0, got %d", f.w.DriveIndex())
	}
	f.w.SelectPrevious()
	if f.w.DriveIndex() != 2 {
		t.Fatalf("previous from 0 = %d, want 2", f.w.DriveIndex())
	}
	f.w.SelectNext()
	if f.w.DriveIndex() != 0 {
		t.Fatalf("next from 2 = %d, want 0", f.w.DriveIndex())
	}

	f.w.Advance()
	for i := 0; i < len(f.w.Methods())+1; i++ {
		f.w.SelectNext()
	}
	if f.w.MethodIndex() != 0 {
		t.Fatalf("method index = %d after a full cycle", f.w.MethodIndex())
	}
	if f.w.DriveIndex() != 0 {
		t.Fatalf("method navigation moved the drive selection")
	}
}

func TestSelectionOutsideListsIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.toConfirm(t)
	if err := f.w.SelectNext(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("SelectNext on Confirm = %v", err)
	}
	if f.w.MethodIndex() != 0 {
		t.Fatalf("selection changed on Confirm")
	}
}

func TestToggleOnlyOnConfirm(t *testing.T) {
	f := newFixture(t)
	if err := f.w.ToggleRight(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("toggle on SelectDrive = %v", err)
	}
	f.toConfirm(t)

	tests := []struct {
		toggle func() error
		want   int
	}{
		{f.w.ToggleRight, ConfirmYes},
		{f.w.ToggleRight, ConfirmNo},
		{f.w.ToggleLeft, ConfirmYes},
		{f.w.ToggleLeft, ConfirmNo},
	}
	for i, tt := range tests {
		if err := tt.toggle(); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if f.w.ConfirmIndex() != tt.want {
			t.Fatalf("toggle %d: index %d, want %d", i, f.w.ConfirmIndex(), tt.want)
		}
	}
}

func TestDeclineReturnsToMethodWithoutJob(t *testing.T) {
	f := newFixture(t)
	f.toConfirm(t)
	if err := f.w.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if f.w.Screen() != SelectMethod || f.runner.starts != 0 {
		t.Fatalf("screen %s, starts %d", f.w.Screen(), f.runner.starts)
	}
}

func TestRetreat(t *testing.T) {
	f := newFixture(t)
	if err := f.w.Retreat(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Retreat on SelectDrive = %v", err)
	}
	f.toConfirm(t)
	f.w.Retreat()
	if f.w.Screen() != SelectMethod {
		t.Fatalf("Retreat from Confirm = %s", f.w.Screen())
	}
	f.w.Retreat()
	if f.w.Screen() != SelectDrive {
		t.Fatalf("Retreat from SelectMethod = %s", f.w.Screen())
	}
}

func TestRunningJobBlocksRetreatAndQuit(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.w.Tick()
	pass, count, progress := f.w.Progress()

	if err := f.w.Retreat(); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("Retreat while running = %v", err)
	}
	if err := f.w.Quit(); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("Quit while running = %v", err)
	}
	if err := f.w.Advance(); err != nil {
		t.Fatalf("Advance while running = %v", err)
	}
	f.w.Tick()
	p2, c2, prog2 := f.w.Progress()
	if f.w.Screen() != Deleting || f.w.ShouldQuit() || f.runner.starts != 1 {
		t.Fatalf("state changed: screen %s quit %v starts %d", f.w.Screen(), f.w.ShouldQuit(), f.runner.starts)
	}
	if p2 != pass || c2 != count || prog2 != progress {
		t.Fatalf("progress changed while gated: %d/%d %f -> %d/%d %f", pass, count, progress, p2, c2, prog2)
	}

	f.writes.open()
	f.tickUntil(t, Complete)
	pass, count, progress = f.w.Progress()
	if pass != count || progress != 1 {
		t.Fatalf("final progress = %d/%d %f", pass, count, progress)
	}
	if !strings.Contains(f.w.Message(), "/dev/sdb") {
		t.Fatalf("message = %q", f.w.Message())
	}
	if err := f.w.Quit(); err != nil || !f.w.ShouldQuit() {
		t.Fatalf("Quit after completion: %v", err)
	}
}

func TestVerifyPhaseShowsVerifyingScreen(t *testing.T) {
	dod, _ := wipe.FindMethod(wipe.Catalog(), "dod")
	f := newFixture(t, dod)
	f.reads = newGate(false)
	t.Cleanup(f.reads.open)
	engine := wipe.NewEngine(gatedOpener{writes: f.writes, reads: f.reads}, wipe.Options{ChunkSize: 4096}, logging.Discard())
	f.runner = &countingRunner{Engine: engine}
	f.w = New(context.Background(), f.inv, f.runner, []wipe.Method{dod}, logging.Discard())

	f.start(t)
	f.writes.open()
	f.tickUntil(t, Verifying)
	if pass, count, _ := f.w.Progress(); pass != 0 || count != 3 {
		t.Fatalf("progress = %d/%d, want 0/3", pass, count)
	}
	f.reads.open()
	f.tickUntil(t, Complete)
}

func TestCancelLeadsToErrorAndReset(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if err := f.w.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	f.writes.open()
	f.tickUntil(t, Error)

	if _, _, progress := f.w.Progress(); progress >= 1 {
		t.Fatalf("cancelled job reported progress %f", progress)
	}
	if !strings.Contains(f.w.Message(), "cancelled") {
		t.Fatalf("message = %q", f.w.Message())
	}
	if err := f.w.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Cancel after finish = %v", err)
	}

	if err := f.w.Advance(); err != nil {
		t.Fatalf("Advance from Error: %v", err)
	}
	if f.w.Screen() != SelectDrive || f.inv.builds != 2 || f.w.DriveIndex() != -1 {
		t.Fatalf("reset: screen %s builds %d drive %d", f.w.Screen(), f.inv.builds, f.w.DriveIndex())
	}
	if f.w.Job().JobID != "" {
		t.Fatalf("job not cleared on reset")
	}
}

func TestStartFailureMovesToError(t *testing.T) {
	f := newFixture(t)
	other, err := f.runner.Engine.Start(context.Background(), disk.Disk{DevicePath: "/dev/sdb"}, wipe.Catalog()[0])
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer other.Cancel()

	f.toConfirm(t)
	f.w.ToggleLeft()
	if err := f.w.Advance(); !errors.Is(err, wipe.ErrDeviceBusy) {
		t.Fatalf("Advance on busy device = %v", err)
	}
	if f.w.Screen() != Error || !strings.HasPrefix(f.w.Message(), "Device busy") {
		t.Fatalf("screen %s, message %q", f.w.Screen(), f.w.Message())
	}
	if err := f.w.Retreat(); err != nil || f.w.Screen() != SelectDrive {
		t.Fatalf("Retreat from Error: %v, %s", err, f.w.Screen())
	}
}

func TestRescan(t *testing.T) {
	f := newFixture(t)
	f.w.SelectNext()
	f.inv.disks = f.inv.disks[:1]
	if err := f.w.Rescan(); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(f.w.Drives()) != 1 || f.w.DriveIndex() != -1 {
		t.Fatalf("rescan left %d drives, index %d", len(f.w.Drives()), f.w.DriveIndex())
	}
	f.w.SelectNext()
	f.w.Advance()
	if err := f.w.Rescan(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Rescan on SelectMethod = %v", err)
	}
}

func TestEmptyInventory(t *testing.T) {
	f := newFixture(t)
	f.inv.disks = nil
	f.w.Rescan()
	f.w.SelectNext()
	if f.w.DriveIndex() != -1 {
		t.Fatalf("selection on empty list = %d", f.w.DriveIndex())
	}
	if err := f.w.Advance(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("Advance = %v", err)
	}
}

func TestScreenTitles(t *testing.T) {
	if Deleting.String() != "Deletion In Progress" || Screen(42).String() != "Unknown" {
		t.Fatalf("unexpected titles")
	}
	if len(Titles()) != int(Error)+1 {
		t.Fatalf("titles = %v", Titles())
	}
}
