package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tcell "github.com/gdamore/tcell/v2"

	"minuteman/internal/logging"
	"minuteman/internal/wizard"
)

type lineKind int

const (
	kindPlain lineKind = iota
	kindTitle
	kindSelected
	kindDim
	kindAlert
	kindGood
	kindBanner
)

type line struct {
	text string
	kind lineKind
}

var lineStyles = map[lineKind]tcell.Style{
	kindPlain:    tcell.StyleDefault,
	kindTitle:    tcell.StyleDefault.Bold(true),
	kindSelected: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite),
	kindDim:      tcell.StyleDefault.Foreground(tcell.ColorGray),
	kindAlert:    tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
	kindGood:     tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true),
	kindBanner:   tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow).Bold(true),
}

// RunWizard drives the wizard on screen until the operator quits or ctx is
// done. The screen must already be initialised; the caller owns Fini.
func RunWizard(ctx context.Context, screen tcell.Screen, w *wizard.Wizard, tick time.Duration, logger *logging.Logger) error {
	screen.SetStyle(tcell.StyleDefault)
	screen.Clear()

	events := make(chan tcell.Event)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		draw(screen, view(w))
		if w.ShouldQuit() {
			return nil
		}

		select {
		case <-ctx.Done():
			if err := w.Cancel(); err == nil {
				logger.Log("WARN", "Interrupted while sanitizing; waiting for the job to stop")
			}
			// The job stops before its next chunk; wait so the device is
			// closed and the report written before the caller exits.
			<-w.Done()
			return ctx.Err()
		case <-ticker.C:
			w.Tick()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				cmd := KeyToCommand(ev)
				if err := Dispatch(w, cmd); err != nil {
					logger.Log("DEBUG", "Command ignored", "command", cmd, "screen", w.Screen(), "reason", err)
				}
			case *tcell.EventResize:
				screen.Sync()
			}
		}
	}
}

func draw(screen tcell.Screen, lines []line) {
	screen.Clear()
	width, height := screen.Size()
	for y, l := range lines {
		if y >= height {
			break
		}
		style := lineStyles[l.kind]
		x := 0
		for _, ch := range l.text {
			if x >= width {
				break
			}
			screen.SetContent(x, y, ch, nil, style)
			x++
		}
		if l.kind == kindSelected || l.kind == kindBanner {
			for ; x < width; x++ {
				screen.SetContent(x, y, ' ', nil, style)
			}
		}
	}
	screen.Show()
}

func view(w *wizard.Wizard) []line {
	mode := "SIMULATION - no device is written"
	if !w.Simulated() {
		mode = "ARMED - selected device WILL be overwritten"
	}
	lines := []line{
		{"Minuteman  [" + mode + "]", kindBanner},
		{tabs(w.Screen()), kindDim},
		{"", kindPlain},
	}

	switch w.Screen() {
	case wizard.SelectDrive:
		lines = append(lines, driveLines(w)...)
	case wizard.SelectMethod:
		lines = append(lines, methodLines(w)...)
	case wizard.Confirm:
		lines = append(lines, confirmLines(w)...)
	case wizard.Deleting, wizard.Verifying:
		lines = append(lines, progressLines(w)...)
	case wizard.Complete:
		lines = append(lines, line{w.Message(), kindGood})
	case wizard.Error:
		lines = append(lines, line{w.Message(), kindAlert})
	}

	lines = append(lines, line{"", kindPlain}, line{help(w.Screen()), kindDim})
	return lines
}

func tabs(current wizard.Screen) string {
	titles := wizard.Titles()
	for i := range titles {
		if wizard.Screen(i) == current {
			titles[i] = "[" + titles[i] + "]"
		}
	}
	return strings.Join(titles, " | ")
}

func driveLines(w *wizard.Wizard) []line {
	drives := w.Drives()
	if len(drives) == 0 {
		return []line{{"No removable drives found. Insert one and press r to rescan.", kindAlert}}
	}

	lines := []line{{"Available Drives", kindTitle}}
	for i, d := range drives {
		size := d.SizeBytes
		if size == 0 {
			size = d.TotalSpace
		}
		text := fmt.Sprintf("%-12s %-28s %-10s %s", d.DevicePath, d.Label(), d.Type, FormatBytes(int64(size)))
		lines = append(lines, selectable(text, i == w.DriveIndex()))
	}

	if d, ok := w.SelectedDrive(); ok {
		lines = append(lines,
			line{"", kindPlain},
			line{"Drive Info", kindTitle},
			line{fmt.Sprintf("Serial: %s  Firmware: %s", d.SerialNumber, d.FirmwareVersion), kindPlain},
			line{fmt.Sprintf("Used: %s  Free: %s  Total: %s",
				FormatBytes(int64(d.UsedSpace)), FormatBytes(int64(d.FreeSpace)), FormatBytes(int64(d.TotalSpace))), kindPlain},
		)
		for _, p := range d.Partitions {
			ro := ""
			if p.ReadOnly {
				ro = " (read-only)"
			}
			lines = append(lines, line{fmt.Sprintf("  %s on %s type %s%s", p.Name, p.MountPoint, p.FileSystem, ro), kindDim})
		}
	}
	return lines
}

func methodLines(w *wizard.Wizard) []line {
	d, _ := w.SelectedDrive()
	lines := []line{{"Deletion Method for " + d.DevicePath, kindTitle}}
	for i, m := range w.Methods() {
		lines = append(lines, selectable(m.Name, i == w.MethodIndex()))
	}
	return lines
}

func confirmLines(w *wizard.Wizard) []line {
	d, _ := w.SelectedDrive()
	m, _ := w.SelectedMethod()

	no, yes := "  No  ", "  Yes  "
	if w.ConfirmIndex() == wizard.ConfirmYes {
		yes = "[ Yes ]"
	} else {
		no = "[ No ]"
	}
	return []line{
		{fmt.Sprintf("Erase ALL data on %s (%s)?", d.DevicePath, d.Label()), kindAlert},
		{"Method: " + m.Name, kindPlain},
		{"", kindPlain},
		{"    " + no + "    " + yes, kindTitle},
	}
}

func progressLines(w *wizard.Wizard) []line {
	s := w.Job()
	pass, count, fraction := w.Progress()
	round := pass + 1
	if round > count {
		round = count
	}
	return []line{
		{fmt.Sprintf("%s on %s", s.Method, s.DevicePath), kindTitle},
		{fmt.Sprintf("Round %d of %d (%s)", round, count, s.Phase), kindPlain},
		{ProgressBar(fraction, 50), kindGood},
		{fmt.Sprintf("Written: %s of %s per pass", FormatBytes(s.BytesWritten), FormatBytes(s.DeviceSize)), kindDim},
	}
}

func selectable(text string, selected bool) line {
	if selected {
		return line{"> " + text, kindSelected}
	}
	return line{"  " + text, kindPlain}
}

func help(s wizard.Screen) string {
	switch s {
	case wizard.SelectDrive:
		return "Up/Down: select  e: continue  r: rescan  q: quit"
	case wizard.SelectMethod:
		return "Up/Down: select  e: continue  c: back  q: quit"
	case wizard.Confirm:
		return "Left/Right: choose  e: continue  c: back  q: quit"
	case wizard.Deleting, wizard.Verifying:
		return "x: cancel (device is left partially overwritten)"
	default:
		return "e: start over  q: quit"
	}
}
