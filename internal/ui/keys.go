package ui

import (
	tcell "github.com/gdamore/tcell/v2"

	"minuteman/internal/wizard"
)

// Command is an abstract wizard input.
type Command int

const (
	CmdNone Command = iota
	CmdAdvance
	CmdRetreat
	CmdNext
	CmdPrevious
	CmdLeft
	CmdRight
	CmdCancel
	CmdQuit
	CmdRescan
)

// KeyToCommand maps a key press to a wizard command.
func KeyToCommand(ev *tcell.EventKey) Command {
	switch ev.Key() {
	case tcell.KeyDown:
		return CmdNext
	case tcell.KeyUp:
		return CmdPrevious
	case tcell.KeyLeft:
		return CmdLeft
	case tcell.KeyRight:
		return CmdRight
	case tcell.KeyEnter:
		return CmdAdvance
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return CmdRetreat
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return CmdQuit
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'e', 'E':
			return CmdAdvance
		case 'c', 'C':
			return CmdRetreat
		case 'x', 'X':
			return CmdCancel
		case 'q', 'Q':
			return CmdQuit
		case 'r', 'R':
			return CmdRescan
		case 'j':
			return CmdNext
		case 'k':
			return CmdPrevious
		}
	}
	return CmdNone
}

// Dispatch applies cmd to the wizard. Refused commands come back as errors
// which the caller is free to ignore.
func Dispatch(w *wizard.Wizard, cmd Command) error {
	switch cmd {
	case CmdAdvance:
		return w.Advance()
	case CmdRetreat:
		return w.Retreat()
	case CmdNext:
		return w.SelectNext()
	case CmdPrevious:
		return w.SelectPrevious()
	case CmdLeft:
		return w.ToggleLeft()
	case CmdRight:
		return w.ToggleRight()
	case CmdCancel:
		return w.Cancel()
	case CmdQuit:
		return w.Quit()
	case CmdRescan:
		return w.Rescan()
	}
	return nil
}
