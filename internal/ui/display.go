package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"minuteman/internal/disk"
	"minuteman/internal/wipe"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("241"))

	rowStyle = lipgloss.NewStyle().
			PaddingRight(2)

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	verifyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	legendStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true).
			MarginTop(1)
)

var (
	diskWidths   = []int{4, 12, 10, 28, 18, 10, 10}
	methodWidths = []int{12, 56, 8, 8, 40}
)

// DisplayDisks prints the inventory as a table.
func DisplayDisks(out io.Writer, disks []disk.Disk) {
	fmt.Fprintln(out, titleStyle.Render("External Drives"))
	if len(disks) == 0 {
		fmt.Fprintln(out, legendStyle.Render("No removable drives found."))
		return
	}

	headers := []string{"ID", "Device", "Type", "Model", "Serial", "Size", "Free"}
	fmt.Fprintln(out, makeRow(headers, headerStyle, diskWidths))

	for i, d := range disks {
		size := d.SizeBytes
		if size == 0 {
			size = d.TotalSpace
		}
		row := []string{
			fmt.Sprintf("%d", i+1),
			d.DevicePath,
			typeStyle.Render(d.Type.String()),
			truncate(d.Label(), 26),
			truncate(d.SerialNumber, 16),
			sizeStyle.Render(FormatBytes(int64(size))),
			FormatBytes(int64(d.FreeSpace)),
		}
		fmt.Fprintln(out, makeRow(row, rowStyle, diskWidths))
		for _, p := range d.Partitions {
			fmt.Fprintln(out, legendStyle.UnsetMarginTop().Render(fmt.Sprintf("      %s on %s (%s, %s free)",
				p.Name, p.MountPoint, p.FileSystem, FormatBytes(int64(p.Free)))))
		}
	}
}

// DisplayMethods prints the sanitization methods with their pass plans.
func DisplayMethods(out io.Writer, methods []wipe.Method) {
	fmt.Fprintln(out, titleStyle.Render("Sanitization Methods"))

	headers := []string{"Key", "Name", "Rounds", "Verify", "Passes"}
	fmt.Fprintln(out, makeRow(headers, headerStyle, methodWidths))

	for _, m := range methods {
		plan := make([]string, len(m.Passes))
		for i, p := range m.Passes {
			plan[i] = p.Pattern.String()
			if p.Verify {
				plan[i] += "+v"
			}
		}
		row := []string{
			m.Key,
			m.Name,
			fmt.Sprintf("%d", m.Rounds()),
			verifyStyle.Render(fmt.Sprintf("%d", m.VerifyCount())),
			truncate(strings.Join(plan, ","), 40),
		}
		fmt.Fprintln(out, makeRow(row, rowStyle, methodWidths))
	}
	fmt.Fprintln(out, legendStyle.Render("+v: pass is read back and compared before the next round"))
}

func makeRow(cols []string, style lipgloss.Style, widths []int) string {
	styled := make([]string, len(cols))
	for i, col := range cols {
		if i < len(widths) {
			styled[i] = style.Render(lipgloss.NewStyle().Width(widths[i]).Render(col))
		} else {
			styled[i] = style.Render(col)
		}
	}
	return strings.Join(styled, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
