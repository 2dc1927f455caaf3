package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uilive"

	"minuteman/internal/wipe"
)

// LiveProgress redraws a block of status lines in place.
type LiveProgress struct {
	writer *uilive.Writer
	start  time.Time
}

func NewLiveProgress(out io.Writer) *LiveProgress {
	w := uilive.New()
	w.Out = out
	w.Start()
	return &LiveProgress{writer: w, start: time.Now()}
}

// Copy shows raw copy progress.
func (p *LiveProgress) Copy(copied, total int64) {
	elapsed := time.Since(p.start)
	fraction := 0.0
	if total > 0 {
		fraction = float64(copied) / float64(total)
	}
	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(copied) / secs
	}

	fmt.Fprintf(p.writer, "Copied: %s of %s (%.1f%%)\n", FormatBytes(copied), FormatBytes(total), fraction*100)
	fmt.Fprintf(p.writer, "Elapsed Time: %s\n", elapsed.Truncate(time.Second))
	fmt.Fprintf(p.writer, "Estimated Time: %s\n", FormatETA(elapsed, fraction))
	fmt.Fprintf(p.writer, "Read Speed: %s\n", FormatSpeed(speed))
}

// Wipe shows a sanitization snapshot.
func (p *LiveProgress) Wipe(s wipe.Snapshot) {
	elapsed := time.Since(p.start)
	speed := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		speed = float64(s.TotalWritten) / secs
	}

	fmt.Fprintf(p.writer, "Round %d of %d (%s): %s\n", s.Round(), s.PassCount, s.Phase, ProgressBar(s.Progress, 40))
	fmt.Fprintf(p.writer, "Written: %s  Elapsed: %s  ETA: %s  Speed: %s\n",
		FormatBytes(s.TotalWritten), elapsed.Truncate(time.Second), FormatETA(elapsed, s.Progress), FormatSpeed(speed))
}

// Stop flushes the last update and releases the terminal lines.
func (p *LiveProgress) Stop() {
	p.writer.Stop()
}

// ProgressBar renders fraction as a fixed-width text bar.
func ProgressBar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '-'
		}
	}
	return fmt.Sprintf("[%s] %5.1f%%", string(bar), fraction*100)
}
