package commands

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progressReporter draws a progress bar for a scan. The bar is created
// on the first update, once the number of files is known.
type progressReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w}
}

// Update reports that done of total files have been scanned.
func (p *progressReporter) Update(done, total int, _ string) {
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	_ = p.bar.Set(done)
}

// Finish clears the bar. It is a no-op when p is nil or nothing was drawn.
func (p *progressReporter) Finish() {
	if p == nil || p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
