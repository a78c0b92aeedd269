package output

import (
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/term"
)

const progressTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// getUpdateInterval returns the bar refresh interval based on OS.
// Windows terminals have higher latency with ANSI sequences.
func getUpdateInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// ProgressObserver draws one progress bar per upload. It satisfies the
// session's transfer observer so bars follow the bytes actually sent.
type ProgressObserver struct {
	writer    io.Writer
	enabled   bool
	termWidth int

	mu   sync.Mutex
	bars map[string]*pb.ProgressBar
}

// NewProgressObserver creates an observer writing to writer. Bars are only
// drawn when writer is a terminal, unless force is set.
func NewProgressObserver(writer io.Writer, force bool) *ProgressObserver {
	if writer == nil {
		writer = os.Stderr
	}

	o := &ProgressObserver{
		writer:  writer,
		enabled: force,
		bars:    make(map[string]*pb.ProgressBar),
	}

	if file, ok := writer.(*os.File); ok {
		fd := int(file.Fd())
		if term.IsTerminal(fd) {
			o.enabled = true
			if width, _, err := term.GetSize(fd); err == nil && width > 0 {
				o.termWidth = width
			}
		}
	}
	// Default to 120 if we couldn't detect (pipe, redirect, etc.)
	if o.termWidth == 0 {
		o.termWidth = 120
	}

	return o
}

// Enabled reports whether bars are drawn
func (o *ProgressObserver) Enabled() bool {
	return o.enabled
}

// Begin starts a bar for name and returns r wrapped in a proxy that
// advances it
func (o *ProgressObserver) Begin(name string, size int64, r io.Reader) io.Reader {
	if !o.enabled {
		return r
	}

	bar := pb.New64(size).
		SetTemplateString(progressTemplate).
		SetWriter(o.writer).
		SetWidth(o.termWidth).
		SetRefreshRate(getUpdateInterval()).
		Set(pb.Bytes, true).
		Set("prefix", truncateName(name, o.termWidth/3))

	o.mu.Lock()
	if old, ok := o.bars[name]; ok {
		old.Finish()
	}
	o.bars[name] = bar
	o.mu.Unlock()

	bar.Start()
	return bar.NewProxyReader(r)
}

// End finishes the bar started for name
func (o *ProgressObserver) End(name string, err error) {
	o.mu.Lock()
	bar, ok := o.bars[name]
	delete(o.bars, name)
	o.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		bar.SetErr(err)
	}
	bar.Finish()
}

// Active returns the number of bars currently running
func (o *ProgressObserver) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.bars)
}

// truncateName shortens name to max runes, keeping its tail
func truncateName(name string, max int) string {
	runes := []rune(name)
	if max < 4 || len(runes) <= max {
		return name
	}
	return "..." + string(runes[len(runes)-max+3:])
}
