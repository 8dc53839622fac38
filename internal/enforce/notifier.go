package enforce

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/lotekdan/extguard/internal/logging"
)

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Armed(string, time.Duration)     {}
func (NopNotifier) Countdown(string, time.Duration) {}
func (NopNotifier) Closed(string, int)              {}

// ConsoleNotifier prints a colored countdown to a terminal.
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier writes to w, or stdout when w is nil.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleNotifier{out: w}
}

func (n *ConsoleNotifier) Armed(browser string, countdown time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	color.New(color.FgRed, color.Bold).Fprintf(n.out,
		"[!] Required extension is disabled in %s. %s will close in %s.\n", browser, browser, countdown)
}

func (n *ConsoleNotifier) Countdown(browser string, remaining time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	color.New(color.FgYellow).Fprintf(n.out, "[*] %s closing in %s\n", browser, remaining.Round(time.Second))
}

func (n *ConsoleNotifier) Closed(browser string, killed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	color.New(color.FgGreen).Fprintf(n.out, "[+] %s closed (%d process(es))\n", browser, killed)
}

// LogNotifier writes cycle progress to the log, every 5s of countdown.
type LogNotifier struct {
	Log *logging.Logger
}

func (n LogNotifier) Armed(browser string, countdown time.Duration) {
	n.Log.Warnf("%s will close in %s", browser, countdown)
}

func (n LogNotifier) Countdown(browser string, remaining time.Duration) {
	if remaining%(5*time.Second) == 0 {
		n.Log.Infof("%s closing in %s", browser, remaining)
	}
}

func (n LogNotifier) Closed(browser string, killed int) {
	n.Log.Infof("%s closed (%d process(es))", browser, killed)
}

// Multi fans out to several notifiers.
type Multi []Notifier

func (m Multi) Armed(browser string, countdown time.Duration) {
	for _, n := range m {
		n.Armed(browser, countdown)
	}
}

func (m Multi) Countdown(browser string, remaining time.Duration) {
	for _, n := range m {
		n.Countdown(browser, remaining)
	}
}

func (m Multi) Closed(browser string, killed int) {
	for _, n := range m {
		n.Closed(browser, killed)
	}
}
