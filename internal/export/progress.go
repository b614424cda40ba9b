package export

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress reports snapshot progress route by route.
type Progress interface {
	Start(total int)
	Step(route string)
	Finish()
}

// NewProgress returns a terminal progress bar, or plain line output when
// running under CI where carriage returns just clutter the log.
func NewProgress() Progress {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &lineProgress{}
	}
	return &barProgress{}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Exporting routes"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *barProgress) Step(route string) {
	if p.bar != nil {
		p.bar.Describe("Exporting " + route)
		_ = p.bar.Add(1)
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

type lineProgress struct {
	total int
	done  int
}

func (p *lineProgress) Start(total int) {
	p.total = total
	fmt.Fprintf(os.Stderr, "Exporting %d routes\n", total)
}

func (p *lineProgress) Step(route string) {
	p.done++
	fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", p.done, p.total, route)
}

func (p *lineProgress) Finish() {
	fmt.Fprintln(os.Stderr, "Export complete")
}

type nopProgress struct{}

func (nopProgress) Start(int)   {}
func (nopProgress) Step(string) {}
func (nopProgress) Finish()     {}
