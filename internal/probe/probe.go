// Package probe answers capability questions that have no single
// authoritative query by running an ordered list of independent
// probes, each returning a tri-state answer, and short-circuiting on
// the first definitive one.
package probe

import (
	"log/slog"

	"github.com/1broseidon/xmirror/internal/xconn"
)

// Result is a probe's tri-state answer.
type Result int

const (
	Inconclusive Result = iota
	No
	Yes
)

func (r Result) String() string {
	switch r {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "inconclusive"
	}
}

// Probe is one pure, independently testable check.
type Probe struct {
	Name string
	Run  func(d *xconn.Display) Result
}

// Detect runs probes in order and returns the first definitive answer
// along with the deciding probe's name. All-inconclusive returns
// (Inconclusive, "").
func Detect(d *xconn.Display, probes []Probe, log *slog.Logger) (Result, string) {
	if log == nil {
		log = slog.Default()
	}
	for _, p := range probes {
		r := p.Run(d)
		log.Debug("probe", "name", p.Name, "result", r.String())
		if r != Inconclusive {
			return r, p.Name
		}
	}
	return Inconclusive, ""
}
