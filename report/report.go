// Package report collects the findings of a test run and computes its verdict.
package report

import (
	"fmt"
)

// Severity of a single Finding. Only Pass and Fail are counted.
type Severity uint8

const (
	Pass Severity = iota
	Fail
	Warn
	Info
)

func (s Severity) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Warn:
		return "WARN"
	case Info:
		return "INFO"
	default:
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
}

// Finding is the outcome of one check.
type Finding struct {
	Severity Severity
	Message  string
}

// Sink receives every finding as soon as it is recorded.
type Sink interface {
	Record(f Finding)
}

// Report is an append only list of findings.
// It is not safe for concurrent use; a run records into it sequentially.
type Report struct {
	findings []Finding
	sinks    []Sink
}

// New creates an empty report forwarding all findings to sinks.
func New(sinks ...Sink) *Report {
	return &Report{sinks: sinks}
}

// Add records f.
func (r *Report) Add(f Finding) {
	r.findings = append(r.findings, f)
	for _, s := range r.sinks {
		s.Record(f)
	}
}

// Passf records a passed check.
func (r *Report) Passf(format string, args ...interface{}) {
	r.Add(Finding{Severity: Pass, Message: fmt.Sprintf(format, args...)})
}

// Failf records a failed check.
func (r *Report) Failf(format string, args ...interface{}) {
	r.Add(Finding{Severity: Fail, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning. Warnings do not fail the run.
func (r *Report) Warnf(format string, args ...interface{}) {
	r.Add(Finding{Severity: Warn, Message: fmt.Sprintf(format, args...)})
}

// Infof records a diagnostic line which is not counted.
func (r *Report) Infof(format string, args ...interface{}) {
	r.Add(Finding{Severity: Info, Message: fmt.Sprintf(format, args...)})
}

// Findings returns a copy of all recorded findings in order.
func (r *Report) Findings() []Finding {
	findings := make([]Finding, len(r.findings))
	copy(findings, r.findings)
	return findings
}

// Count returns how many findings with severity s were recorded.
func (r *Report) Count(s Severity) int {
	n := 0
	for _, f := range r.findings {
		if f.Severity == s {
			n++
		}
	}
	return n
}

// Summary computes the immutable result of everything recorded so far.
func (r *Report) Summary() Summary {
	return Summary{
		Passed:   r.Count(Pass),
		Failed:   r.Count(Fail),
		Warnings: r.Count(Warn),
	}
}

// Summary is the verdict of a run.
type Summary struct {
	Passed   int
	Failed   int
	Warnings int
}

// Total is the number of counted checks, warnings are not included.
func (s Summary) Total() int {
	return s.Passed + s.Failed
}

// PassRate returns the percentage of passed checks, or 0 if no check ran.
func (s Summary) PassRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total()) * 100
}

// Success is true if no check failed.
func (s Summary) Success() bool {
	return s.Failed == 0
}

// ExitCode maps the verdict to a process exit status.
func (s Summary) ExitCode() int {
	if s.Success() {
		return 0
	}
	return 1
}
