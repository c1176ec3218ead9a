package tally

import (
	"fmt"
	"strings"
)

// Outcome is the terminal result of a single test.
// Values are declared in ascending order of severity.
type Outcome int

const (
	Success Outcome = iota
	Ignored
	Skipped
	Pending
	Compromised
	Failure
	Error
)

var outcomeNames = [...]string{
	Success:     "SUCCESS",
	Ignored:     "IGNORED",
	Skipped:     "SKIPPED",
	Pending:     "PENDING",
	Compromised: "COMPROMISED",
	Failure:     "FAILURE",
	Error:       "ERROR",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Severity returns the rank used when reducing several outcomes to one.
func (o Outcome) Severity() int {
	return int(o)
}

// IsFailing reports whether the outcome means the tested behaviour is broken.
func (o Outcome) IsFailing() bool {
	return o == Failure || o == Error
}

// ParseOutcome converts a case-insensitive outcome name into an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range outcomeNames {
		if n == name {
			return Outcome(i), nil
		}
	}
	return Success, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText implements encoding.TextMarshaler so outcomes serialize by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	parsed, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Reduce collapses a set of outcomes into the most severe one.
// The second return value is false when outcomes is empty.
func Reduce(outcomes []Outcome) (Outcome, bool) {
	if len(outcomes) == 0 {
		return Success, false
	}
	worst := outcomes[0]
	for _, o := range outcomes[1:] {
		if o.Severity() > worst.Severity() {
			worst = o
		}
	}
	return worst, true
}
