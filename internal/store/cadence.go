package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CadenceKind describes the normalized kind of a cadence string.
type CadenceKind int

const (
	CadenceRealtime CadenceKind = iota
	CadenceHourly
	CadenceDaily
	CadenceInterval
	CadenceCron
)

// Cadence governs how soon a job becomes eligible again after a run.
//
// Supported forms:
//   - Named: "realtime" (5m), "hourly", "daily"
//   - Interval duration: "55m", "2h30m"
//   - Cron (wall-clock): "cron:0 7 * * *" or a raw 5-field expression
//
// Cron cadences are resolved once at parse time, not re-parsed per run.
type Cadence struct {
	Kind  CadenceKind
	Every time.Duration // interval kind only
	Spec  string        // cron kind only, original expression

	sched cron.Schedule
}

const realtimeInterval = 5 * time.Minute

// ParseCadence parses a cadence string.
func ParseCadence(raw string) (Cadence, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Cadence{}, fmt.Errorf("cadence required")
	}

	switch strings.ToLower(s) {
	case "realtime":
		return Cadence{Kind: CadenceRealtime}, nil
	case "hourly":
		return Cadence{Kind: CadenceHourly}, nil
	case "daily":
		return Cadence{Kind: CadenceDaily}, nil
	}

	expr := ""
	if strings.HasPrefix(strings.ToLower(s), "cron:") {
		expr = strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return Cadence{}, fmt.Errorf("cron cadence required after 'cron:'")
		}
	} else if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		// Whitespace or a leading '@' can only be a cron expression.
		expr = s
	}
	if expr != "" {
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return Cadence{}, fmt.Errorf("invalid cron cadence %q: %w", raw, err)
		}
		return Cadence{Kind: CadenceCron, Spec: expr, sched: sched}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return Cadence{}, fmt.Errorf(
			"invalid cadence %q (use realtime/hourly/daily, a duration like '55m', or 'cron:0 7 * * *')", raw)
	}
	if d <= 0 {
		return Cadence{}, fmt.Errorf("cadence interval must be > 0")
	}
	return Cadence{Kind: CadenceInterval, Every: d}, nil
}

// MustCadence is ParseCadence for static declarations; it panics on error.
func MustCadence(raw string) Cadence {
	c, err := ParseCadence(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Next computes the next eligibility time after now.
// The mapping is fixed and identical for successful and failed runs.
func (c Cadence) Next(now time.Time) time.Time {
	switch c.Kind {
	case CadenceRealtime:
		return now.Add(realtimeInterval)
	case CadenceHourly:
		return now.Add(time.Hour)
	case CadenceDaily:
		return now.Add(24 * time.Hour)
	case CadenceCron:
		if c.sched != nil {
			return c.sched.Next(now)
		}
		// Unresolved cron (zero value round-tripped without ParseCadence).
		if sched, err := cron.ParseStandard(c.Spec); err == nil {
			return sched.Next(now)
		}
		return now.Add(time.Hour)
	default:
		if c.Every > 0 {
			return now.Add(c.Every)
		}
		return now.Add(time.Hour)
	}
}

// String renders the cadence in its canonical parseable form.
func (c Cadence) String() string {
	switch c.Kind {
	case CadenceRealtime:
		return "realtime"
	case CadenceHourly:
		return "hourly"
	case CadenceDaily:
		return "daily"
	case CadenceCron:
		return "cron:" + c.Spec
	default:
		return c.Every.String()
	}
}

// MarshalText / UnmarshalText let Cadence round-trip through JSON configs
// and the jobs table as its canonical string.
func (c Cadence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Cadence) UnmarshalText(b []byte) error {
	parsed, err := ParseCadence(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
