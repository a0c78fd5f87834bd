// Package identity assigns patient and OPD visit identifiers.
//
// Two patient id policies exist. Sequential ("P-1001", "P-1002", ...) is the default;
// time-based ("P" + six millisecond digits + one random digit) is what older terminals
// wrote and is kept only for clinics still issuing ids that way. The policy is fixed
// by configuration and never mixed within one process.
package identity

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Policy string

const (
	PolicySequential Policy = "sequential"
	PolicyTimeBased  Policy = "timebased"
)

// SequentialFloor is the implicit maximum when no P-<n> id exists yet.
const SequentialFloor = 1000

// maxAttempts bounds the collision retries for one assignment.
const maxAttempts = 10

var (
	// Ids past 18 digits are ignored so max+1 cannot overflow.
	sequentialPattern = regexp.MustCompile(`^P-(\d{1,18})$`)

	ErrUnknownPolicy = errors.New("unknown patient id policy")
	ErrExhausted     = errors.New("could not find a free identifier")
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicySequential, PolicyTimeBased:
		return Policy(s), nil
	case "":
		return PolicySequential, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Assigner produces identifiers. Clock and random source are injectable for tests.
//
// Every issued id stays reserved for ReservationTTL, long enough for the write to echo
// back into the mirror, so terminals saving in parallel within one process never draw
// the same id. Another process writing to the same store is not covered.
type Assigner struct {
	policy Policy
	now    func() time.Time
	digit  func() int

	mu       *sync.Mutex
	reserved map[string]time.Time
}

// ReservationTTL bounds how long an issued id is held back without its echo.
const ReservationTTL = 5 * time.Minute

func NewAssigner(policy Policy) *Assigner {
	return &Assigner{
		policy:   policy,
		now:      time.Now,
		digit:    func() int { return rand.Intn(10) },
		mu:       &sync.Mutex{},
		reserved: make(map[string]time.Time),
	}
}

// WithClock returns a copy of a that reads time from now. The copy shares reservations.
func (a *Assigner) WithClock(now func() time.Time) *Assigner {
	c := *a
	c.now = now
	return &c
}

// WithDigits returns a copy of a that draws random digits from digit.
func (a *Assigner) WithDigits(digit func() int) *Assigner {
	c := *a
	c.digit = digit
	return &c
}

// Release drops reservations for ids that were never written.
func (a *Assigner) Release(ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		delete(a.reserved, id)
	}
}

// Reserved reports how many issued ids are still held back.
func (a *Assigner) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}

// takenLocked merges the mirror's ids with the live reservations and expires old ones.
func (a *Assigner) takenLocked(existing []string) map[string]struct{} {
	taken := toSet(existing)
	cutoff := a.now().Add(-ReservationTTL)
	for id, at := range a.reserved {
		if at.Before(cutoff) {
			delete(a.reserved, id)
			continue
		}
		taken[id] = struct{}{}
	}
	return taken
}

func (a *Assigner) reserveLocked(id string) string {
	a.reserved[id] = a.now()
	return id
}

func (a *Assigner) Policy() Policy { return a.policy }

// PatientID returns loaded verbatim when a patient is loaded, otherwise a new id under
// the configured policy. existing is the current set of patient ids in the mirror.
func (a *Assigner) PatientID(loaded string, existing []string) (string, error) {
	if loaded != "" {
		return loaded, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	taken := a.takenLocked(existing)

	switch a.policy {
	case PolicySequential:
		ids := make([]string, 0, len(taken))
		for id := range taken {
			ids = append(ids, id)
		}
		return a.reserveLocked(NextSequential(ids)), nil
	case PolicyTimeBased:
		for i := 0; i < maxAttempts; i++ {
			id := "P" + lastDigits(a.now().UnixMilli(), 6) + strconv.Itoa(a.digit())
			if _, dup := taken[id]; !dup {
				return a.reserveLocked(id), nil
			}
		}
		return "", fmt.Errorf("patient id: %w", ErrExhausted)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, a.policy)
}

// VisitID returns a fresh OPD id that is not in existing. On a clash the millisecond
// part is advanced, so two registrations in the same millisecond still differ.
func (a *Assigner) VisitID(existing []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	taken := a.takenLocked(existing)

	ms := a.now().UnixMilli()
	for i := 0; i < maxAttempts; i++ {
		id := "OPD-" + lastDigits(ms+int64(i), 6)
		if a.policy == PolicyTimeBased {
			id += strconv.Itoa(a.digit())
		}
		if _, dup := taken[id]; !dup {
			return a.reserveLocked(id), nil
		}
	}
	return "", fmt.Errorf("visit id: %w", ErrExhausted)
}

// NextSequential returns P-<max+1> over every id shaped P-<n>, with max starting at
// SequentialFloor. Ids of any other shape are ignored.
func NextSequential(existing []string) string {
	highest := SequentialFloor
	for _, id := range existing {
		m := sequentialPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return "P-" + strconv.Itoa(highest+1)
}

// lastDigits keeps the n least significant decimal digits of v, zero padded.
func lastDigits(v int64, n int) string {
	s := strconv.FormatInt(v, 10)
	if len(s) >= n {
		return s[len(s)-n:]
	}
	return strings.Repeat("0", n-len(s)) + s
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
