package identity

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	timeBasedPID  = regexp.MustCompile(`^P\d{7}$`)
	sequentialOPD = regexp.MustCompile(`^OPD-\d{6}$`)
	timeBasedOPD  = regexp.MustCompile(`^OPD-\d{7}$`)
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySequential, p)

	p, err = ParsePolicy("timebased")
	require.NoError(t, err)
	assert.Equal(t, PolicyTimeBased, p)

	_, err = ParsePolicy("uuid")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestNextSequential(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"empty mirror", nil, "P-1001"},
		{"below floor", []string{"P-7", "P-999"}, "P-1001"},
		{"max plus one", []string{"P-1001", "P-1042", "P-1003"}, "P-1043"},
		{"legacy ids ignored", []string{"P4821937", "P-1005", "X-9999"}, "P-1006"},
		{"malformed ignored", []string{"P-", "P-12a", "p-2000"}, "P-1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextSequential(tt.existing))
		})
	}
}

func TestNextSequential_StrictlyGreater(t *testing.T) {
	existing := []string{"P-1001", "P-2500", "P-1999", "P1234567"}
	next := NextSequential(existing)

	n, err := strconv.Atoi(next[2:])
	require.NoError(t, err)
	for _, id := range existing {
		m := sequentialPattern.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		existingN, _ := strconv.Atoi(m[1])
		assert.Greater(t, n, existingN)
	}
	assert.GreaterOrEqual(t, n, 1001)
}

func TestPatientID_LoadedIsReused(t *testing.T) {
	for _, policy := range []Policy{PolicySequential, PolicyTimeBased} {
		a := NewAssigner(policy)
		id, err := a.PatientID("P-1007", []string{"P-1007", "P-2000"})
		require.NoError(t, err)
		assert.Equal(t, "P-1007", id)
	}
}

func TestPatientID_TimeBasedShape(t *testing.T) {
	a := NewAssigner(PolicyTimeBased).
		WithClock(fixedClock(1714550412345)).
		WithDigits(func() int { return 7 })

	id, err := a.PatientID("", nil)
	require.NoError(t, err)
	assert.Regexp(t, timeBasedPID, id)
	assert.Equal(t, "P4123457", id)
}

func TestPatientID_TimeBasedRetriesOnCollision(t *testing.T) {
	digits := []int{7, 7, 3}
	i := 0
	a := NewAssigner(PolicyTimeBased).
		WithClock(fixedClock(1714550412345)).
		WithDigits(func() int { d := digits[i]; i++; return d })

	id, err := a.PatientID("", []string{"P4123457"})
	require.NoError(t, err)
	assert.Equal(t, "P4123453", id)
}

func TestPatientID_TimeBasedExhausted(t *testing.T) {
	a := NewAssigner(PolicyTimeBased).
		WithClock(fixedClock(1714550412345)).
		WithDigits(func() int { return 0 })

	_, err := a.PatientID("", []string{"P4123450"})
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestVisitID_Shapes(t *testing.T) {
	seq := NewAssigner(PolicySequential).WithClock(fixedClock(1714550412345))
	id, err := seq.VisitID(nil)
	require.NoError(t, err)
	assert.Regexp(t, sequentialOPD, id)
	assert.Equal(t, "OPD-412345", id)

	tb := NewAssigner(PolicyTimeBased).
		WithClock(fixedClock(1714550412345)).
		WithDigits(func() int { return 9 })
	id, err = tb.VisitID(nil)
	require.NoError(t, err)
	assert.Regexp(t, timeBasedOPD, id)
	assert.Equal(t, "OPD-4123459", id)
}

func TestVisitID_SameMillisecondStillUnique(t *testing.T) {
	a := NewAssigner(PolicySequential).WithClock(fixedClock(1714550412345))

	first, err := a.VisitID(nil)
	require.NoError(t, err)
	second, err := a.VisitID([]string{first})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "OPD-412346", second)
}

func TestVisitID_Exhausted(t *testing.T) {
	a := NewAssigner(PolicySequential).WithClock(fixedClock(1714550412345))

	var taken []string
	for i := 0; i < maxAttempts; i++ {
		taken = append(taken, "OPD-"+strconv.Itoa(412345+i))
	}
	_, err := a.VisitID(taken)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestLastDigits_Pads(t *testing.T) {
	assert.Equal(t, "000042", lastDigits(42, 6))
	assert.Equal(t, "456789", lastDigits(123456789, 6))
}

func TestNextSequential_HugeIDIgnored(t *testing.T) {
	assert.Equal(t, "P-1043", NextSequential([]string{"P-9223372036854775807", "P-1042"}))
	assert.Equal(t, "P-1000000000000000000", NextSequential([]string{"P-999999999999999999"}))
}

func TestPatientID_StaleMirrorStillUnique(t *testing.T) {
	a := NewAssigner(PolicySequential)
	stale := []string{"P-1001"}

	first, err := a.PatientID("", stale)
	require.NoError(t, err)
	second, err := a.PatientID("", stale)
	require.NoError(t, err)
	assert.Equal(t, "P-1002", first)
	assert.Equal(t, "P-1003", second)
	assert.Equal(t, 2, a.Reserved())
}

func TestPatientID_ReservationsExpire(t *testing.T) {
	now := time.UnixMilli(1714550412345)
	a := NewAssigner(PolicySequential).WithClock(func() time.Time { return now })

	first, err := a.PatientID("", nil)
	require.NoError(t, err)
	assert.Equal(t, "P-1001", first)

	now = now.Add(ReservationTTL + time.Second)
	second, err := a.PatientID("", []string{first})
	require.NoError(t, err)
	assert.Equal(t, "P-1002", second)
	assert.Equal(t, 1, a.Reserved())
}

func TestPatientID_ReleaseFreesID(t *testing.T) {
	a := NewAssigner(PolicySequential)

	id, err := a.PatientID("", nil)
	require.NoError(t, err)
	a.Release(id)

	again, err := a.PatientID("", nil)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestVisitID_StaleMirrorStillUnique(t *testing.T) {
	a := NewAssigner(PolicySequential).WithClock(fixedClock(1714550412345))

	first, err := a.VisitID(nil)
	require.NoError(t, err)
	second, err := a.VisitID(nil)
	require.NoError(t, err)
	assert.Equal(t, "OPD-412345", first)
	assert.Equal(t, "OPD-412346", second)
}

func TestPatientID_OtherProcessIsNotSeen(t *testing.T) {
	// Two assigners stand for two processes on one store: with the same stale mirror
	// they hand out the same id. Only the echo of the first write tells them apart.
	one := NewAssigner(PolicySequential)
	two := NewAssigner(PolicySequential)

	a, err := one.PatientID("", nil)
	require.NoError(t, err)
	b, err := two.PatientID("", nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := two.PatientID("", []string{a})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
