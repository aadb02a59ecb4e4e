package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
)

func seedSlot(t *testing.T, repo *memRepo, date, hhmm string, durMin int, et *EventType, status Status) Slot {
	t.Helper()
	start, err := civil.ToInstant(date, hhmm)
	require.NoError(t, err)

	slot, err := repo.InsertSlot(context.Background(), &Slot{
		ID:        uuid.New(),
		Start:     start,
		End:       start.Add(time.Duration(durMin) * time.Minute),
		EventType: et,
		Status:    status,
	})
	require.NoError(t, err)
	return *slot
}

func TestCheckOverlapIntersectingFails(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedSlot(t, repo, "2025-12-25", "10:00", 60, etPtr(EventOnline), StatusWaiting)

	// Any interval touching [10:00, 11:00) fails, citing 10:00.
	for _, hhmm := range []string{"10:30", "09:30", "10:00"} {
		err := svc.CheckOverlap(ctx, "2025-12-25", hhmm, 60, nil)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict, "time %s", hhmm)
		assert.Equal(t, "10:00", conflict.Time)
		assert.Equal(t, "1h", conflict.Duration)
	}

	// Strictly outside succeeds; half-open semantics make 11:00 free.
	assert.NoError(t, svc.CheckOverlap(ctx, "2025-12-25", "11:00", 60, nil))
	assert.NoError(t, svc.CheckOverlap(ctx, "2025-12-25", "08:00", 60, nil))
}

func TestCheckOverlapAdjacentPersonalSucceeds(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedSlot(t, repo, "2025-12-25", "10:00", 60, etPtr(EventOnline), StatusWaiting)

	// A 30m personal block ending exactly at 10:00 does not overlap.
	assert.NoError(t, svc.CheckOverlap(ctx, "2025-12-25", "09:30", 30, nil))

	// One starting at 10:30 lands inside [10:00, 11:00) and fails.
	err := svc.CheckOverlap(ctx, "2025-12-25", "10:30", 30, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "10:00", conflict.Time)
}

func TestCheckOverlapVacantRowsAreTransparent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	for _, status := range []Status{StatusVacant, Status("VAGO"), Status("")} {
		seedSlot(t, repo, "2025-12-25", "10:30", 60, nil, status)
	}

	assert.NoError(t, svc.CheckOverlap(ctx, "2025-12-25", "10:00", 60, nil))
}

func TestCheckOverlapUnavailableIsAbsolute(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedSlot(t, repo, "2025-12-25", "14:00", 60, nil, StatusUnavailable)

	for _, dur := range []int{30, 60, 120} {
		err := svc.CheckOverlap(ctx, "2025-12-25", "13:30", dur, nil)
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict, "duration %d", dur)
		assert.True(t, conflict.Unavailable)
		assert.Contains(t, conflict.Error(), "indisponível")
		assert.Contains(t, conflict.Error(), "14:00")
	}
}

func TestCheckOverlapBlockedDay(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, err := repo.InsertBlockedDay(ctx, &BlockedDay{ID: uuid.New(), Date: "2025-12-25"})
	require.NoError(t, err)

	for _, hhmm := range []string{"08:00", "12:00", "19:30"} {
		err := svc.CheckOverlap(ctx, "2025-12-25", hhmm, 60, nil)
		var blocked *DayBlockedError
		require.ErrorAs(t, err, &blocked, "time %s", hhmm)
		assert.Equal(t, "2025-12-25", blocked.Date)
	}
}

func TestCheckOverlapExcludesSelf(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	slot := seedSlot(t, repo, "2025-12-25", "10:00", 60, etPtr(EventOnline), StatusWaiting)

	assert.Error(t, svc.CheckOverlap(ctx, "2025-12-25", "10:00", 60, nil))
	assert.NoError(t, svc.CheckOverlap(ctx, "2025-12-25", "10:00", 60, &slot.ID))
}

func TestCheckOverlapConflictCitesPersonalDuration(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedSlot(t, repo, "2025-12-25", "12:00", 90, etPtr(EventPersonal), StatusPending)

	err := svc.CheckOverlap(ctx, "2025-12-25", "13:00", 60, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "12:00", conflict.Time)
	assert.Equal(t, "1h30m", conflict.Duration)
}

func TestProbeOverlapBroaderOccupancy(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	// AGUARDANDO has no event type but still occupies for the probe.
	seedSlot(t, repo, "2025-12-25", "10:00", 60, nil, StatusWaiting)

	probe, err := svc.ProbeOverlap(ctx, "2025-12-25", "10:00", 60, nil)
	require.NoError(t, err)
	assert.True(t, probe.HasConflict)
	assert.Equal(t, "AGUARDANDO", probe.Reason)
}

func TestProbeOverlapReasonPriority(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedSlot(t, repo, "2025-12-25", "10:00", 60, etPtr(EventOnline), StatusReserved)
	seedSlot(t, repo, "2025-12-25", "10:00", 60, nil, StatusUnavailable)

	probe, err := svc.ProbeOverlap(ctx, "2025-12-25", "10:00", 60, nil)
	require.NoError(t, err)
	assert.True(t, probe.HasConflict)
	assert.Equal(t, "Indisponível", probe.Reason)
}

func TestProbeOverlapBlockedDayAndVacant(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	probe, err := svc.ProbeOverlap(ctx, "2025-12-25", "10:00", 60, nil)
	require.NoError(t, err)
	assert.False(t, probe.HasConflict)

	seedSlot(t, repo, "2025-12-25", "10:00", 60, nil, StatusVacant)
	probe, err = svc.ProbeOverlap(ctx, "2025-12-25", "10:00", 60, nil)
	require.NoError(t, err)
	assert.False(t, probe.HasConflict, "vacant rows do not occupy")

	_, err = repo.InsertBlockedDay(ctx, &BlockedDay{ID: uuid.New(), Date: "2025-12-25"})
	require.NoError(t, err)
	probe, err = svc.ProbeOverlap(ctx, "2025-12-25", "10:00", 60, nil)
	require.NoError(t, err)
	assert.True(t, probe.HasConflict)
	assert.Equal(t, "Dia bloqueado", probe.Reason)
}
