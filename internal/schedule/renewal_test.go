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

// seedContract creates an auto-renewal contract with one CONTRATADO
// member slot per date, all at the same time of day.
func seedContract(t *testing.T, repo *memRepo, freq Frequency, hhmm string, dates ...string) (Contract, Patient) {
	t.Helper()
	ctx := context.Background()

	patient, err := repo.InsertPatient(ctx, &Patient{ID: uuid.New(), Name: "Carla Lima"})
	require.NoError(t, err)

	contract, err := repo.InsertContract(ctx, &Contract{
		ID:          uuid.New(),
		Code:        "54321",
		Frequency:   freq,
		AutoRenewal: true,
	})
	require.NoError(t, err)

	for _, date := range dates {
		slot := seedSlot(t, repo, date, hhmm, 60, etPtr(EventOnline), StatusContracted)
		stored, err := repo.GetSlot(ctx, slot.ID)
		require.NoError(t, err)
		stored.PatientID = &patient.ID
		stored.ContractID = &contract.ID
		stored.RemindDayBefore = true
		_, err = repo.UpdateSlot(ctx, stored)
		require.NoError(t, err)
	}
	return *contract, *patient
}

func frozenAt(t *testing.T, svc *Service, date, hhmm string) {
	t.Helper()
	at, err := civil.ToInstant(date, hhmm)
	require.NoError(t, err)
	svc.now = func() time.Time { return at }
}

func TestRunDailyRenewalExtendsOneCycle(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, patient := seedContract(t, repo, FrequencyWeekly, "10:00",
		"2025-12-25", "2026-01-01", "2026-01-08")
	frozenAt(t, svc, "2026-01-08", "21:00")

	summary, err := svc.RunDailyRenewal(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ProcessedCount)
	assert.Equal(t, 1, summary.RenewedCount)
	assert.Equal(t, 3, summary.TotalSlotsCreated)
	assert.Empty(t, summary.Errors)

	members, err := repo.ListSlotsByContract(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, members, 6)

	for i, want := range []string{"2026-01-15", "2026-01-22", "2026-01-29"} {
		added := members[3+i]
		assert.Equal(t, want, civil.DateOf(added.Start))
		assert.Equal(t, "10:00", civil.TimeOf(added.Start))
		assert.Equal(t, StatusContracted, added.Status)
		require.NotNil(t, added.PatientID)
		assert.Equal(t, patient.ID, *added.PatientID)
		assert.True(t, added.RemindDayBefore, "pattern fields carry over")
	}
}

func TestRunDailyRenewalIgnoresContractsNotEndingToday(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	seedContract(t, repo, FrequencyWeekly, "10:00", "2026-01-01", "2026-01-08")
	frozenAt(t, svc, "2026-01-05", "21:00")

	summary, err := svc.RunDailyRenewal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Equal(t, 0, summary.RenewedCount)
}

func TestRunDailyRenewalIgnoresManualContracts(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, _ := seedContract(t, repo, FrequencyWeekly, "10:00", "2026-01-08")
	stored, err := repo.GetContract(ctx, contract.ID)
	require.NoError(t, err)
	stored.AutoRenewal = false
	_, err = repo.InsertContract(ctx, stored)
	require.NoError(t, err)

	frozenAt(t, svc, "2026-01-08", "21:00")
	summary, err := svc.RunDailyRenewal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
}

func TestRenewContractSkipsAlreadyRenewed(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, _ := seedContract(t, repo, FrequencyWeekly, "10:00",
		"2026-01-08", "2026-01-15")
	frozenAt(t, svc, "2026-01-08", "21:00")

	_, dayEnd, err := civil.DayWindow("2026-01-08")
	require.NoError(t, err)

	summary := &RenewalSummary{}
	created, err := svc.renewContract(ctx, &contract, dayEnd, summary)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, summary.SkippedAlreadyRenewed)
}

func TestRenewContractSkipsEmptyContract(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, err := repo.InsertContract(ctx, &Contract{
		ID:          uuid.New(),
		Code:        "00042",
		Frequency:   FrequencyWeekly,
		AutoRenewal: true,
	})
	require.NoError(t, err)

	_, dayEnd, err := civil.DayWindow("2026-01-08")
	require.NoError(t, err)

	summary := &RenewalSummary{}
	created, err := svc.renewContract(ctx, contract, dayEnd, summary)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 1, summary.SkippedNoSlots)
}

func TestRunDailyRenewalSlidesPastConflicts(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, _ := seedContract(t, repo, FrequencyWeekly, "10:00", "2026-01-08")
	seedSlot(t, repo, "2026-01-15", "10:00", 60, etPtr(EventPresential), StatusConfirmed)
	frozenAt(t, svc, "2026-01-08", "21:00")

	summary, err := svc.RunDailyRenewal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.RenewedCount)
	assert.Equal(t, 1, summary.TotalSlotsCreated)

	members, err := repo.ListSlotsByContract(ctx, contract.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "2026-01-22", civil.DateOf(members[1].Start), "occurrence slid one step forward")
}

func TestRunDailyRenewalGivesUpAfterSlideLimit(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	contract, _ := seedContract(t, repo, FrequencyWeekly, "10:00", "2026-01-08")

	// Occupy every candidate date the slide is allowed to probe.
	date := "2026-01-15"
	for i := 0; i < renewalSlideLimit; i++ {
		seedSlot(t, repo, date, "10:00", 60, etPtr(EventPresential), StatusConfirmed)
		next, err := civil.AddDays(date, 7)
		require.NoError(t, err)
		date = next
	}

	frozenAt(t, svc, "2026-01-08", "21:00")
	summary, err := svc.RunDailyRenewal(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.RenewedCount)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "nenhuma data livre")

	members, err := repo.ListSlotsByContract(ctx, contract.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1, "no slot created when nothing opened")
}
