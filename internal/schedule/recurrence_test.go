package schedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
)

// seedOrigin books a commercial slot with an attached patient, the usual
// starting point of a recurring series.
func seedOrigin(t *testing.T, repo *memRepo, date, hhmm string) (Slot, Patient) {
	t.Helper()
	ctx := context.Background()

	patient, err := repo.InsertPatient(ctx, &Patient{
		ID:    uuid.New(),
		Name:  "João Pereira",
		Phone: strPtr("+5511988887777"),
	})
	require.NoError(t, err)

	slot := seedSlot(t, repo, date, hhmm, 60, etPtr(EventOnline), StatusReserved)
	stored, err := repo.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	stored.PatientID = &patient.ID
	stored.Price = intPtr(18000)
	updated, err := repo.UpdateSlot(ctx, stored)
	require.NoError(t, err)
	return *updated, *patient
}

func TestStepDate(t *testing.T) {
	got, err := stepDate("2025-12-25", FrequencyWeekly)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", got)

	got, err = stepDate("2025-12-25", FrequencyBiweekly)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-08", got)

	got, err = stepDate("2025-12-25", FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-25", got)

	_, err = stepDate("2025-12-25", Frequency("daily"))
	assert.Error(t, err)
}

func TestPreviewRecurringSkipsWithoutConsuming(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")

	res, err := svc.PreviewRecurring(ctx, origin.ID, FrequencyWeekly, 3, []string{"2026-01-01"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)

	// The skipped date advances the cadence but never appears.
	assert.Equal(t, "2025-12-25", res.Entries[0].Date)
	assert.Equal(t, "2026-01-08", res.Entries[1].Date)
	assert.Equal(t, "2026-01-15", res.Entries[2].Date)

	// The origin slot does not conflict with itself on its own date.
	assert.True(t, res.Entries[0].Available)
	assert.True(t, res.Entries[1].Available)
	assert.True(t, res.Entries[2].Available)
	assert.False(t, res.PatientHasContract)
}

func TestPreviewRecurringReportsConflicts(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")
	seedSlot(t, repo, "2026-01-01", "10:00", 60, etPtr(EventOnline), StatusConfirmed)

	res, err := svc.PreviewRecurring(ctx, origin.ID, FrequencyWeekly, 2, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)

	assert.True(t, res.Entries[0].Available)
	assert.False(t, res.Entries[1].Available)
	assert.Equal(t, "Confirmado", res.Entries[1].Reason)
}

func TestPreviewRecurringFlagsExistingContract(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, patient := seedOrigin(t, repo, "2025-12-25", "10:00")

	contract, err := repo.InsertContract(ctx, &Contract{ID: uuid.New(), Code: "12345", Frequency: FrequencyWeekly})
	require.NoError(t, err)
	member := seedSlot(t, repo, "2025-11-01", "10:00", 60, etPtr(EventOnline), StatusContracted)
	stored, err := repo.GetSlot(ctx, member.ID)
	require.NoError(t, err)
	stored.PatientID = &patient.ID
	stored.ContractID = &contract.ID
	_, err = repo.UpdateSlot(ctx, stored)
	require.NoError(t, err)

	res, err := svc.PreviewRecurring(ctx, origin.ID, FrequencyWeekly, 1, nil)
	require.NoError(t, err)
	assert.True(t, res.PatientHasContract)
}

func TestCreateRecurringRequiresPatient(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	orphan := seedSlot(t, repo, "2025-12-25", "10:00", 60, etPtr(EventOnline), StatusWaiting)

	_, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:  orphan.ID,
		Frequency: FrequencyWeekly,
		Count:     3,
	})
	assert.ErrorIs(t, err, ErrPatientRequired)
}

func TestCreateRecurringConvertsOriginAndBooksSeries(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, patient := seedOrigin(t, repo, "2025-12-25", "10:00")

	res, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:    origin.ID,
		Frequency:   FrequencyWeekly,
		Count:       3,
		Payments:    map[string]bool{"2025-12-25": true},
		Inaugurals:  map[string]bool{"2025-12-25": true},
		AutoRenewal: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.CreatedCount)
	assert.Empty(t, res.Conflicts)
	assert.Len(t, res.ContractCode, 5)

	contract, err := repo.GetContract(ctx, res.ContractID)
	require.NoError(t, err)
	assert.True(t, contract.AutoRenewal)
	assert.Equal(t, FrequencyWeekly, contract.Frequency)

	members, err := repo.ListSlotsByContract(ctx, res.ContractID)
	require.NoError(t, err)
	require.Len(t, members, 3)

	assert.Equal(t, origin.ID, members[0].ID, "the origin slot is converted in place")
	for i, want := range []string{"2025-12-25", "2026-01-01", "2026-01-08"} {
		assert.Equal(t, want, civil.DateOf(members[i].Start))
		assert.Equal(t, StatusContracted, members[i].Status)
		require.NotNil(t, members[i].PatientID)
		assert.Equal(t, patient.ID, *members[i].PatientID)
	}
	assert.True(t, members[0].IsPaid)
	assert.True(t, members[0].IsInaugural)
	assert.False(t, members[1].IsPaid)
}

func TestCreateRecurringConvertsVacantOccupant(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")
	vacant := seedSlot(t, repo, "2026-01-01", "10:00", 60, nil, StatusVacant)

	res, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:  origin.ID,
		Frequency: FrequencyWeekly,
		Count:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CreatedCount)

	converted, err := repo.GetSlot(ctx, vacant.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusContracted, converted.Status)
	require.NotNil(t, converted.ContractID)
	assert.Equal(t, res.ContractID, *converted.ContractID)
}

func TestCreateRecurringPartialSuccess(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")
	seedSlot(t, repo, "2026-01-01", "10:00", 60, etPtr(EventPresential), StatusConfirmed)

	res, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:  origin.ID,
		Frequency: FrequencyWeekly,
		Count:     3,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.CreatedCount)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "2026-01-01", res.Conflicts[0].Date)
	assert.Equal(t, "Confirmado", res.Conflicts[0].Reason)

	members, err := repo.ListSlotsByContract(ctx, res.ContractID)
	require.NoError(t, err)
	assert.Len(t, members, 2, "booked dates stay booked, nothing is rolled back")
}

func TestCreateRecurringExplicitSlotsTakePrecedence(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")

	res, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:  origin.ID,
		Frequency: FrequencyWeekly,
		Count:     5,
		Slots: []SlotDate{
			{Date: "2025-12-25", Time: "10:00"},
			{Date: "2026-01-03", Time: "15:30"},
		},
		Dates: []string{"2026-02-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.CreatedCount)

	members, err := repo.ListSlotsByContract(ctx, res.ContractID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "15:30", civil.TimeOf(members[1].Start))
}

func TestCreateRecurringRefreshesPatient(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, patient := seedOrigin(t, repo, "2025-12-25", "10:00")

	_, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:     origin.ID,
		Frequency:    FrequencyWeekly,
		Count:        1,
		PatientName:  strPtr("João P. Silva"),
		PatientEmail: strPtr("joao@example.com"),
	})
	require.NoError(t, err)

	refreshed, err := repo.GetPatient(ctx, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "João P. Silva", refreshed.Name)
	require.NotNil(t, refreshed.Email)
	assert.Equal(t, "joao@example.com", *refreshed.Email)
}

func TestCreateRecurringPurgesSiblingsOfBookedDates(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	origin, _ := seedOrigin(t, repo, "2025-12-25", "10:00")
	leftover := seedSlot(t, repo, "2025-12-25", "10:00", 60, nil, StatusVacant)

	res, err := svc.CreateRecurring(ctx, CreateRecurringInput{
		OriginID:  origin.ID,
		Frequency: FrequencyWeekly,
		Count:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CreatedCount)

	_, err = repo.GetSlot(ctx, leftover.ID)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	start, err := civil.ToInstant("2025-12-25", "10:00")
	require.NoError(t, err)
	remaining, err := repo.ListSlotsAt(ctx, start)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, origin.ID, remaining[0].ID)
}
