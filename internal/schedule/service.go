package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
	redisclient "github.com/vivaagenda/practice-scheduling/internal/redis"
)

// Service orchestrates slot lifecycle operations around the repository:
// duration resolution, overlap checking, sibling bookkeeping and the
// exclusivity cascades. Check-then-insert sections run under a per-start
// advisory lock; the original design left that race open, the lock is a
// deliberate strengthening.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSlotInput carries everything needed to book one slot. Patient
// attachment is either by explicit ID or by find-or-create on
// name/phone/email.
type CreateSlotInput struct {
	Date             string
	Time             string
	EventType        *EventType
	PriceCategory    *string
	Price            *int
	Status           *Status
	PersonalActivity *string
	PatientID        *uuid.UUID
	PatientName      *string
	PatientPhone     *string
	PatientEmail     *string
}

// Create books a new slot. The day must not be blocked and the resolved
// interval must not intersect any occupied slot on that date. Personal
// activities are forced to PENDENTE and purge their siblings.
func (s *Service) Create(ctx context.Context, in CreateSlotInput) (*Slot, error) {
	mins := ResolveDuration(in.EventType, in.PriceCategory, nil, nil)
	start, err := civil.ToInstant(in.Date, in.Time)
	if err != nil {
		return nil, err
	}

	var created *Slot
	err = s.locker.WithStartLock(ctx, start, func(ctx context.Context) error {
		if err := s.CheckOverlap(ctx, in.Date, in.Time, mins, nil); err != nil {
			return err
		}

		siblings, err := s.repo.ListSlotsAt(ctx, start)
		if err != nil {
			return fmt.Errorf("list siblings: %w", err)
		}
		order := nextSiblingOrder(siblings)

		patientID, err := s.resolvePatient(ctx, in.PatientID, in.PatientName, in.PatientPhone, in.PatientEmail)
		if err != nil {
			return err
		}

		slot := &Slot{
			ID:            uuid.New(),
			Start:         start,
			End:           start.Add(time.Duration(mins) * time.Minute),
			EventType:     in.EventType,
			PriceCategory: in.PriceCategory,
			Price:         in.Price,
			Status:        resolveCreateStatus(in.EventType, in.Status),
			PatientID:     patientID,
			SiblingOrder:  order,
		}
		if in.EventType != nil && *in.EventType == EventPersonal && in.PersonalActivity != nil {
			label := stripDurationTag(*in.PersonalActivity)
			slot.PersonalActivity = &label
		}

		created, err = s.repo.InsertSlot(ctx, slot)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}

		if created.Status.IsExclusive() || created.IsPersonal() {
			if err := s.applyExclusivity(ctx, created.ID, created.Start, created.Status, created.EventType); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("slot_id", created.ID.String()).
		Str("date", in.Date).
		Str("time", in.Time).
		Int("duration_min", mins).
		Msg("slot created")
	return created, nil
}

// CreateDouble books two stacked slots at the same start. The pair is
// checked against a fixed 60-minute joint window even when both halves
// are short personal activities; the over-reject is intentional, matching
// the long-standing calendar behavior.
func (s *Service) CreateDouble(ctx context.Context, date, hhmm string, type1, type2 EventType, category *string, status *Status) ([]Slot, error) {
	start, err := civil.ToInstant(date, hhmm)
	if err != nil {
		return nil, err
	}
	end := start.Add(60 * time.Minute)

	var pair []Slot
	err = s.locker.WithStartLock(ctx, start, func(ctx context.Context) error {
		if err := s.CheckOverlap(ctx, date, hhmm, 60, nil); err != nil {
			return err
		}

		for i, et := range []EventType{type1, type2} {
			et := et
			slot := &Slot{
				ID:            uuid.New(),
				Start:         start,
				End:           end,
				EventType:     &et,
				PriceCategory: category,
				Status:        resolveCreateStatus(&et, status),
				SiblingOrder:  i,
			}
			inserted, err := s.repo.InsertSlot(ctx, slot)
			if err != nil {
				return fmt.Errorf("insert slot %d of pair: %w", i, err)
			}
			pair = append(pair, *inserted)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// UpdateSlotInput is a sparse patch; nil fields are left untouched.
type UpdateSlotInput struct {
	EventType        *EventType
	PriceCategory    *string
	Price            *int
	Status           *Status
	PersonalActivity *string
	PatientID        *uuid.UUID
	ContractID       *uuid.UUID
	IsPaid           *bool
	IsInaugural      *bool
	FlowStatus       *string
	RemindWeekBefore *bool
	RemindDayBefore  *bool
	End              *time.Time
}

// Update patches a slot, re-validates its interval against the day and,
// when the patch changes the status, runs the sibling cascades.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateSlotInput) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.EventType != nil {
		slot.EventType = in.EventType
	}
	if in.Price != nil {
		slot.Price = in.Price
	}
	if in.PersonalActivity != nil {
		label := stripDurationTag(*in.PersonalActivity)
		slot.PersonalActivity = &label
	}
	if in.PatientID != nil {
		slot.PatientID = in.PatientID
	}
	if in.ContractID != nil {
		slot.ContractID = in.ContractID
	}
	if in.IsPaid != nil {
		slot.IsPaid = *in.IsPaid
	}
	if in.IsInaugural != nil {
		slot.IsInaugural = *in.IsInaugural
	}
	if in.FlowStatus != nil {
		slot.FlowStatus = in.FlowStatus
	}
	if in.RemindWeekBefore != nil {
		slot.RemindWeekBefore = *in.RemindWeekBefore
	}
	if in.RemindDayBefore != nil {
		slot.RemindDayBefore = *in.RemindDayBefore
	}
	if in.Status != nil {
		slot.Status = NormalizeStatus(string(*in.Status))
	}

	// A category change on a personal slot re-derives the end from the
	// unchanged start and the new tag's duration.
	if in.PriceCategory != nil {
		slot.PriceCategory = in.PriceCategory
		if slot.IsPersonal() {
			mins := ResolveDuration(slot.EventType, slot.PriceCategory, nil, nil)
			slot.End = slot.Start.Add(time.Duration(mins) * time.Minute)
		}
	}
	if in.End != nil {
		slot.End = *in.End
	}

	// Dropping back to vacant clears the commercial linkage unless the
	// patch explicitly set those fields.
	if slot.Status.IsVacant() {
		if in.FlowStatus == nil {
			slot.FlowStatus = nil
		}
		if in.PatientID == nil {
			slot.PatientID = nil
		}
		if in.ContractID == nil {
			slot.ContractID = nil
		}
		if in.IsPaid == nil {
			slot.IsPaid = false
		}
		if in.IsInaugural == nil {
			slot.IsInaugural = false
		}
	}

	mins := int(slot.End.Sub(slot.Start) / time.Minute)
	if in.End == nil {
		mins = ResolveDuration(slot.EventType, slot.PriceCategory, &slot.Start, &slot.End)
		slot.End = slot.Start.Add(time.Duration(mins) * time.Minute)
	}

	date := civil.DateOf(slot.Start)
	hhmm := civil.TimeOf(slot.Start)
	if err := s.CheckOverlap(ctx, date, hhmm, mins, &slot.ID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}

	if in.Status != nil {
		if err := s.applyExclusivity(ctx, updated.ID, updated.Start, updated.Status, updated.EventType); err != nil {
			return nil, err
		}
		if err := s.adjustSiblingStatus(ctx, updated.ID, updated.Start, updated.Status); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes a slot and re-packs the sibling orders at its start.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteSlot(ctx, id); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return s.repackSiblings(ctx, slot.Start)
}

// Reserve attaches a patient (found or created by phone/email) and moves
// the slot to RESERVADO, demoting its siblings to AGUARDANDO. The flow
// webhook is fired best-effort; its failure never fails the reservation.
func (s *Service) Reserve(ctx context.Context, id uuid.UUID, patientName, patientPhone string) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	patient, err := s.findOrCreatePatient(ctx, patientName, &patientPhone, nil)
	if err != nil {
		return nil, err
	}

	slot.Status = StatusReserved
	slot.PatientID = &patient.ID

	if err := s.notifier.NotifyReservation(ctx, patient.Name, patientPhone, slot.ID); err != nil {
		s.logger.Warn().Err(err).Str("slot_id", slot.ID.String()).Msg("reservation webhook failed")
	} else {
		sent := "sent"
		slot.FlowStatus = &sent
	}

	updated, err := s.repo.UpdateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	if err := s.adjustSiblingStatus(ctx, updated.ID, updated.Start, StatusReserved); err != nil {
		return nil, err
	}
	return updated, nil
}

// Confirm moves a slot to CONFIRMADO and purges its siblings.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	slot.Status = StatusConfirmed
	updated, err := s.repo.UpdateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("confirm slot: %w", err)
	}

	if err := s.applyExclusivity(ctx, updated.ID, updated.Start, StatusConfirmed, updated.EventType); err != nil {
		return nil, err
	}
	return s.repo.GetSlot(ctx, updated.ID)
}

// ChangeTime moves a slot to a new date/time by delete-and-recreate. The
// conflict check here is deliberately coarser than CheckOverlap: only
// exact-start co-occupancy by a different contract blocks the move. The
// mismatch with the interval-based check is inherited behavior.
func (s *Service) ChangeTime(ctx context.Context, id uuid.UUID, newDate, newTime string) (*Slot, error) {
	slot, err := s.repo.GetSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	mins := ResolveDuration(slot.EventType, slot.PriceCategory, &slot.Start, &slot.End)
	newStart, err := civil.ToInstant(newDate, newTime)
	if err != nil {
		return nil, err
	}

	var moved *Slot
	err = s.locker.WithStartLock(ctx, newStart, func(ctx context.Context) error {
		occupants, err := s.repo.ListSlotsAt(ctx, newStart)
		if err != nil {
			return fmt.Errorf("list occupants: %w", err)
		}
		for i := range occupants {
			occ := &occupants[i]
			if occ.ID == slot.ID || occ.Status.IsVacant() || sameContract(occ, slot) {
				continue
			}
			return &ConflictError{Time: newTime, Duration: civil.FormatMinutes(mins)}
		}

		oldStart := slot.Start
		if err := s.repo.DeleteSlot(ctx, slot.ID); err != nil {
			return fmt.Errorf("delete old slot: %w", err)
		}
		if err := s.repackSiblings(ctx, oldStart); err != nil {
			return err
		}

		replacement := *slot
		replacement.ID = uuid.New()
		replacement.Start = newStart
		replacement.End = newStart.Add(time.Duration(mins) * time.Minute)
		replacement.SiblingOrder = 0

		moved, err = s.repo.InsertSlot(ctx, &replacement)
		if err != nil {
			return fmt.Errorf("insert moved slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// BlockDayResult reports what the block operation did to the day's slots.
type BlockDayResult struct {
	Deleted int
	Kept    int
}

// BlockDay closes a civil date: vacant and INDISPONIVEL commercial slots
// are deleted, personal activities and committed bookings are kept, and a
// BlockedDay record is written (tolerating one already present).
func (s *Service) BlockDay(ctx context.Context, date string, reason *string) (*BlockDayResult, error) {
	slots, err := s.daySlots(ctx, date)
	if err != nil {
		return nil, err
	}

	res := &BlockDayResult{}
	touched := map[time.Time]struct{}{}
	for i := range slots {
		slot := &slots[i]
		if blockDayKeeps(slot) {
			res.Kept++
			continue
		}
		if err := s.repo.DeleteSlot(ctx, slot.ID); err != nil {
			return nil, fmt.Errorf("delete slot %s: %w", slot.ID, err)
		}
		touched[slot.Start] = struct{}{}
		res.Deleted++
	}
	for start := range touched {
		if err := s.repackSiblings(ctx, start); err != nil {
			return nil, err
		}
	}

	blocked, err := s.repo.IsDayBlocked(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check blocked day: %w", err)
	}
	if !blocked {
		if _, err := s.repo.InsertBlockedDay(ctx, &BlockedDay{ID: uuid.New(), Date: date, Reason: reason}); err != nil {
			return nil, fmt.Errorf("insert blocked day: %w", err)
		}
	}

	s.logger.Info().
		Str("date", date).
		Int("deleted", res.Deleted).
		Int("kept", res.Kept).
		Msg("day blocked")
	return res, nil
}

// UnblockDay removes the BlockedDay record; existing slots are untouched.
func (s *Service) UnblockDay(ctx context.Context, date string) error {
	return s.repo.DeleteBlockedDay(ctx, date)
}

// ListDay returns the day's slots for the calendar view.
func (s *Service) ListDay(ctx context.Context, date string) ([]Slot, error) {
	return s.daySlots(ctx, date)
}

// GetSlot loads one slot.
func (s *Service) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.repo.GetSlot(ctx, id)
}

// ListBlockedDays returns all blocked dates.
func (s *Service) ListBlockedDays(ctx context.Context) ([]BlockedDay, error) {
	return s.repo.ListBlockedDays(ctx)
}

// blockDayKeeps reports whether a slot survives the block-day sweep.
func blockDayKeeps(slot *Slot) bool {
	if slot.IsPersonal() {
		return true
	}
	switch NormalizeStatus(string(slot.Status)) {
	case StatusWaiting, StatusReserved, StatusConfirmed, StatusContracted:
		return true
	case StatusVacant, StatusUnavailable:
		return false
	default:
		return true
	}
}

func sameContract(a, b *Slot) bool {
	return a.ContractID != nil && b.ContractID != nil && *a.ContractID == *b.ContractID
}

func nextSiblingOrder(siblings []Slot) int {
	order := -1
	for i := range siblings {
		if siblings[i].SiblingOrder > order {
			order = siblings[i].SiblingOrder
		}
	}
	return order + 1
}

// resolveCreateStatus picks the initial status of a fresh slot: personal
// activities always start PENDENTE, commercial bookings default to
// AGUARDANDO, bare grid slots stay vacant.
func resolveCreateStatus(eventType *EventType, requested *Status) Status {
	if eventType != nil && *eventType == EventPersonal {
		return StatusPending
	}
	if requested != nil {
		return NormalizeStatus(string(*requested))
	}
	if eventType != nil {
		return StatusWaiting
	}
	return StatusVacant
}

// resolvePatient attaches a patient by explicit id, or by find-or-create
// on name + phone/email. All-nil input means no patient.
func (s *Service) resolvePatient(ctx context.Context, id *uuid.UUID, name, phone, email *string) (*uuid.UUID, error) {
	if id != nil {
		if _, err := s.repo.GetPatient(ctx, *id); err != nil {
			return nil, err
		}
		return id, nil
	}
	if name == nil || *name == "" {
		return nil, nil
	}
	patient, err := s.findOrCreatePatient(ctx, *name, phone, email)
	if err != nil {
		return nil, err
	}
	return &patient.ID, nil
}

// findOrCreatePatient looks a patient up by exact phone, then exact
// email, creating a new record when neither matches.
func (s *Service) findOrCreatePatient(ctx context.Context, name string, phone, email *string) (*Patient, error) {
	if phone != nil && *phone != "" {
		p, err := s.repo.FindPatientByPhone(ctx, *phone)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPatientNotFound) {
			return nil, fmt.Errorf("find patient by phone: %w", err)
		}
	}
	if email != nil && *email != "" {
		p, err := s.repo.FindPatientByEmail(ctx, *email)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrPatientNotFound) {
			return nil, fmt.Errorf("find patient by email: %w", err)
		}
	}
	p, err := s.repo.InsertPatient(ctx, &Patient{
		ID:    uuid.New(),
		Name:  name,
		Phone: phone,
		Email: email,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// newContractCode draws the 5-digit human-facing contract code.
func newContractCode() string {
	return fmt.Sprintf("%05d", rand.Intn(100000))
}
