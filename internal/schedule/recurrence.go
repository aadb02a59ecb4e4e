package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
)

// stepDate advances a civil date by one frequency step.
func stepDate(date string, freq Frequency) (string, error) {
	switch freq {
	case FrequencyWeekly:
		return civil.AddDays(date, 7)
	case FrequencyBiweekly:
		return civil.AddDays(date, 14)
	case FrequencyMonthly:
		return civil.AddMonths(date, 1)
	default:
		return "", fmt.Errorf("unknown frequency %q", freq)
	}
}

// PreviewEntry is one candidate occurrence of a recurring series.
type PreviewEntry struct {
	Date      string
	Time      string
	Available bool
	Reason    string
}

// PreviewResult reports per-date availability for a prospective series,
// plus whether the origin patient already belongs to any contract (which
// gates inaugural pricing in the UI).
type PreviewResult struct {
	Entries            []PreviewEntry
	PatientHasContract bool
}

// PreviewRecurring walks count occurrence dates forward from the origin
// slot's own date at the given cadence, skipping (without counting) any
// date listed in skipDates, and probes each accepted date for conflicts.
// It is read-only.
func (s *Service) PreviewRecurring(ctx context.Context, originID uuid.UUID, freq Frequency, count int, skipDates []string) (*PreviewResult, error) {
	origin, err := s.repo.GetSlot(ctx, originID)
	if err != nil {
		return nil, err
	}

	originDate := civil.DateOf(origin.Start)
	hhmm := civil.TimeOf(origin.Start)
	mins := ResolveDuration(origin.EventType, origin.PriceCategory, &origin.Start, &origin.End)

	skip := make(map[string]struct{}, len(skipDates))
	for _, d := range skipDates {
		skip[d] = struct{}{}
	}

	res := &PreviewResult{}
	date := originDate
	// Skipped dates still advance the cadence but never consume an
	// occurrence, so the walk is bounded by count plus the skip list.
	for produced := 0; produced < count; {
		if _, skipped := skip[date]; skipped {
			next, err := stepDate(date, freq)
			if err != nil {
				return nil, err
			}
			date = next
			continue
		}

		var exclude *uuid.UUID
		if date == originDate {
			exclude = &origin.ID
		}
		probe, err := s.ProbeOverlap(ctx, date, hhmm, mins, exclude)
		if err != nil {
			return nil, err
		}

		entry := PreviewEntry{Date: date, Time: hhmm, Available: !probe.HasConflict, Reason: probe.Reason}
		res.Entries = append(res.Entries, entry)
		produced++

		next, err := stepDate(date, freq)
		if err != nil {
			return nil, err
		}
		date = next
	}

	if origin.PatientID != nil {
		has, err := s.repo.PatientHasContract(ctx, *origin.PatientID)
		if err != nil {
			return nil, fmt.Errorf("check existing contracts: %w", err)
		}
		res.PatientHasContract = has
	}
	return res, nil
}

// SlotDate is one explicit (date, time) target for a recurring series.
type SlotDate struct {
	Date string
	Time string
}

// CreateRecurringInput materializes a recurring series from an origin
// slot. Explicit Slots take precedence over legacy Dates (which reuse the
// origin's time); with neither, targets are computed from the cadence.
type CreateRecurringInput struct {
	OriginID         uuid.UUID
	Frequency        Frequency
	Count            int
	Slots            []SlotDate
	Dates            []string
	SkipDates        []string
	Payments         map[string]bool
	Inaugurals       map[string]bool
	RemindWeekBefore bool
	RemindDayBefore  bool
	AutoRenewal      bool

	// Optional patient refresh applied before the series is created.
	PatientName  *string
	PatientPhone *string
	PatientEmail *string
}

// RecurrenceConflict records one target date that could not be booked.
type RecurrenceConflict struct {
	Date   string
	Time   string
	Reason string
}

// CreateRecurringResult summarizes a (possibly partial) series creation.
type CreateRecurringResult struct {
	CreatedCount int
	ContractID   uuid.UUID
	ContractCode string
	Conflicts    []RecurrenceConflict
}

// CreateRecurring creates a contract and books its member slots. Targets
// already occupied by unrelated bookings become conflict entries and are
// skipped; already-created slots are never rolled back. Partial success
// is the designed outcome.
func (s *Service) CreateRecurring(ctx context.Context, in CreateRecurringInput) (*CreateRecurringResult, error) {
	origin, err := s.repo.GetSlot(ctx, in.OriginID)
	if err != nil {
		return nil, err
	}
	if origin.PatientID == nil {
		return nil, ErrPatientRequired
	}

	if err := s.refreshPatient(ctx, *origin.PatientID, in.PatientName, in.PatientPhone, in.PatientEmail); err != nil {
		return nil, err
	}

	contract, err := s.repo.InsertContract(ctx, &Contract{
		ID:          uuid.New(),
		Code:        newContractCode(),
		Frequency:   in.Frequency,
		AutoRenewal: in.AutoRenewal,
	})
	if err != nil {
		return nil, fmt.Errorf("insert contract: %w", err)
	}

	originTime := civil.TimeOf(origin.Start)
	mins := ResolveDuration(origin.EventType, origin.PriceCategory, &origin.Start, &origin.End)

	targets, err := s.recurringTargets(in, origin, originTime)
	if err != nil {
		return nil, err
	}

	res := &CreateRecurringResult{ContractID: contract.ID, ContractCode: contract.Code}
	for _, target := range targets {
		if err := s.bookRecurringTarget(ctx, origin, contract, target, mins, in, res); err != nil {
			// Per-item isolation: a store failure on one date becomes a
			// conflict entry instead of aborting the batch.
			s.logger.Error().Err(err).
				Str("date", target.Date).
				Str("contract", contract.Code).
				Msg("recurring target failed")
			res.Conflicts = append(res.Conflicts, RecurrenceConflict{Date: target.Date, Time: target.Time, Reason: err.Error()})
		}
	}

	s.logger.Info().
		Str("contract", contract.Code).
		Int("created", res.CreatedCount).
		Int("conflicts", len(res.Conflicts)).
		Msg("recurring series created")
	return res, nil
}

func (s *Service) recurringTargets(in CreateRecurringInput, origin *Slot, originTime string) ([]SlotDate, error) {
	if len(in.Slots) > 0 {
		return in.Slots, nil
	}
	if len(in.Dates) > 0 {
		targets := make([]SlotDate, 0, len(in.Dates))
		for _, d := range in.Dates {
			targets = append(targets, SlotDate{Date: d, Time: originTime})
		}
		return targets, nil
	}

	// Fallback cadence walk. This legacy path ignores skip dates.
	targets := make([]SlotDate, 0, in.Count)
	date := civil.DateOf(origin.Start)
	for i := 0; i < in.Count; i++ {
		targets = append(targets, SlotDate{Date: date, Time: originTime})
		next, err := stepDate(date, in.Frequency)
		if err != nil {
			return nil, err
		}
		date = next
	}
	return targets, nil
}

func (s *Service) bookRecurringTarget(ctx context.Context, origin *Slot, contract *Contract, target SlotDate, mins int, in CreateRecurringInput, res *CreateRecurringResult) error {
	start, err := civil.ToInstant(target.Date, target.Time)
	if err != nil {
		return err
	}
	end := start.Add(time.Duration(mins) * time.Minute)

	existing, err := s.repo.ListSlotsAt(ctx, start)
	if err != nil {
		return fmt.Errorf("list slots at %s: %w", start, err)
	}

	// Prefer converting the origin slot itself, then any vacant-status
	// occupant; anything else blocks the date.
	var convert *Slot
	for i := range existing {
		if existing[i].ID == origin.ID {
			convert = &existing[i]
			break
		}
	}
	if convert == nil {
		for i := range existing {
			if existing[i].Status.IsVacant() {
				convert = &existing[i]
				break
			}
		}
	}
	if convert == nil && len(existing) > 0 {
		reason, _ := probeReason(&existing[0])
		res.Conflicts = append(res.Conflicts, RecurrenceConflict{Date: target.Date, Time: target.Time, Reason: reason})
		return nil
	}

	var booked *Slot
	if convert != nil {
		convert.Status = StatusContracted
		convert.EventType = origin.EventType
		convert.PriceCategory = origin.PriceCategory
		convert.Price = origin.Price
		convert.PatientID = origin.PatientID
		convert.ContractID = &contract.ID
		convert.End = end
		convert.IsPaid = in.Payments[target.Date]
		convert.IsInaugural = in.Inaugurals[target.Date]
		convert.RemindWeekBefore = in.RemindWeekBefore
		convert.RemindDayBefore = in.RemindDayBefore
		booked, err = s.repo.UpdateSlot(ctx, convert)
		if err != nil {
			return fmt.Errorf("convert slot: %w", err)
		}
	} else {
		booked, err = s.repo.InsertSlot(ctx, &Slot{
			ID:               uuid.New(),
			Start:            start,
			End:              end,
			EventType:        origin.EventType,
			PriceCategory:    origin.PriceCategory,
			Price:            origin.Price,
			Status:           StatusContracted,
			PatientID:        origin.PatientID,
			ContractID:       &contract.ID,
			IsPaid:           in.Payments[target.Date],
			IsInaugural:      in.Inaugurals[target.Date],
			RemindWeekBefore: in.RemindWeekBefore,
			RemindDayBefore:  in.RemindDayBefore,
		})
		if err != nil {
			return fmt.Errorf("insert contracted slot: %w", err)
		}
	}

	// CONTRATADO is exclusive; leftover siblings at the instant go away.
	if err := s.applyExclusivity(ctx, booked.ID, booked.Start, StatusContracted, booked.EventType); err != nil {
		return err
	}

	res.CreatedCount++
	return nil
}

func (s *Service) refreshPatient(ctx context.Context, id uuid.UUID, name, phone, email *string) error {
	if name == nil && phone == nil && email == nil {
		return nil
	}
	patient, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return err
	}
	if name != nil && *name != "" {
		patient.Name = *name
	}
	if phone != nil {
		patient.Phone = phone
	}
	if email != nil {
		patient.Email = email
	}
	if _, err := s.repo.UpdatePatient(ctx, patient); err != nil {
		return fmt.Errorf("refresh patient: %w", err)
	}
	return nil
}
