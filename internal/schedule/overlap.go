package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
)

// Probe is the read-only overlap verdict used by recurrence previews and
// the renewal job.
type Probe struct {
	HasConflict bool
	Reason      string
}

// CheckOverlap verifies that a proposed interval on a civil date is free.
// It fails with DayBlockedError when the whole date is blocked, and with
// ConflictError when the interval intersects an occupied slot. Vacant
// placeholder rows are transparent. exclude, when set, removes one slot
// (typically the one being edited) from consideration.
func (s *Service) CheckOverlap(ctx context.Context, date, hhmm string, durationMin int, exclude *uuid.UUID) error {
	blocked, err := s.repo.IsDayBlocked(ctx, date)
	if err != nil {
		return fmt.Errorf("check blocked day: %w", err)
	}
	if blocked {
		return &DayBlockedError{Date: date}
	}

	start, err := civil.ToInstant(date, hhmm)
	if err != nil {
		return err
	}
	end := start.Add(time.Duration(durationMin) * time.Minute)

	candidates, err := s.daySlots(ctx, date)
	if err != nil {
		return err
	}

	for i := range candidates {
		cand := &candidates[i]
		if exclude != nil && cand.ID == *exclude {
			continue
		}
		if cand.IsVacant() {
			continue
		}
		if !intersects(start, end, cand.Start, cand.End) {
			continue
		}
		if NormalizeStatus(string(cand.Status)) == StatusUnavailable {
			return &ConflictError{Time: civil.TimeOf(cand.Start), Unavailable: true}
		}
		mins := ResolveDuration(cand.EventType, cand.PriceCategory, &cand.Start, &cand.End)
		return &ConflictError{Time: civil.TimeOf(cand.Start), Duration: civil.FormatMinutes(mins)}
	}
	return nil
}

// ProbeOverlap is the non-failing variant of CheckOverlap. It applies a
// broader occupancy rule (any committed-ish status or any event type
// occupies) and reports the highest-priority conflict reason instead of
// returning an error.
func (s *Service) ProbeOverlap(ctx context.Context, date, hhmm string, durationMin int, exclude *uuid.UUID) (Probe, error) {
	blocked, err := s.repo.IsDayBlocked(ctx, date)
	if err != nil {
		return Probe{}, fmt.Errorf("check blocked day: %w", err)
	}
	if blocked {
		return Probe{HasConflict: true, Reason: "Dia bloqueado"}, nil
	}

	start, err := civil.ToInstant(date, hhmm)
	if err != nil {
		return Probe{}, err
	}
	end := start.Add(time.Duration(durationMin) * time.Minute)

	candidates, err := s.daySlots(ctx, date)
	if err != nil {
		return Probe{}, err
	}

	best := Probe{}
	bestRank := len(probeReasonRanks) + 2
	for i := range candidates {
		cand := &candidates[i]
		if exclude != nil && cand.ID == *exclude {
			continue
		}
		if !probeOccupied(cand) {
			continue
		}
		if !intersects(start, end, cand.Start, cand.End) {
			continue
		}
		reason, rank := probeReason(cand)
		if rank < bestRank {
			best = Probe{HasConflict: true, Reason: reason}
			bestRank = rank
		}
	}
	return best, nil
}

func (s *Service) daySlots(ctx context.Context, date string) ([]Slot, error) {
	from, to, err := civil.DayWindow(date)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlotsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list slots on %s: %w", date, err)
	}
	return slots, nil
}

// intersects applies half-open interval semantics: [s1,e1) and [s2,e2)
// overlap iff s1 < e2 && e1 > s2. Exactly adjacent intervals do not.
func intersects(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// probeOccupied is the broader classification used by previews: a slot
// occupies its interval when it holds any committed-ish status or any
// event type.
func probeOccupied(s *Slot) bool {
	switch NormalizeStatus(string(s.Status)) {
	case StatusConfirmed, StatusReserved, StatusContracted, StatusUnavailable, StatusWaiting:
		return true
	}
	return s.EventType != nil
}

var probeReasonRanks = map[Status]int{
	StatusUnavailable: 0,
	StatusConfirmed:   1,
	StatusReserved:    2,
	StatusContracted:  3,
}

func probeReason(s *Slot) (string, int) {
	st := NormalizeStatus(string(s.Status))
	if rank, ok := probeReasonRanks[st]; ok {
		switch st {
		case StatusUnavailable:
			return "Indisponível", rank
		case StatusConfirmed:
			return "Confirmado", rank
		case StatusReserved:
			return "Reservado", rank
		default:
			return "Contratado", rank
		}
	}
	if s.IsPersonal() {
		if s.PersonalActivity != nil && *s.PersonalActivity != "" {
			return *s.PersonalActivity, 4
		}
		return "Atividade pessoal", 4
	}
	if !st.IsVacant() {
		return string(st), 5
	}
	return "Ocupado", 6
}
