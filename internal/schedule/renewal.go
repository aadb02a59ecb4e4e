package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
)

// renewalSlideLimit bounds how many frequency steps one occurrence may
// slide forward looking for an open date.
const renewalSlideLimit = 8

// RenewalSummary reports one run of the daily renewal job.
type RenewalSummary struct {
	ProcessedCount        int      `json:"processedCount"`
	RenewedCount          int      `json:"renewedCount"`
	SkippedAlreadyRenewed int      `json:"skippedAlreadyRenewed"`
	SkippedNoSlots        int      `json:"skippedNoSlots"`
	TotalSlotsCreated     int      `json:"totalSlotsCreated"`
	Errors                []string `json:"errors"`
}

// RunDailyRenewal extends every auto-renewal contract whose last slot
// ends today by one full cycle of its recurring pattern, sliding each new
// occurrence to the next open date on conflict. Contracts are processed
// sequentially and failures are isolated: one bad contract lands in the
// error list and the batch continues.
func (s *Service) RunDailyRenewal(ctx context.Context) (*RenewalSummary, error) {
	today := civil.DateOf(s.now())
	dayStart, dayEnd, err := civil.DayWindow(today)
	if err != nil {
		return nil, err
	}

	contracts, err := s.repo.ListRenewableContractsEnding(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list renewable contracts: %w", err)
	}

	summary := &RenewalSummary{Errors: []string{}}
	for i := range contracts {
		contract := &contracts[i]
		summary.ProcessedCount++

		created, err := s.renewContract(ctx, contract, dayEnd, summary)
		if err != nil {
			s.logger.Error().Err(err).Str("contract", contract.Code).Msg("contract renewal failed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("contrato %s: %v", contract.Code, err))
			continue
		}
		if created > 0 {
			summary.RenewedCount++
			summary.TotalSlotsCreated += created
		}
	}

	s.logger.Info().
		Str("date", today).
		Int("processed", summary.ProcessedCount).
		Int("renewed", summary.RenewedCount).
		Int("slots_created", summary.TotalSlotsCreated).
		Int("errors", len(summary.Errors)).
		Msg("daily renewal run complete")
	return summary, nil
}

// renewContract replicates one contract's pattern forward. Returns the
// number of slots created, or 0 when the contract was skipped (the skip
// counters on the summary are updated here).
func (s *Service) renewContract(ctx context.Context, contract *Contract, dayEnd time.Time, summary *RenewalSummary) (int, error) {
	slots, err := s.repo.ListSlotsByContract(ctx, contract.ID)
	if err != nil {
		return 0, fmt.Errorf("list contract slots: %w", err)
	}
	if len(slots) == 0 {
		summary.SkippedNoSlots++
		return 0, nil
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	last := &slots[len(slots)-1]

	// Idempotency guard: a member slot already past today's window means
	// a prior run (or a manual extension) renewed this contract.
	for i := range slots {
		if !slots[i].Start.Before(dayEnd) {
			summary.SkippedAlreadyRenewed++
			return 0, nil
		}
	}

	hhmm := civil.TimeOf(last.Start)
	mins := ResolveDuration(last.EventType, last.PriceCategory, &last.Start, &last.End)

	date, err := stepDate(civil.DateOf(last.Start), contract.Frequency)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < len(slots); i++ {
		openDate, probeErr := s.slideToOpenDate(ctx, date, hhmm, mins, contract.Frequency)
		if probeErr != nil {
			return created, probeErr
		}
		if openDate == "" {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("contrato %s: nenhuma data livre a partir de %s %s", contract.Code, date, hhmm))
			if date, err = stepDate(date, contract.Frequency); err != nil {
				return created, err
			}
			continue
		}

		if err := s.insertRenewalSlot(ctx, last, contract.ID, openDate, hhmm, mins); err != nil {
			return created, err
		}
		created++

		if date, err = stepDate(openDate, contract.Frequency); err != nil {
			return created, err
		}
	}
	return created, nil
}

// slideToOpenDate probes the candidate date and steps forward by the
// contract cadence until it finds an open one, up to renewalSlideLimit
// attempts. An empty string means nothing opened within the limit.
func (s *Service) slideToOpenDate(ctx context.Context, date, hhmm string, mins int, freq Frequency) (string, error) {
	for attempt := 0; attempt < renewalSlideLimit; attempt++ {
		probe, err := s.ProbeOverlap(ctx, date, hhmm, mins, nil)
		if err != nil {
			return "", err
		}
		if !probe.HasConflict {
			return date, nil
		}
		next, err := stepDate(date, freq)
		if err != nil {
			return "", err
		}
		date = next
	}
	return "", nil
}

func (s *Service) insertRenewalSlot(ctx context.Context, pattern *Slot, contractID uuid.UUID, date, hhmm string, mins int) error {
	start, err := civil.ToInstant(date, hhmm)
	if err != nil {
		return err
	}

	_, err = s.repo.InsertSlot(ctx, &Slot{
		ID:               uuid.New(),
		Start:            start,
		End:              start.Add(time.Duration(mins) * time.Minute),
		EventType:        pattern.EventType,
		PriceCategory:    pattern.PriceCategory,
		Price:            pattern.Price,
		Status:           StatusContracted,
		PatientID:        pattern.PatientID,
		ContractID:       &contractID,
		RemindWeekBefore: pattern.RemindWeekBefore,
		RemindDayBefore:  pattern.RemindDayBefore,
	})
	if err != nil {
		return fmt.Errorf("insert renewal slot on %s: %w", date, err)
	}
	return nil
}
