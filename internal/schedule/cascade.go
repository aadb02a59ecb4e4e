package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// applyExclusivity enforces the one-exclusive-slot-per-instant rule. When
// a slot reaches CONFIRMADO or CONTRATADO, or is a personal activity,
// every sibling at the same start instant is deleted outright and the
// surviving slot takes sibling order 0.
func (s *Service) applyExclusivity(ctx context.Context, slotID uuid.UUID, start time.Time, newStatus Status, eventType *EventType) error {
	personal := eventType != nil && *eventType == EventPersonal
	if !newStatus.IsExclusive() && !personal {
		return nil
	}

	removed, err := s.repo.DeleteSlotsAtExcept(ctx, start, slotID)
	if err != nil {
		return fmt.Errorf("purge siblings at %s: %w", start, err)
	}
	if removed > 0 {
		s.logger.Info().
			Str("slot_id", slotID.String()).
			Time("start", start).
			Int("removed", removed).
			Msg("exclusivity purge")
	}

	survivor, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return fmt.Errorf("load surviving slot: %w", err)
	}
	if survivor.SiblingOrder != 0 {
		survivor.SiblingOrder = 0
		if _, err := s.repo.UpdateSlot(ctx, survivor); err != nil {
			return fmt.Errorf("reset sibling order: %w", err)
		}
	}
	return nil
}

// adjustSiblingStatus applies the softer cascade: a slot moving to
// RESERVADO or CONFIRMADO demotes its siblings to AGUARDANDO; a slot
// released back to vacant frees the placeholders it had suppressed.
func (s *Service) adjustSiblingStatus(ctx context.Context, slotID uuid.UUID, start time.Time, newStatus Status) error {
	normalized := NormalizeStatus(string(newStatus))
	demote := normalized == StatusReserved || normalized == StatusConfirmed
	release := normalized == StatusVacant
	if !demote && !release {
		return nil
	}

	siblings, err := s.repo.ListSlotsAt(ctx, start)
	if err != nil {
		return fmt.Errorf("list siblings at %s: %w", start, err)
	}

	for i := range siblings {
		sib := &siblings[i]
		if sib.ID == slotID {
			continue
		}
		switch {
		case demote && NormalizeStatus(string(sib.Status)) != StatusWaiting:
			sib.Status = StatusWaiting
		case release && NormalizeStatus(string(sib.Status)) == StatusWaiting:
			sib.Status = StatusVacant
			sib.PatientID = nil
			sib.ContractID = nil
			sib.FlowStatus = nil
		default:
			continue
		}
		if _, err := s.repo.UpdateSlot(ctx, sib); err != nil {
			return fmt.Errorf("adjust sibling %s: %w", sib.ID, err)
		}
	}
	return nil
}

// repackSiblings rewrites the sibling orders at a start instant into a
// contiguous 0..n-1 sequence, preserving the prior relative order.
func (s *Service) repackSiblings(ctx context.Context, start time.Time) error {
	siblings, err := s.repo.ListSlotsAt(ctx, start)
	if err != nil {
		return fmt.Errorf("list siblings at %s: %w", start, err)
	}
	for i := range siblings {
		if siblings[i].SiblingOrder == i {
			continue
		}
		siblings[i].SiblingOrder = i
		if _, err := s.repo.UpdateSlot(ctx, &siblings[i]); err != nil {
			return fmt.Errorf("repack sibling %s: %w", siblings[i].ID, err)
		}
	}
	return nil
}
