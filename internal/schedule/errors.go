package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrSlotNotFound     = errors.New("slot not found")
	ErrPatientNotFound  = errors.New("patient not found")
	ErrContractNotFound = errors.New("contract not found")
	ErrDayAlreadyOpen   = errors.New("day is not blocked")
	ErrPatientRequired  = errors.New("slot has no patient attached")
)

// DayBlockedError rejects any booking on a blocked civil date.
type DayBlockedError struct {
	Date string
}

func (e *DayBlockedError) Error() string {
	return fmt.Sprintf("dia %s bloqueado para agendamentos", e.Date)
}

// ConflictError rejects a proposed interval that intersects an occupied
// one. Time is the colliding slot's local "HH:MM"; Unavailable marks a
// collision with an INDISPONIVEL slot, otherwise Duration carries the
// occupying slot's formatted length ("1h", "1h30m", "30m").
type ConflictError struct {
	Time        string
	Unavailable bool
	Duration    string
}

func (e *ConflictError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("horário %s indisponível", e.Time)
	}
	return fmt.Sprintf("conflito com agendamento às %s (%s)", e.Time, e.Duration)
}
