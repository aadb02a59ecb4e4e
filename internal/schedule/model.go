package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Status is the closed set of slot states. The original calendar data
// carries free-form strings; NormalizeStatus folds them into this set at
// the persistence boundary so that "" / "Vago" / "VAGO" behave as one
// vacant state everywhere.
type Status string

const (
	StatusVacant      Status = "Vago"
	StatusWaiting     Status = "AGUARDANDO"
	StatusReserved    Status = "RESERVADO"
	StatusConfirmed   Status = "CONFIRMADO"
	StatusContracted  Status = "CONTRATADO"
	StatusUnavailable Status = "INDISPONIVEL"
	StatusPending     Status = "PENDENTE"

	// Terminal states for personal activities.
	StatusDone    Status = "CONCLUIDO"
	StatusNotDone Status = "NAO_REALIZADO"
)

// NormalizeStatus folds raw stored strings into the closed Status set.
// Unknown values pass through unchanged so legacy rows stay readable.
func NormalizeStatus(raw string) Status {
	switch raw {
	case "", "Vago", "VAGO", "vago":
		return StatusVacant
	default:
		return Status(raw)
	}
}

// IsVacant reports whether the status counts as the vacant state.
func (s Status) IsVacant() bool {
	return NormalizeStatus(string(s)) == StatusVacant
}

// IsExclusive reports whether the status claims its start instant
// exclusively, purging siblings when reached.
func (s Status) IsExclusive() bool {
	return s == StatusConfirmed || s == StatusContracted
}

// EventType classifies a slot's session kind. A nil EventType on a slot
// means the slot is an empty grid placeholder.
type EventType string

const (
	EventOnline     EventType = "online"
	EventPresential EventType = "presential"
	EventPersonal   EventType = "personal"
)

// Frequency is the cadence of a recurring contract.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Slot is the atomic bookable unit. Start and End are absolute instants;
// the civil date and "HH:MM" views are derived, never authoritative.
type Slot struct {
	ID               uuid.UUID
	Start            time.Time
	End              time.Time
	EventType        *EventType
	PriceCategory    *string
	Price            *int
	PersonalActivity *string
	Status           Status
	PatientID        *uuid.UUID
	ContractID       *uuid.UUID
	SiblingOrder     int
	IsPaid           bool
	IsInaugural      bool
	FlowStatus       *string
	RemindWeekBefore bool
	RemindDayBefore  bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsPersonal reports whether the slot is a personal activity.
func (s *Slot) IsPersonal() bool {
	return s.EventType != nil && *s.EventType == EventPersonal
}

// IsVacant reports whether the slot is transparent to conflict detection:
// no event type and a vacant status.
func (s *Slot) IsVacant() bool {
	return s.EventType == nil && s.Status.IsVacant()
}

// Contract groups the slots of one recurring series. End and "last slot"
// are derived from member slots, not stored.
type Contract struct {
	ID          uuid.UUID
	Code        string // 5-digit human-facing code
	Frequency   Frequency
	AutoRenewal bool
	CreatedAt   time.Time
}

// BlockedDay marks a civil date as closed for new bookings.
type BlockedDay struct {
	ID        uuid.UUID
	Date      string // "YYYY-MM-DD"
	Reason    *string
	CreatedAt time.Time
}

// Patient is the minimal patient record the scheduling core needs.
type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	Consent   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
