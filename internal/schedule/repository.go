package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all store interactions the scheduling core needs.
type Repository interface {
	// Slots
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListSlotsInRange returns slots whose Start falls in [from, to),
	// ordered by Start then SiblingOrder.
	ListSlotsInRange(ctx context.Context, from, to time.Time) ([]Slot, error)
	// ListSlotsAt returns the slots sharing the exact start instant,
	// ordered by SiblingOrder.
	ListSlotsAt(ctx context.Context, start time.Time) ([]Slot, error)
	InsertSlot(ctx context.Context, s *Slot) (*Slot, error)
	UpdateSlot(ctx context.Context, s *Slot) (*Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	// DeleteSlotsAtExcept removes every slot at the start instant other
	// than keep, returning how many were removed.
	DeleteSlotsAtExcept(ctx context.Context, start time.Time, keep uuid.UUID) (int, error)

	// Contracts
	InsertContract(ctx context.Context, c *Contract) (*Contract, error)
	GetContract(ctx context.Context, id uuid.UUID) (*Contract, error)
	ListSlotsByContract(ctx context.Context, contractID uuid.UUID) ([]Slot, error)
	// ListRenewableContractsEnding returns auto-renewal contracts whose
	// latest member slot ends within [from, to).
	ListRenewableContractsEnding(ctx context.Context, from, to time.Time) ([]Contract, error)
	// PatientHasContract reports whether the patient owns any contract.
	PatientHasContract(ctx context.Context, patientID uuid.UUID) (bool, error)

	// Patients
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	FindPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	FindPatientByEmail(ctx context.Context, email string) (*Patient, error)
	InsertPatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) (*Patient, error)

	// Blocked days
	IsDayBlocked(ctx context.Context, date string) (bool, error)
	InsertBlockedDay(ctx context.Context, b *BlockedDay) (*BlockedDay, error)
	DeleteBlockedDay(ctx context.Context, date string) error
	ListBlockedDays(ctx context.Context) ([]BlockedDay, error)
}
