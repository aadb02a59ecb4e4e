package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// memRepo is an in-memory Repository used by the package tests.
type memRepo struct {
	mu          sync.Mutex
	slots       map[uuid.UUID]Slot
	contracts   map[uuid.UUID]Contract
	patients    map[uuid.UUID]Patient
	blockedDays map[string]BlockedDay
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots:       map[uuid.UUID]Slot{},
		contracts:   map[uuid.UUID]Contract{},
		patients:    map[uuid.UUID]Patient{},
		blockedDays: map[string]BlockedDay{},
	}
}

func (m *memRepo) GetSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := s
	return &out, nil
}

func (m *memRepo) ListSlotsInRange(_ context.Context, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *memRepo) ListSlotsAt(_ context.Context, start time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.Start.Equal(start) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *memRepo) InsertSlot(_ context.Context, s *Slot) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	m.slots[s.ID] = *s
	out := *s
	return &out, nil
}

func (m *memRepo) UpdateSlot(_ context.Context, s *Slot) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[s.ID]; !ok {
		return nil, ErrSlotNotFound
	}
	s.UpdatedAt = time.Now()
	m.slots[s.ID] = *s
	out := *s
	return &out, nil
}

func (m *memRepo) DeleteSlot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[id]; !ok {
		return ErrSlotNotFound
	}
	delete(m.slots, id)
	return nil
}

func (m *memRepo) DeleteSlotsAtExcept(_ context.Context, start time.Time, keep uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.slots {
		if s.Start.Equal(start) && id != keep {
			delete(m.slots, id)
			removed++
		}
	}
	return removed, nil
}

func (m *memRepo) InsertContract(_ context.Context, c *Contract) (*Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now()
	m.contracts[c.ID] = *c
	out := *c
	return &out, nil
}

func (m *memRepo) GetContract(_ context.Context, id uuid.UUID) (*Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contracts[id]
	if !ok {
		return nil, ErrContractNotFound
	}
	out := c
	return &out, nil
}

func (m *memRepo) ListSlotsByContract(_ context.Context, contractID uuid.UUID) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.ContractID != nil && *s.ContractID == contractID {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (m *memRepo) ListRenewableContractsEnding(_ context.Context, from, to time.Time) ([]Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Contract
	for id, c := range m.contracts {
		if !c.AutoRenewal {
			continue
		}
		var lastEnd time.Time
		for _, s := range m.slots {
			if s.ContractID != nil && *s.ContractID == id && s.End.After(lastEnd) {
				lastEnd = s.End
			}
		}
		if !lastEnd.IsZero() && !lastEnd.Before(from) && lastEnd.Before(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memRepo) PatientHasContract(_ context.Context, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.PatientID != nil && *s.PatientID == patientID && s.ContractID != nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	out := p
	return &out, nil
}

func (m *memRepo) FindPatientByPhone(_ context.Context, phone string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.Phone != nil && *p.Phone == phone {
			out := p
			return &out, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *memRepo) FindPatientByEmail(_ context.Context, email string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.Email != nil && *p.Email == email {
			out := p
			return &out, nil
		}
	}
	return nil, ErrPatientNotFound
}

func (m *memRepo) InsertPatient(_ context.Context, p *Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = *p
	out := *p
	return &out, nil
}

func (m *memRepo) UpdatePatient(_ context.Context, p *Patient) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.ID]; !ok {
		return nil, ErrPatientNotFound
	}
	m.patients[p.ID] = *p
	out := *p
	return &out, nil
}

func (m *memRepo) IsDayBlocked(_ context.Context, date string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blockedDays[date]
	return ok, nil
}

func (m *memRepo) InsertBlockedDay(_ context.Context, b *BlockedDay) (*BlockedDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockedDays[b.Date] = *b
	out := *b
	return &out, nil
}

func (m *memRepo) DeleteBlockedDay(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blockedDays[date]; !ok {
		return ErrDayAlreadyOpen
	}
	delete(m.blockedDays, date)
	return nil
}

func (m *memRepo) ListBlockedDays(_ context.Context) ([]BlockedDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BlockedDay
	for _, b := range m.blockedDays {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Start.Equal(slots[j].Start) {
			return slots[i].Start.Before(slots[j].Start)
		}
		return slots[i].SiblingOrder < slots[j].SiblingOrder
	})
}

// passLocker runs the critical section without any locking.
type passLocker struct{}

func (passLocker) WithStartLock(ctx context.Context, _ time.Time, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// spyNotifier records reservation webhooks and optionally fails them.
type spyNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (n *spyNotifier) NotifyReservation(_ context.Context, _, _ string, slotID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, slotID)
	return n.err
}

func newTestService() (*Service, *memRepo, *spyNotifier) {
	repo := newMemRepo()
	notifier := &spyNotifier{}
	svc := NewService(repo, passLocker{}, notifier, zerolog.Nop())
	return svc, repo, notifier
}

// Test fixture helpers.

func strPtr(s string) *string      { return &s }
func intPtr(n int) *int            { return &n }
func etPtr(et EventType) *EventType { return &et }
