package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `id, start_at, end_at, event_type, price_category, price,
	personal_activity, status, patient_id, contract_id, sibling_order,
	is_paid, is_inaugural, flow_status, remind_week_before, remind_day_before,
	created_at, updated_at`

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var eventType, status *string

	err := row.Scan(
		&s.ID,
		&s.Start,
		&s.End,
		&eventType,
		&s.PriceCategory,
		&s.Price,
		&s.PersonalActivity,
		&status,
		&s.PatientID,
		&s.ContractID,
		&s.SiblingOrder,
		&s.IsPaid,
		&s.IsInaugural,
		&s.FlowStatus,
		&s.RemindWeekBefore,
		&s.RemindDayBefore,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	if eventType != nil {
		et := EventType(*eventType)
		s.EventType = &et
	}
	if status != nil {
		s.Status = NormalizeStatus(*status)
	} else {
		s.Status = StatusVacant
	}
	return &s, nil
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Phone,
		&p.Email,
		&p.Consent,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanContract(row pgx.Row) (*Contract, error) {
	var c Contract
	var freq string

	err := row.Scan(
		&c.ID,
		&c.Code,
		&freq,
		&c.AutoRenewal,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, err
	}

	c.Frequency = Frequency(freq)
	return &c, nil
}

// Slots

func (r *PgRepository) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsInRange(ctx context.Context, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE start_at >= $1 AND start_at < $2
		ORDER BY start_at, sibling_order
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

func (r *PgRepository) ListSlotsAt(ctx context.Context, start time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE start_at = $1
		ORDER BY sibling_order
	`, start)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

func (r *PgRepository) InsertSlot(ctx context.Context, s *Slot) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, start_at, end_at, event_type, price_category, price,
			personal_activity, status, patient_id, contract_id, sibling_order,
			is_paid, is_inaugural, flow_status, remind_week_before, remind_day_before,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())
		RETURNING `+slotColumns+`
	`,
		s.ID, s.Start, s.End, eventTypePtr(s.EventType), s.PriceCategory, s.Price,
		s.PersonalActivity, string(s.Status), s.PatientID, s.ContractID, s.SiblingOrder,
		s.IsPaid, s.IsInaugural, s.FlowStatus, s.RemindWeekBefore, s.RemindDayBefore,
	)
	return scanSlot(row)
}

func (r *PgRepository) UpdateSlot(ctx context.Context, s *Slot) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET start_at = $2,
		    end_at = $3,
		    event_type = $4,
		    price_category = $5,
		    price = $6,
		    personal_activity = $7,
		    status = $8,
		    patient_id = $9,
		    contract_id = $10,
		    sibling_order = $11,
		    is_paid = $12,
		    is_inaugural = $13,
		    flow_status = $14,
		    remind_week_before = $15,
		    remind_day_before = $16,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`,
		s.ID, s.Start, s.End, eventTypePtr(s.EventType), s.PriceCategory, s.Price,
		s.PersonalActivity, string(s.Status), s.PatientID, s.ContractID, s.SiblingOrder,
		s.IsPaid, s.IsInaugural, s.FlowStatus, s.RemindWeekBefore, s.RemindDayBefore,
	)
	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) DeleteSlotsAtExcept(ctx context.Context, start time.Time, keep uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE start_at = $1 AND id <> $2
	`, start, keep)
	if err != nil {
		return 0, fmt.Errorf("delete siblings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Contracts

func (r *PgRepository) InsertContract(ctx context.Context, c *Contract) (*Contract, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO contracts (id, code, frequency, auto_renewal, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, code, frequency, auto_renewal, created_at
	`, c.ID, c.Code, string(c.Frequency), c.AutoRenewal)
	return scanContract(row)
}

func (r *PgRepository) GetContract(ctx context.Context, id uuid.UUID) (*Contract, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, frequency, auto_renewal, created_at
		FROM contracts
		WHERE id = $1
	`, id)
	return scanContract(row)
}

func (r *PgRepository) ListSlotsByContract(ctx context.Context, contractID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE contract_id = $1
		ORDER BY start_at
	`, contractID)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

func (r *PgRepository) ListRenewableContractsEnding(ctx context.Context, from, to time.Time) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.code, c.frequency, c.auto_renewal, c.created_at
		FROM contracts c
		JOIN (
			SELECT contract_id, max(end_at) AS last_end
			FROM slots
			WHERE contract_id IS NOT NULL
			GROUP BY contract_id
		) m ON m.contract_id = c.id
		WHERE c.auto_renewal
		  AND m.last_end >= $1 AND m.last_end < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) PatientHasContract(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM slots
			WHERE patient_id = $1 AND contract_id IS NOT NULL
		)
	`, patientID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Patients

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, consent, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FindPatientByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, consent, created_at, updated_at
		FROM patients
		WHERE phone = $1
		ORDER BY created_at
		LIMIT 1
	`, phone)
	return scanPatient(row)
}

func (r *PgRepository) FindPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, consent, created_at, updated_at
		FROM patients
		WHERE email = $1
		ORDER BY created_at
		LIMIT 1
	`, email)
	return scanPatient(row)
}

func (r *PgRepository) InsertPatient(ctx context.Context, p *Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone, email, consent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, name, phone, email, consent, created_at, updated_at
	`, p.ID, p.Name, p.Phone, p.Email, p.Consent)
	return scanPatient(row)
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = $2,
		    phone = $3,
		    email = $4,
		    consent = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, name, phone, email, consent, created_at, updated_at
	`, p.ID, p.Name, p.Phone, p.Email, p.Consent)
	return scanPatient(row)
}

// Blocked days

func (r *PgRepository) IsDayBlocked(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blocked_days WHERE day = $1)
	`, date).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) InsertBlockedDay(ctx context.Context, b *BlockedDay) (*BlockedDay, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocked_days (id, day, reason, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, day, reason, created_at
	`, b.ID, b.Date, b.Reason)

	var out BlockedDay
	if err := row.Scan(&out.ID, &out.Date, &out.Reason, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PgRepository) DeleteBlockedDay(ctx context.Context, date string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blocked_days WHERE day = $1`, date)
	if err != nil {
		return fmt.Errorf("delete blocked day: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDayAlreadyOpen
	}
	return nil
}

func (r *PgRepository) ListBlockedDays(ctx context.Context) ([]BlockedDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, day, reason, created_at
		FROM blocked_days
		ORDER BY day
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlockedDay
	for rows.Next() {
		var b BlockedDay
		if err := rows.Scan(&b.ID, &b.Date, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func eventTypePtr(et *EventType) *string {
	if et == nil {
		return nil
	}
	s := string(*et)
	return &s
}
