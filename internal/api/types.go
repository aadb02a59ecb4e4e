package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
	"github.com/vivaagenda/practice-scheduling/internal/schedule"
)

type CreateSlotRequest struct {
	Date             string  `json:"date"`
	Time             string  `json:"time"`
	EventType        *string `json:"eventType,omitempty"`
	PriceCategory    *string `json:"priceCategory,omitempty"`
	Price            *int    `json:"price,omitempty"`
	Status           *string `json:"status,omitempty"`
	PersonalActivity *string `json:"personalActivity,omitempty"`
	PatientID        *string `json:"patientId,omitempty"`
	PatientName      *string `json:"patientName,omitempty"`
	PatientPhone     *string `json:"patientPhone,omitempty"`
	PatientEmail     *string `json:"patientEmail,omitempty"`
}

type CreateDoubleRequest struct {
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Type1         string  `json:"type1"`
	Type2         string  `json:"type2"`
	PriceCategory *string `json:"priceCategory,omitempty"`
	Status        *string `json:"status,omitempty"`
}

type UpdateSlotRequest struct {
	EventType        *string    `json:"eventType,omitempty"`
	PriceCategory    *string    `json:"priceCategory,omitempty"`
	Price            *int       `json:"price,omitempty"`
	Status           *string    `json:"status,omitempty"`
	PersonalActivity *string    `json:"personalActivity,omitempty"`
	PatientID        *string    `json:"patientId,omitempty"`
	ContractID       *string    `json:"contractId,omitempty"`
	IsPaid           *bool      `json:"isPaid,omitempty"`
	IsInaugural      *bool      `json:"isInaugural,omitempty"`
	FlowStatus       *string    `json:"flowStatus,omitempty"`
	RemindWeekBefore *bool      `json:"remindWeekBefore,omitempty"`
	RemindDayBefore  *bool      `json:"remindDayBefore,omitempty"`
	End              *time.Time `json:"end,omitempty"`
}

type ReserveRequest struct {
	PatientName  string `json:"patientName"`
	PatientPhone string `json:"patientPhone"`
}

type ChangeTimeRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type BlockDayRequest struct {
	Date   string  `json:"date"`
	Reason *string `json:"reason,omitempty"`
}

type PreviewRecurringRequest struct {
	Frequency string   `json:"frequency"`
	Count     int      `json:"count"`
	SkipDates []string `json:"skipDates,omitempty"`
}

type CreateRecurringRequest struct {
	Frequency        string            `json:"frequency"`
	Count            int               `json:"count"`
	Slots            []SlotDateRequest `json:"slots,omitempty"`
	Dates            []string          `json:"dates,omitempty"`
	SkipDates        []string          `json:"skipDates,omitempty"`
	Payments         map[string]bool   `json:"payments,omitempty"`
	Inaugurals       map[string]bool   `json:"inaugurals,omitempty"`
	RemindWeekBefore bool              `json:"remindWeekBefore"`
	RemindDayBefore  bool              `json:"remindDayBefore"`
	AutoRenewal      bool              `json:"autoRenewal"`
	PatientName      *string           `json:"patientName,omitempty"`
	PatientPhone     *string           `json:"patientPhone,omitempty"`
	PatientEmail     *string           `json:"patientEmail,omitempty"`
}

type SlotDateRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type SlotResponse struct {
	ID               uuid.UUID  `json:"id"`
	Date             string     `json:"date"`
	Time             string     `json:"time"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	EventType        *string    `json:"eventType,omitempty"`
	PriceCategory    *string    `json:"priceCategory,omitempty"`
	Price            *int       `json:"price,omitempty"`
	PersonalActivity *string    `json:"personalActivity,omitempty"`
	Status           string     `json:"status"`
	PatientID        *uuid.UUID `json:"patientId,omitempty"`
	ContractID       *uuid.UUID `json:"contractId,omitempty"`
	SiblingOrder     int        `json:"siblingOrder"`
	IsPaid           bool       `json:"isPaid"`
	IsInaugural      bool       `json:"isInaugural"`
	FlowStatus       *string    `json:"flowStatus,omitempty"`
	RemindWeekBefore bool       `json:"remindWeekBefore"`
	RemindDayBefore  bool       `json:"remindDayBefore"`
}

func toSlotResponse(s *schedule.Slot) SlotResponse {
	resp := SlotResponse{
		ID:               s.ID,
		Date:             civil.DateOf(s.Start),
		Time:             civil.TimeOf(s.Start),
		Start:            s.Start,
		End:              s.End,
		PriceCategory:    s.PriceCategory,
		Price:            s.Price,
		PersonalActivity: s.PersonalActivity,
		Status:           string(s.Status),
		PatientID:        s.PatientID,
		ContractID:       s.ContractID,
		SiblingOrder:     s.SiblingOrder,
		IsPaid:           s.IsPaid,
		IsInaugural:      s.IsInaugural,
		FlowStatus:       s.FlowStatus,
		RemindWeekBefore: s.RemindWeekBefore,
		RemindDayBefore:  s.RemindDayBefore,
	}
	if s.EventType != nil {
		et := string(*s.EventType)
		resp.EventType = &et
	}
	return resp
}

func toSlotResponses(slots []schedule.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}

type BlockDayResponse struct {
	Date    string `json:"date"`
	Deleted int    `json:"deleted"`
	Kept    int    `json:"kept"`
}

type PreviewEntryResponse struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type PreviewRecurringResponse struct {
	Entries            []PreviewEntryResponse `json:"entries"`
	PatientHasContract bool                   `json:"patientHasContract"`
}

type CreateRecurringResponse struct {
	CreatedCount int                          `json:"createdCount"`
	ContractID   uuid.UUID                    `json:"contractId"`
	ContractCode string                       `json:"contractCode"`
	Conflicts    []RecurrenceConflictResponse `json:"conflicts"`
}

type RecurrenceConflictResponse struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

type BlockedDayResponse struct {
	Date   string  `json:"date"`
	Reason *string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
