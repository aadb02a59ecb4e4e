package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vivaagenda/practice-scheduling/internal/metrics"
	redisclient "github.com/vivaagenda/practice-scheduling/internal/redis"
	"github.com/vivaagenda/practice-scheduling/internal/schedule"
)

func createSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Date == "" || req.Time == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "date and time are required")
			return
		}

		eventType, ok := parseEventType(req.EventType)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_event_type", "eventType must be online, presential or personal")
			return
		}

		var patientID *uuid.UUID
		if req.PatientID != nil {
			id, err := uuid.Parse(*req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be a valid UUID")
				return
			}
			patientID = &id
		}

		slot, err := svc.Create(r.Context(), schedule.CreateSlotInput{
			Date:             req.Date,
			Time:             req.Time,
			EventType:        eventType,
			PriceCategory:    req.PriceCategory,
			Price:            req.Price,
			Status:           parseStatus(req.Status),
			PersonalActivity: req.PersonalActivity,
			PatientID:        patientID,
			PatientName:      req.PatientName,
			PatientPhone:     req.PatientPhone,
			PatientEmail:     req.PatientEmail,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		metrics.IncSlotCreated(string(slot.Status))
		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func createDoubleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoubleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		type1, ok1 := parseEventType(&req.Type1)
		type2, ok2 := parseEventType(&req.Type2)
		if !ok1 || !ok2 || type1 == nil || type2 == nil {
			writeError(w, http.StatusBadRequest, "invalid_event_type", "type1 and type2 must be valid event types")
			return
		}

		pair, err := svc.CreateDouble(r.Context(), req.Date, req.Time, *type1, *type2, req.PriceCategory, parseStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSlotResponses(pair))
	}
}

func listSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
			return
		}
		slots, err := svc.ListDay(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func getSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		slot, err := svc.GetSlot(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func updateSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}

		var req UpdateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		eventType, okET := parseEventType(req.EventType)
		if !okET {
			writeError(w, http.StatusBadRequest, "invalid_event_type", "eventType must be online, presential or personal")
			return
		}

		in := schedule.UpdateSlotInput{
			EventType:        eventType,
			PriceCategory:    req.PriceCategory,
			Price:            req.Price,
			Status:           parseStatus(req.Status),
			PersonalActivity: req.PersonalActivity,
			IsPaid:           req.IsPaid,
			IsInaugural:      req.IsInaugural,
			FlowStatus:       req.FlowStatus,
			RemindWeekBefore: req.RemindWeekBefore,
			RemindDayBefore:  req.RemindDayBefore,
			End:              req.End,
		}
		if req.PatientID != nil {
			pid, err := uuid.Parse(*req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be a valid UUID")
				return
			}
			in.PatientID = &pid
		}
		if req.ContractID != nil {
			cid, err := uuid.Parse(*req.ContractID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_contract_id", "contractId must be a valid UUID")
				return
			}
			in.ContractID = &cid
		}

		slot, err := svc.Update(r.Context(), id, in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func deleteSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func reserveSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}

		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.PatientName == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "patientName is required")
			return
		}

		slot, err := svc.Reserve(r.Context(), id, req.PatientName, req.PatientPhone)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func confirmSlotHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}
		slot, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func changeTimeHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}

		var req ChangeTimeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.ChangeTime(r.Context(), id, req.Date, req.Time)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(slot))
	}
}

func previewRecurringHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}

		var req PreviewRecurringRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		freq, ok := parseFrequency(req.Frequency)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_frequency", "frequency must be weekly, biweekly or monthly")
			return
		}
		if req.Count <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_count", "count must be positive")
			return
		}

		res, err := svc.PreviewRecurring(r.Context(), id, freq, req.Count, req.SkipDates)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := PreviewRecurringResponse{
			Entries:            make([]PreviewEntryResponse, 0, len(res.Entries)),
			PatientHasContract: res.PatientHasContract,
		}
		for _, e := range res.Entries {
			status := "available"
			if !e.Available {
				status = "occupied"
			}
			resp.Entries = append(resp.Entries, PreviewEntryResponse{Date: e.Date, Time: e.Time, Status: status, Reason: e.Reason})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createRecurringHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := slotID(w, r)
		if !ok {
			return
		}

		var req CreateRecurringRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		freq, ok := parseFrequency(req.Frequency)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_frequency", "frequency must be weekly, biweekly or monthly")
			return
		}

		in := schedule.CreateRecurringInput{
			OriginID:         id,
			Frequency:        freq,
			Count:            req.Count,
			Dates:            req.Dates,
			SkipDates:        req.SkipDates,
			Payments:         req.Payments,
			Inaugurals:       req.Inaugurals,
			RemindWeekBefore: req.RemindWeekBefore,
			RemindDayBefore:  req.RemindDayBefore,
			AutoRenewal:      req.AutoRenewal,
			PatientName:      req.PatientName,
			PatientPhone:     req.PatientPhone,
			PatientEmail:     req.PatientEmail,
		}
		for _, sd := range req.Slots {
			in.Slots = append(in.Slots, schedule.SlotDate{Date: sd.Date, Time: sd.Time})
		}

		res, err := svc.CreateRecurring(r.Context(), in)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		metrics.IncContractCreated()
		resp := CreateRecurringResponse{
			CreatedCount: res.CreatedCount,
			ContractID:   res.ContractID,
			ContractCode: res.ContractCode,
			Conflicts:    make([]RecurrenceConflictResponse, 0, len(res.Conflicts)),
		}
		for _, c := range res.Conflicts {
			resp.Conflicts = append(resp.Conflicts, RecurrenceConflictResponse(c))
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func blockDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BlockDayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Date == "" {
			writeError(w, http.StatusBadRequest, "missing_date", "date is required")
			return
		}

		res, err := svc.BlockDay(r.Context(), req.Date, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, BlockDayResponse{Date: req.Date, Deleted: res.Deleted, Kept: res.Kept})
	}
}

func unblockDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")
		if err := svc.UnblockDay(r.Context(), date); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listBlockedDaysHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := svc.ListBlockedDays(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		out := make([]BlockedDayResponse, 0, len(days))
		for _, d := range days {
			out = append(out, BlockedDayResponse{Date: d.Date, Reason: d.Reason})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func runRenewalHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.RunDailyRenewal(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		metrics.ObserveRenewalRun(summary.RenewedCount, summary.TotalSlotsCreated)
		writeJSON(w, http.StatusOK, summary)
	}
}

// Helpers

func slotID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseEventType(raw *string) (*schedule.EventType, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	et := schedule.EventType(*raw)
	switch et {
	case schedule.EventOnline, schedule.EventPresential, schedule.EventPersonal:
		return &et, true
	default:
		return nil, false
	}
}

func parseStatus(raw *string) *schedule.Status {
	if raw == nil {
		return nil
	}
	st := schedule.NormalizeStatus(*raw)
	return &st
}

func parseFrequency(raw string) (schedule.Frequency, bool) {
	f := schedule.Frequency(raw)
	switch f {
	case schedule.FrequencyWeekly, schedule.FrequencyBiweekly, schedule.FrequencyMonthly:
		return f, true
	default:
		return "", false
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	var blocked *schedule.DayBlockedError
	var conflict *schedule.ConflictError

	switch {
	case errors.As(err, &blocked):
		metrics.IncConflictRejected("day_blocked")
		writeError(w, http.StatusConflict, "day_blocked", blocked.Error())
	case errors.As(err, &conflict):
		metrics.IncConflictRejected("slot_conflict")
		writeError(w, http.StatusConflict, "slot_conflict", conflict.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrContractNotFound):
		writeError(w, http.StatusNotFound, "contract_not_found", err.Error())
	case errors.Is(err, schedule.ErrDayAlreadyOpen):
		writeError(w, http.StatusNotFound, "day_not_blocked", err.Error())
	case errors.Is(err, schedule.ErrPatientRequired):
		writeError(w, http.StatusConflict, "patient_required", err.Error())
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "the time is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
