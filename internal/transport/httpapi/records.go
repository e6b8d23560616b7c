package httpapi

import (
	"net/http"
	"strings"

	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/usecase/payment"
)

type recordsResponse struct {
	Records []domainpayment.Record `json:"records"`
	Count   int                    `json:"count"`
}

type deleteResponse struct {
	Removed int64 `json:"removed"`
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := queryFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := h.service.QueryRecords(r.Context(), payment.RecordQuery{
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recordsResponse{Records: records, Count: len(records)})
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	record, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var patch payment.RecordPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.service.PatchRecord(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteRecords clears everything with confirm=true, or prunes with before.
func (h *Handler) deleteRecords(w http.ResponseWriter, r *http.Request) {
	before, err := queryTime(r, "before")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var removed int64
	switch {
	case before != nil:
		removed, err = h.service.DeleteBefore(r.Context(), *before)
	case strings.EqualFold(r.URL.Query().Get("confirm"), "true"):
		removed, err = h.service.DeleteAll(r.Context())
	default:
		err = badRequest("pass confirm=true to delete all records or before=RFC3339 to prune")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, deleteResponse{Removed: removed})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	start, err := queryTime(r, "since")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := queryTime(r, "until")
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}
