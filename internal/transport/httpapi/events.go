package httpapi

import (
	"log/slog"
	"net/http"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
	"paymonitor/internal/ports"
	"paymonitor/internal/usecase/payment"
)

// batchResponse carries the results of every event handled before a failure,
// so callers know which events are already stored.
type batchResponse struct {
	Results []payment.IngestResult `json:"results"`
	Error   string                 `json:"error,omitempty"`
}

func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	var event domainpayment.NotificationEvent
	if err := decodeJSON(w, r, &event); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Ingest(r.Context(), event)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == ports.IngestStored {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, result)
}

func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	var events []domainpayment.NotificationEvent
	if err := decodeJSON(w, r, &events); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := h.service.IngestBatch(r.Context(), events)
	if results == nil {
		results = []payment.IngestResult{}
	}
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			logging.Error(r.Context(), "batch ingest failed",
				slog.Int("handled", len(results)),
				slog.Any("err", errs.Loggable(err)),
			)
		}
		writeJSON(w, r, status, batchResponse{Results: results, Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, batchResponse{Results: results})
}
