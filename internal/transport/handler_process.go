package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ringihq/ringi/internal/workflow"
	"github.com/ringihq/ringi/model"
)

func handleProcessInitiate(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			WorkflowType string         `json:"workflow_type"`
			Initiator    string         `json:"initiator"`
			Payload      map[string]any `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if body.WorkflowType == "" {
			WriteError(w, model.NewBadRequestError("workflow_type is required"))
			return
		}
		if body.Initiator == "" {
			WriteError(w, model.NewBadRequestError("initiator is required"))
			return
		}

		proc, err := engine.Initiate(r.Context(), body.WorkflowType, body.Payload, body.Initiator)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, proc)
	}
}

func handleProcessApprove(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "processId")

		var body struct {
			Approver string `json:"approver"`
			Comment  string `json:"comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if body.Approver == "" {
			WriteError(w, model.NewBadRequestError("approver is required"))
			return
		}

		proc, err := engine.Approve(r.Context(), processID, body.Approver, body.Comment)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, proc)
	}
}

func handleProcessReject(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "processId")

		var body struct {
			Approver string `json:"approver"`
			Reason   string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if body.Approver == "" {
			WriteError(w, model.NewBadRequestError("approver is required"))
			return
		}

		proc, err := engine.Reject(r.Context(), processID, body.Approver, body.Reason)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, proc)
	}
}

func handleProcessRetryDispatch(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "processId")

		proc, err := engine.RetryDispatch(r.Context(), processID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, proc)
	}
}

func handleProcessGet(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "processId")

		proc, err := engine.Get(r.Context(), processID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, proc)
	}
}

func handleProcessEvents(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		processID := chi.URLParam(r, "processId")

		events, err := engine.Events(r.Context(), processID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"process_id": processID,
			"events":     events,
		})
	}
}

func handleProcessList(engine *workflow.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := workflow.ProcessFilters{
			WorkflowType: r.URL.Query().Get("workflow_type"),
			Status:       model.ProcessStatus(r.URL.Query().Get("status")),
			Limit:        queryInt(r, "limit", 20),
			Offset:       queryInt(r, "offset", 0),
		}
		if filters.Status != "" && !filters.Status.IsValid() {
			WriteError(w, model.NewBadRequestError("unknown status filter"))
			return
		}

		summaries, err := engine.List(r.Context(), filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":   summaries,
			"limit":  filters.Limit,
			"offset": filters.Offset,
		})
	}
}

// queryInt reads an integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
