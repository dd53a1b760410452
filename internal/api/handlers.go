package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaffarkeikei/smart-stellar-demo/internal/model"
)

type messagesResponse struct {
	Messages  []model.ChatMessage `json:"messages"`
	Degraded  bool                `json:"degraded"`
	LastError string              `json:"lastError,omitempty"`
	LastSync  *time.Time          `json:"lastSync,omitempty"`
}

type submitRequest struct {
	XDR string `json:"xdr"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func messagesHandler(f MessageFeed, s Submitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getMessages(w, f)
		case http.MethodPost:
			postMessage(w, r, s)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func getMessages(w http.ResponseWriter, f MessageFeed) {
	msgs := f.Snapshot()
	st := f.Status()

	resp := messagesResponse{
		Messages:  msgs,
		Degraded:  st.Degraded,
		LastError: st.LastError,
	}
	if !st.LastSync.IsZero() {
		t := st.LastSync
		resp.LastSync = &t
	}
	if resp.Messages == nil {
		resp.Messages = []model.ChatMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func postMessage(w http.ResponseWriter, r *http.Request, s Submitter) {
	if s == nil {
		http.Error(w, "relay not configured", http.StatusServiceUnavailable)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.XDR) == "" {
		http.Error(w, "xdr is required", http.StatusBadRequest)
		return
	}

	res, err := s.Submit(r.Context(), req.XDR)
	if err != nil {
		logrus.WithError(err).Warn("submission failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(res)
}
