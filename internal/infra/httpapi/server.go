// Package httpapi exposes presence confirmation and operator actions over
// HTTP for integrations that do not go through the chat bot.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"shift_attendance_bot/internal/app"
	"shift_attendance_bot/internal/domain/escalation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type PresenceConfirmer interface {
	ConfirmPresence(ctx context.Context, workerID, shiftID string, now time.Time) (*app.ConfirmResult, error)
}

type TriggerRunner interface {
	RunSweep(ctx context.Context, now time.Time) (app.TriggerReport, error)
}

type EscalationRunner interface {
	RunSweep(ctx context.Context, now time.Time) (app.EscalationReport, error)
}

type ChainAborter interface {
	AbortChain(ctx context.Context, chainID string) (*escalation.Chain, error)
}

// Deps bundles what the handlers call into.
type Deps struct {
	Confirmer  PresenceConfirmer
	Trigger    TriggerRunner
	Escalation EscalationRunner
	Admin      ChainAborter
	Clock      func() time.Time
	Token      string // bearer token required on /v1; empty rejects every /v1 call
	Logger     *logrus.Entry
}

type server struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/confirmations", s.handleConfirm)
		r.Post("/sweeps/trigger", s.handleTriggerSweep)
		r.Post("/sweeps/escalation", s.handleEscalationSweep)
		r.Post("/chains/{chainID}/abort", s.handleAbort)
	})
	return r
}

type confirmReq struct {
	WorkerID string `json:"workerId"`
	ShiftID  string `json:"shiftId"`
}

type confirmResp struct {
	RecordID         string `json:"recordId"`
	ResponseTime     string `json:"responseTime,omitempty"`
	AlreadyConfirmed bool   `json:"alreadyConfirmed"`
	ChainCompleted   bool   `json:"chainCompleted"`
}

func (s *server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkerID == "" || req.ShiftID == "" {
		writeError(w, http.StatusBadRequest, `invalid body: {"workerId":"...","shiftId":"..."}`)
		return
	}

	res, err := s.Confirmer.ConfirmPresence(r.Context(), req.WorkerID, req.ShiftID, s.Clock())
	if err != nil {
		if errors.Is(err, app.ErrNoPendingConfirmation) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log(r).WithError(err).Error("Confirmation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := confirmResp{
		RecordID:         res.Record.ID,
		AlreadyConfirmed: res.AlreadyConfirmed,
		ChainCompleted:   res.ChainCompleted,
	}
	if res.Record.ResponseTime.Valid {
		resp.ResponseTime = res.Record.ResponseTime.Time.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleTriggerSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.Trigger.RunSweep(r.Context(), s.Clock())
	if err != nil {
		s.log(r).WithError(err).Error("Manual trigger sweep failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleEscalationSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.Escalation.RunSweep(r.Context(), s.Clock())
	if err != nil {
		s.log(r).WithError(err).Error("Manual escalation sweep failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type chainResp struct {
	ChainID           string `json:"chainId"`
	RecordID          string `json:"recordId"`
	Status            string `json:"status"`
	Outcome           string `json:"outcome,omitempty"`
	CurrentStageIndex int    `json:"currentStageIndex"`
}

func (s *server) handleAbort(w http.ResponseWriter, r *http.Request) {
	chainID := chi.URLParam(r, "chainID")

	chain, err := s.Admin.AbortChain(r.Context(), chainID)
	switch {
	case errors.Is(err, escalation.ErrChainNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, app.ErrChainAlreadyCompleted):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.log(r).WithError(err).WithField("chain_id", chainID).Error("Abort failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, chainResp{
		ChainID:           chain.ID,
		RecordID:          chain.RecordID,
		Status:            string(chain.Status),
		Outcome:           string(chain.Outcome),
		CurrentStageIndex: chain.CurrentStageIndex,
	})
}

func (s *server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.Token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log(r).WithFields(logrus.Fields{
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request served")
	})
}

func (s *server) log(r *http.Request) *logrus.Entry {
	return s.Logger.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
