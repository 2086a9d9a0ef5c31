// Package api exposes the training engine, calibration protocols, and ROM
// records over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rehab-data/motion.report/internal/config"
	"github.com/rehab-data/motion.report/internal/exercise"
	"github.com/rehab-data/motion.report/internal/report"
	"github.com/rehab-data/motion.report/internal/rom"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// EngineController is the request surface of the training engine.
type EngineController interface {
	StartExercise(id string, target int, patientID string) error
	Stop()
	Pause()
	Resume()
	Status() exercise.Status
	Tally() map[string]int
	Subscribe() (<-chan exercise.Event, func())
	Reserve() (release func(), err error)
}

// FullRunner runs the guided calibration protocol.
type FullRunner interface {
	Run(ctx context.Context, patientID string) (*rom.Record, error)
}

// SimpleRunner runs the one-rep warm-up calibration.
type SimpleRunner interface {
	Run(ctx context.Context, patientID string, exercises []string) (*rom.Session, error)
}

// Storage is the slice of the ROM store the API reads and writes.
type Storage interface {
	Load(ctx context.Context, patientID string) (*rom.Record, error)
	SessionScores(ctx context.Context, patientID string) ([]rom.SessionScore, error)
	Patients(ctx context.Context) ([]rom.Patient, error)
	AddPatient(ctx context.Context, p rom.Patient) error
	DeletePatient(ctx context.Context, id string) error
}

type Server struct {
	engine EngineController
	store  Storage
	full   FullRunner
	simple SimpleRunner
	cfg    *config.TuningConfig

	// calMu serializes calibration runs: a protocol owns the skeleton
	// stream while it executes.
	calMu sync.Mutex
}

func NewServer(engine EngineController, store Storage, full FullRunner, simple SimpleRunner, cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	return &Server{
		engine: engine,
		store:  store,
		full:   full,
		simple: simple,
		cfg:    cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/exercises", s.listExercises)
	mux.HandleFunc("/api/exercise/start", s.startExercise)
	mux.HandleFunc("/api/exercise/stop", s.stopExercise)
	mux.HandleFunc("/api/exercise/pause", s.pauseExercise)
	mux.HandleFunc("/api/exercise/resume", s.resumeExercise)
	mux.HandleFunc("/api/exercise/status", s.showStatus)
	mux.HandleFunc("/api/calibration/full", s.runFullCalibration)
	mux.HandleFunc("/api/calibration/simple", s.runSimpleCalibration)
	mux.HandleFunc("/api/rom", s.showROM)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/api/patients", s.handlePatients)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/live", s.streamEvents)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string][]string{"exercises": exercise.IDs()})
}

type startRequest struct {
	Exercise string `json:"exercise"`
	Target   int    `json:"target"`
	Patient  string `json:"patient"`
}

func (s *Server) startExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Exercise == "" {
		s.writeJSONError(w, http.StatusBadRequest, "exercise is required")
		return
	}
	if err := s.engine.StartExercise(req.Exercise, req.Target, req.Patient); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, map[string]string{"status": "started"})
}

func (s *Server) stopExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.engine.Stop()
	s.writeJSON(w, map[string]string{"status": "stopping"})
}

func (s *Server) pauseExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.engine.Pause()
	s.writeJSON(w, map[string]string{"status": "paused"})
}

func (s *Server) resumeExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.engine.Resume()
	s.writeJSON(w, map[string]string{"status": "resumed"})
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.engine.Status())
}

type calibrationRequest struct {
	Patient   string   `json:"patient"`
	Exercises []string `json:"exercises,omitempty"`
}

// tryCalibrate rejects concurrent calibrations, then reserves the skeleton
// stream for the duration of fn. The reservation fails while a run is active
// or queued, and blocks new runs from starting until fn returns, so the
// calibration protocol and the engine never read the stream concurrently.
func (s *Server) tryCalibrate(w http.ResponseWriter, fn func()) {
	if !s.calMu.TryLock() {
		s.writeJSONError(w, http.StatusConflict, "a calibration is already running")
		return
	}
	defer s.calMu.Unlock()
	release, err := s.engine.Reserve()
	if err != nil {
		s.writeJSONError(w, http.StatusConflict, "an exercise is running; stop it first")
		return
	}
	defer release()
	fn()
}

func (s *Server) runFullCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req calibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Patient == "" {
		s.writeJSONError(w, http.StatusBadRequest, "patient is required")
		return
	}
	s.tryCalibrate(w, func() {
		rec, err := s.full.Run(r.Context(), req.Patient)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, rec)
	})
}

func (s *Server) runSimpleCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req calibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Patient == "" {
		s.writeJSONError(w, http.StatusBadRequest, "patient is required")
		return
	}
	if len(req.Exercises) == 0 {
		s.writeJSONError(w, http.StatusBadRequest, "exercises are required")
		return
	}
	s.tryCalibrate(w, func() {
		sess, err := s.simple.Run(r.Context(), req.Patient, req.Exercises)
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, sess)
	})
}

func (s *Server) showROM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	patient := r.URL.Query().Get("patient")
	if patient == "" {
		s.writeJSONError(w, http.StatusBadRequest, "patient is required")
		return
	}
	rec, err := s.store.Load(r.Context(), patient)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeJSONError(w, http.StatusNotFound, "no calibration for patient "+patient)
		return
	}
	s.writeJSON(w, rec)
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	patient := r.URL.Query().Get("patient")
	if patient == "" {
		s.writeJSONError(w, http.StatusBadRequest, "patient is required")
		return
	}
	scores, err := s.store.SessionScores(r.Context(), patient)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderProgressHTML(w, patient, s.engine.Tally(), scores); err != nil {
		log.Printf("api: render report: %v", err)
	}
}

func (s *Server) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patients, err := s.store.Patients(r.Context())
		if err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, map[string][]rom.Patient{"patients": patients})
	case http.MethodPost:
		var p rom.Patient
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.ID == "" {
			s.writeJSONError(w, http.StatusBadRequest, "patient id is required")
			return
		}
		if err := s.store.AddPatient(r.Context(), p); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, p)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.writeJSONError(w, http.StatusBadRequest, "id is required")
			return
		}
		if err := s.store.DeletePatient(r.Context(), id); err != nil {
			s.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeJSON(w, map[string]string{"status": "deleted"})
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, map[string]interface{}{
		"max_angle_jump":              s.cfg.GetMaxAngleJump(),
		"tick_interval":               s.cfg.GetTickInterval().String(),
		"pause_idle_interval":         s.cfg.GetPauseIdleInterval().String(),
		"frame_timeout":               s.cfg.GetFrameTimeout().String(),
		"target_reps":                 s.cfg.GetTargetReps(),
		"coordinate_scale":            s.cfg.GetCoordinateScale(),
		"calibration_window":          s.cfg.GetCalibrationWindow().String(),
		"calibration_sample_interval": s.cfg.GetCalibrationSampleInterval().String(),
		"position_delay":              s.cfg.GetPositionDelay().String(),
		"measurement_gap":             s.cfg.GetMeasurementGap().String(),
		"simple_calibration_timeout":  s.cfg.GetSimpleCalibrationTimeout().String(),
		"safety_factor":               s.cfg.GetSafetyFactor(),
	})
}
