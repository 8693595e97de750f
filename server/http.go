package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const maxRequestBytes = 1 << 20

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write-response-failed")
	}
}

func statusFor(err error) int {
	if isClientError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handle decodes a JSON request body, runs op and encodes its result.
func handle[Req, Resp any](name string, op func(Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req Req
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := op(req)
		if err != nil {
			status := statusFor(err)
			log.Debug().Err(err).Str("op", name).Int("status", status).Msg("request-failed")
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, resp)
		log.Debug().Str("op", name).Dur("elapsed", time.Since(start)).Msg("request-served")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "width": s.width, "height": s.height})
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/explore", handle("explore", s.Explore))
	mux.HandleFunc("/predict", handle("predict", s.Predict))
	mux.HandleFunc("/reconstruct", handle("reconstruct", s.Reconstruct))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}
