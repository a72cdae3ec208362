package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ttsgate/internal/dispatch"
	"ttsgate/internal/models"
	"ttsgate/internal/registry"
)

// maxUploadBytes bounds the multipart reference-audio upload.
const maxUploadBytes = 32 << 20

type Handler struct {
	dispatcher *dispatch.Dispatcher
	table      *registry.Table
}

func NewHandler(d *dispatch.Dispatcher, table *registry.Table) *Handler {
	return &Handler{
		dispatcher: d,
		table:      table,
	}
}

// Synthesize handles POST /tts: speaker-mode synthesis, JSON in, base64 out.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req models.TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	audio, err := h.dispatcher.Synthesize(r.Context(), &dispatch.Request{
		Text:     req.Text,
		Engine:   req.Engine,
		Model:    req.SelectedModel(),
		Language: req.Language,
		Speaker:  req.Speaker,
	})
	if err != nil {
		respondDispatchError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, models.TTSResponse{
		AudioData: base64.StdEncoding.EncodeToString(audio),
		Engine:    req.Engine,
	})
}

// SynthesizeWithAudio handles POST /tts_with_audio: multipart form carrying
// reference audio for voice conditioning, raw WAV stream out.
func (h *Handler) SynthesizeWithAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	engine := r.FormValue("engine")
	req := models.TTSRequest{
		Text:     r.FormValue("text"),
		Engine:   engine,
		Model:    r.FormValue("model"),
		Submodel: r.FormValue("submodel"),
		Language: r.FormValue("language"),
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Reference audio file is required")
		return
	}
	defer file.Close()

	refAudio, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read reference audio")
		return
	}

	audio, err := h.dispatcher.Synthesize(r.Context(), &dispatch.Request{
		Text:     req.Text,
		Engine:   engine,
		Model:    req.SelectedModel(),
		Language: req.Language,
		RefAudio: refAudio,
	})
	if err != nil {
		respondDispatchError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=speech_%s.wav", engine))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// ListModels handles GET /api/models: the flattened engine×model capability
// listing built from the readiness table.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	records := h.table.Records()
	if records == nil {
		records = []models.ModelRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// respondDispatchError maps the dispatch error taxonomy onto HTTP statuses:
// caller faults (validation, unknown engine) are 400, everything else is a
// 500 carrying the failure detail.
func respondDispatchError(w http.ResponseWriter, err error) {
	switch {
	case dispatch.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrEngineUnavailable):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispatch.ErrTimeout):
		respondError(w, http.StatusInternalServerError, "TTS synthesis failed: Timeout")
	case errors.Is(err, dispatch.ErrArtifactMissing):
		respondError(w, http.StatusInternalServerError, "Output file not found")
	default:
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("TTS synthesis failed: %v", err))
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
