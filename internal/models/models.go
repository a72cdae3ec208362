package models

// Job is the descriptor the gateway drops into an engine's queue directory
// and a worker consumes exactly once. The field names are the on-disk wire
// format shared between both processes — do not rename them.
//
// Exactly one of Speaker or RefWAV is set; the gateway rejects anything else
// before the descriptor is written.
type Job struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Model    string `json:"model,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
	RefWAV   string `json:"ref_wav,omitempty"`
}

// ModelInfo describes one model (or submodel) an engine serves.
type ModelInfo struct {
	Name                string   `json:"name"`
	Languages           []string `json:"languages"`
	Speakers            []string `json:"speakers"`
	SupportsCustomVoice bool     `json:"supports_custom_voice"`
	Notes               string   `json:"notes,omitempty"`
}

// ReadinessInfo is a worker's one-time capability announcement, written to
// the info directory after its models finish loading. Error is set instead
// of Models when initialization failed.
type ReadinessInfo struct {
	Engine string               `json:"engine"`
	Models map[string]ModelInfo `json:"models"`
	Error  string               `json:"error,omitempty"`
}

// ModelRecord is one row of the flattened engine×model capability listing
// served by GET /api/models.
type ModelRecord struct {
	Engine              string   `json:"engine"`
	Model               string   `json:"model"`
	Languages           []string `json:"languages"`
	Speakers            []string `json:"speakers"`
	SupportsCustomVoice bool     `json:"supports_custom_voice"`
	Notes               string   `json:"notes"`
}

// DTOs for API requests/responses

type TTSRequest struct {
	Text     string `json:"text"`
	Engine   string `json:"engine"`
	Model    string `json:"model,omitempty"`
	Submodel string `json:"submodel,omitempty"`
	Language string `json:"language,omitempty"`
	Speaker  string `json:"speaker,omitempty"`
}

type TTSResponse struct {
	AudioData string `json:"audio_data"` // base64-encoded audio
	Engine    string `json:"engine"`
}

// SelectedModel resolves the request's submodel/model pair the way the
// descriptor expects it: the more specific submodel wins.
func (r *TTSRequest) SelectedModel() string {
	if r.Submodel != "" {
		return r.Submodel
	}
	return r.Model
}
