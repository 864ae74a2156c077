package onsetapi

// AnalyzeRequest is the input for an analysis call.
type AnalyzeRequest struct {
	// WAVBase64 is the audio encoded as base64 16-bit PCM WAV.
	WAVBase64 string
	// Threshold filters onsets below this confidence, in [0, 1].
	Threshold float64
	// HopSize is the analysis stride in samples; 0 uses the service default.
	HopSize int
}

// Event is one detected onset.
type Event struct {
	Time       float64 `json:"time"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeResult is the outcome of a successful analysis call.
type AnalyzeResult struct {
	Onsets   []Event
	Duration float64
}

// analyzeRequestBody is the wire format for the analyze endpoint.
type analyzeRequestBody struct {
	WAVBase64 string  `json:"wav_base64"`
	Threshold float64 `json:"threshold"`
	HopSize   int     `json:"hop_size,omitempty"`
}

// analyzeResponseBody is the wire format returned by the service.
type analyzeResponseBody struct {
	Onsets   []Event `json:"onsets"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}
