package onset

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/flashcut/flashcut-api/internal/audio"
	"github.com/flashcut/flashcut-api/internal/onsetapi"
)

// RemoteDetector delegates detection to the onset analysis service.
type RemoteDetector struct {
	client onsetapi.Client
}

// NewRemoteDetector creates a detector backed by the given API client.
func NewRemoteDetector(client onsetapi.Client) *RemoteDetector {
	return &RemoteDetector{client: client}
}

// Verify interface implementation at compile time.
var _ Detector = (*RemoteDetector)(nil)

// Detect encodes the clip as WAV and submits it to the service. The
// service applies the confidence threshold, so the response maps
// straight onto the result.
func (d *RemoteDetector) Detect(ctx context.Context, clip *audio.Clip, opts Options) ([]Onset, error) {
	opts = opts.withDefaults()
	if clip == nil || len(clip.Samples) == 0 {
		return []Onset{}, nil
	}

	payload, err := encodeClip(clip)
	if err != nil {
		return nil, fmt.Errorf("encode clip: %w", err)
	}

	result, err := d.client.Analyze(ctx, onsetapi.AnalyzeRequest{
		WAVBase64: payload,
		Threshold: opts.Threshold,
		HopSize:   opts.HopSize,
	})
	if err != nil {
		return nil, err
	}

	onsets := make([]Onset, 0, len(result.Onsets))
	for _, ev := range result.Onsets {
		onsets = append(onsets, Onset{Time: ev.Time, Confidence: ev.Confidence})
	}
	return onsets, nil
}

// encodeClip writes the clip as 16-bit PCM WAV and returns it base64
// encoded. The WAV encoder needs a seekable writer, so it goes through
// a temp file.
func encodeClip(clip *audio.Clip) (string, error) {
	tmp, err := os.CreateTemp("", "onset_*.wav")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := audio.WriteWAVFile(path, clip); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
