package entities

import "time"

const (
	// CaptureSampleRate is the microphone rate expected by the live backend.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate of audio returned by the live backend.
	PlaybackSampleRate = 24000
	// CaptureWindowSize is the number of samples per capture window.
	CaptureWindowSize = 4096
)

// AudioFrame is a window of mono audio samples.
type AudioFrame struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// EncodedAudioPayload is a transport-ready audio frame: base64 of
// little-endian int16 PCM tagged with its MIME descriptor.
type EncodedAudioPayload struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}
