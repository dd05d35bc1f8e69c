package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/domain/entities"
)

const pcmMIMEPrefix = "audio/pcm;rate="

// Encode converts samples in [-1,1] to signed 16-bit PCM. Out of range input
// is clamped; negative values scale by 32768 and non-negative by 32767 so the
// positive boundary never overflows.
func Encode(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// Int16ToBytes serialises PCM samples as little-endian bytes.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Decode interprets payload as little-endian int16 PCM and normalises each
// sample by 32768.
func Decode(payload []byte) ([]float32, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: odd payload length %d", domain.ErrDecode, len(payload))
	}
	out := make([]float32, len(payload)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(payload[i*2:]))) / 32768.0
	}
	return out, nil
}

// MIMEType returns the descriptor for raw PCM at the given rate.
func MIMEType(sampleRate int) string {
	return pcmMIMEPrefix + strconv.Itoa(sampleRate)
}

// ParseRate extracts the sample rate from a PCM MIME descriptor.
func ParseRate(mimeType string) (int, error) {
	mimeType = strings.ReplaceAll(strings.TrimSpace(mimeType), " ", "")
	if !strings.HasPrefix(mimeType, pcmMIMEPrefix) {
		return 0, fmt.Errorf("unsupported audio mime type: %q", mimeType)
	}
	rate, err := strconv.Atoi(strings.TrimPrefix(mimeType, pcmMIMEPrefix))
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("invalid sample rate in mime type: %q", mimeType)
	}
	return rate, nil
}

// EncodePayload builds the transport payload for one capture frame.
func EncodePayload(samples []float32, sampleRate int) entities.EncodedAudioPayload {
	return entities.EncodedAudioPayload{
		MIMEType: MIMEType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(Int16ToBytes(Encode(samples))),
	}
}

// DecodePayload reverses EncodePayload. Both bad base64 and a bad PCM length
// are reported as domain.ErrDecode.
func DecodePayload(payload entities.EncodedAudioPayload) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return Decode(raw)
}

// EncodeFrame builds the transport payload for a mono frame.
func EncodeFrame(frame entities.AudioFrame) entities.EncodedAudioPayload {
	return EncodePayload(frame.Samples, frame.SampleRate)
}

// DecodeFrame decodes a payload into a mono frame. The rate is read from the
// MIME descriptor; fallbackRate is used when the descriptor has none.
func DecodeFrame(payload entities.EncodedAudioPayload, fallbackRate int) (entities.AudioFrame, error) {
	samples, err := DecodePayload(payload)
	if err != nil {
		return entities.AudioFrame{}, err
	}
	rate, err := ParseRate(payload.MIMEType)
	if err != nil {
		rate = fallbackRate
	}
	return entities.AudioFrame{SampleRate: rate, Channels: 1, Samples: samples}, nil
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	n := len(samples) * to / from
	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}
