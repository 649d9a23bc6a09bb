package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ToMono averages interleaved channels into a single channel.
func ToMono(p PCM) ([]float32, error) {
	if p.Channels <= 0 {
		return nil, ErrNoChannels
	}
	if p.Channels == 1 {
		return p.Samples, nil
	}

	frames := p.Frames()
	out := make([]float32, frames)
	inv := float32(1) / float32(p.Channels)
	for f := 0; f < frames; f++ {
		base := f * p.Channels
		var sum float32
		for c := 0; c < p.Channels; c++ {
			sum += p.Samples[base+c]
		}
		out[f] = sum * inv
	}
	return out, nil
}

// Resample converts a mono waveform from srcRate to dstRate. The input is
// returned unchanged when the rates already match. The output always holds
// round(len(samples)*dstRate/srcRate) samples; filter delay makes the raw
// resampler output drift by a few samples either way.
func Resample(samples []float32, srcRate, dstRate int) ([]float32, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("audio: flush resampler: %w", err)
	}
	output = append(output, tail...)

	out := make([]float32, ResampledLength(len(samples), srcRate, dstRate))
	for i := range out {
		if i >= len(output) {
			break
		}
		out[i] = float32(output[i])
	}
	return out, nil
}

// ResampledLength is the sample count of n samples converted from srcRate to
// dstRate, rounded to nearest.
func ResampledLength(n, srcRate, dstRate int) int {
	num := int64(n) * int64(dstRate)
	return int((num + int64(srcRate)/2) / int64(srcRate))
}

// ToClip downmixes and resamples decoder output to a mono clip at rate.
func ToClip(p PCM, rate int) (Clip, error) {
	mono, err := ToMono(p)
	if err != nil {
		return Clip{}, err
	}
	resampled, err := Resample(mono, p.SampleRate, rate)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Samples: resampled, SampleRate: rate}, nil
}
