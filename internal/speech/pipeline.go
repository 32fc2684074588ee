package speech

import (
	"context"
	"time"

	"holdline/internal/detection"
	"holdline/pkg/logger"
)

// Result is one pass of the detection pipeline.
// Conclusive is false when neither a lexical nor a continuity verdict could be formed.
type Result struct {
	Verdict    detection.Verdict
	Conclusive bool
	Acoustic   detection.AcousticClass
}

// Pipeline combines the acoustic gate, transcription, lexical classification
// and the continuity fallback.
type Pipeline struct {
	windows     *detection.WindowBuffer
	transcriber detection.Transcriber
	sampleRate  int
	timeout     time.Duration
}

// NewPipeline accepts nil windows or a nil transcriber; the continuity
// fallback still works without them.
func NewPipeline(windows *detection.WindowBuffer, transcriber detection.Transcriber) *Pipeline {
	return &Pipeline{
		windows:     windows,
		transcriber: transcriber,
		sampleRate:  detection.TelephonySampleRate,
		timeout:     10 * time.Second,
	}
}

func (p *Pipeline) Evaluate(ctx context.Context, callID string, onset Onset) Result {
	log := logger.ForCall(ctx, callID)

	res := Result{Acoustic: detection.ClassIndeterminate}
	if v, ok := p.lexical(ctx, callID, &res); ok {
		res.Verdict = v
		res.Conclusive = true
		return res
	}

	if onset.Triggered {
		res.Verdict = detection.ContinuityVerdict(onset.Count)
		res.Conclusive = true
		log.Debug("continuity fallback", "onsets", onset.Count)
	}
	return res
}

func (p *Pipeline) lexical(ctx context.Context, callID string, res *Result) (detection.Verdict, bool) {
	if p.windows == nil || p.transcriber == nil {
		return detection.Verdict{}, false
	}
	window := p.windows.Window(callID)
	if window == nil {
		return detection.Verdict{}, false
	}
	res.Acoustic = detection.ClassifyWindow(detection.ToFloat(window))
	if res.Acoustic != detection.ClassSpeech {
		return detection.Verdict{}, false
	}

	tctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	text, err := p.transcriber.Transcribe(tctx, window, p.sampleRate)
	if err != nil {
		logger.ForCall(ctx, callID).Warn("transcription failed", "err", err)
		return detection.Verdict{}, false
	}
	if text == "" {
		return detection.Verdict{}, false
	}
	return detection.ClassifyTranscript(text), true
}
