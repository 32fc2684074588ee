package detection

import "math"

// AcousticClass is the coarse shape of an amplitude window.
// It only gates whether transcription is worth running.
type AcousticClass string

const (
	ClassSilence       AcousticClass = "silence"
	ClassMusic         AcousticClass = "music"
	ClassSpeech        AcousticClass = "speech"
	ClassIndeterminate AcousticClass = "indeterminate"
)

// Stats are the mean absolute amplitude and its standard deviation.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// WindowStats computes Stats over samples normalized to [-1,1].
func WindowStats(samples []float64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(s)
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := math.Abs(s) - mean
		sq += d * d
	}
	return Stats{Mean: mean, StdDev: math.Sqrt(sq / float64(len(samples)))}
}

// ClassifyStats applies the silence/music/speech thresholds.
func ClassifyStats(st Stats) AcousticClass {
	if st.Mean < 0.01 {
		return ClassSilence
	}
	if st.StdDev < 0.3*st.Mean && st.Mean > 0.05 {
		return ClassMusic
	}
	if st.StdDev > 0.4*st.Mean {
		return ClassSpeech
	}
	return ClassIndeterminate
}

// ClassifyWindow classifies a raw amplitude window. Empty windows are silence.
func ClassifyWindow(samples []float64) AcousticClass {
	return ClassifyStats(WindowStats(samples))
}
