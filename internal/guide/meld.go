package guide

import (
	"github.com/stwalsh4118/airwave/internal/models"
)

// isFlexLike reports whether a program is treated as filler for melding:
// offline or redirect-derived entries, and anything at or below the channel's
// guide minimum duration.
func isFlexLike(p models.GuideProgram, guideMinMs int64) bool {
	if p.Kind == models.ProgramKindFlex || p.Kind == models.ProgramKindRedirect {
		return true
	}
	return p.DurationMs() <= guideMinMs
}

// meldPrograms coalesces adjacent flex-like programs into synthetic flex
// blocks so the guide shows fewer, larger filler entries instead of many tiny
// ones. Purely cosmetic: block boundaries move, total duration never does.
//
// A run accumulates melded padding up to maxMeldMs; once a program would push
// the run past the cap, the run is flushed as-is and that program starts a new
// run with the accumulator reset to its own duration. A non-flex-like program
// always flushes the run.
func meldPrograms(programs []models.GuideProgram, guideMinMs, maxMeldMs int64) []models.GuideProgram {
	if len(programs) < 2 {
		return programs
	}

	out := make([]models.GuideProgram, 0, len(programs))
	runIdx := -1 // index in out of the active flex run
	var acc int64

	for _, p := range programs {
		if !isFlexLike(p, guideMinMs) {
			out = append(out, p)
			runIdx = -1
			acc = 0
			continue
		}

		d := p.DurationMs()
		if runIdx >= 0 && acc+d <= maxMeldMs {
			out[runIdx] = mergeIntoFlex(out[runIdx], p)
			acc += d
			continue
		}

		// No active run, or the cap was exceeded: this program starts a run of
		// its own. Until something melds into it, it keeps its original form.
		out = append(out, p)
		runIdx = len(out) - 1
		acc = d
	}

	return out
}

// mergeIntoFlex extends a run to cover the next program, collapsing it into a
// synthetic flex block with no payload
func mergeIntoFlex(run, next models.GuideProgram) models.GuideProgram {
	return models.GuideProgram{
		StartMs: run.StartMs,
		StopMs:  next.StopMs,
		Kind:    models.ProgramKindFlex,
	}
}

// splitLongFlex caps any single flex block at maxFlexMs, splitting longer ones
// into consecutive capped chunks so guide UIs never render one multi-day block.
// A non-positive cap disables splitting.
func splitLongFlex(programs []models.GuideProgram, maxFlexMs int64) []models.GuideProgram {
	if maxFlexMs <= 0 {
		return programs
	}

	out := make([]models.GuideProgram, 0, len(programs))
	for _, p := range programs {
		if p.Kind != models.ProgramKindFlex || p.DurationMs() <= maxFlexMs {
			out = append(out, p)
			continue
		}

		for start := p.StartMs; start < p.StopMs; start += maxFlexMs {
			stop := start + maxFlexMs
			if stop > p.StopMs {
				stop = p.StopMs
			}
			out = append(out, models.GuideProgram{
				StartMs: start,
				StopMs:  stop,
				Kind:    models.ProgramKindFlex,
			})
		}
	}
	return out
}
