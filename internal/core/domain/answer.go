package domain

// Signal identifies which retrieval signal surfaced a candidate.
type Signal string

// Retrieval signals.
const (
	// SignalDense means the candidate came from vector similarity search.
	SignalDense Signal = "dense"

	// SignalSparse means the candidate came from lexical keyword search.
	SignalSparse Signal = "sparse"

	// SignalBoth means both signals surfaced the candidate.
	SignalBoth Signal = "both"
)

// Candidate is a transient, per-query ranked reference to a chunk.
// It lives only for the duration of one retrieval call.
type Candidate struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk

	// Score is the normalised retrieval score (0-1 within its signal set).
	Score float64

	// Signal records which retriever(s) surfaced this candidate.
	Signal Signal
}

// Citation points a claim in the answer back at its supporting chunk.
type Citation struct {
	// DocumentID is the cited document.
	DocumentID string

	// ChunkID is the specific supporting chunk.
	ChunkID string

	// SourceName is the human-readable document name.
	SourceName string

	// Page is the cited page number, 0 when the source has no pages.
	Page int
}

// Answer is the pipeline's final output. It is always well-formed: failure
// modes surface through NotFoundReason, never as an opaque error.
type Answer struct {
	// ID uniquely identifies this pipeline run.
	ID string

	// Text is the generated answer. Empty when nothing could be grounded.
	Text string

	// Citations lists the chunks actually referenced by the answer.
	Citations []Citation

	// Evidence contains the chunk texts the answer was drawn from.
	Evidence []string

	// Confidence is in [0,1], derived from the last groundedness score.
	Confidence float64

	// NotFoundReason is set only when no answer could be grounded.
	// It distinguishes "no evidence found" from "evidence found but
	// answer uncertain" - the latter returns text with low Confidence.
	NotFoundReason string

	// LatencyMS is the wall-clock duration of the pipeline run.
	LatencyMS int64
}

// Found reports whether the answer is grounded (has no not-found reason).
func (a *Answer) Found() bool {
	return a.NotFoundReason == ""
}

// Draft is the structured completion returned by the Generation Port.
type Draft struct {
	// Answer is the generated answer text.
	Answer string

	// Citations are the chunk/document references the model emitted.
	Citations []Citation

	// Evidence is the supporting text the model quoted.
	Evidence []string

	// Confidence is the model's self-reported confidence in [0,1].
	Confidence float64

	// NotFoundReason is set when the model refused for lack of evidence.
	NotFoundReason string
}
