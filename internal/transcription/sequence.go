package transcription

import "github.com/verse-scribe/internal/types"

// Resume is where a sequential session starts
type Resume struct {
	Index           int
	AlreadyComplete bool
}

// ResumeIndex finds the furthest completed position of seq and resumes one
// past it. Gaps before that position are not revisited. With nothing
// completed it starts at 0; with the last position completed the sequence
// is reported as already complete.
func ResumeIndex(seq []types.Verse, completed types.CompletedSet) Resume {
	maxIndex := -1
	for i, v := range seq {
		if completed.Has(v.Key()) {
			maxIndex = i
		}
	}
	if len(seq) > 0 && maxIndex == len(seq)-1 {
		return Resume{Index: maxIndex, AlreadyComplete: true}
	}
	return Resume{Index: maxIndex + 1}
}

// ReaderVerse is a verse annotated for the reading view
type ReaderVerse struct {
	types.Verse
	Completed bool `json:"completed"`
}

// MergeCompleted annotates each verse with its completion flag
func MergeCompleted(seq []types.Verse, completed types.CompletedSet) []ReaderVerse {
	out := make([]ReaderVerse, len(seq))
	for i, v := range seq {
		out[i] = ReaderVerse{Verse: v, Completed: completed.Has(v.Key())}
	}
	return out
}

// CountCompleted returns how many verses of seq are in the completed set
func CountCompleted(seq []types.Verse, completed types.CompletedSet) int {
	n := 0
	for _, v := range seq {
		if completed.Has(v.Key()) {
			n++
		}
	}
	return n
}
