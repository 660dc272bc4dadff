package core

// Mood is the per-face smile classification for one frame.
type Mood int

const (
	NotSmiling Mood = iota
	Smiling
)

// moodFromSmiles: any smile match in the mouth region means smiling.
func moodFromSmiles(matches int) Mood {
	if matches > 0 {
		return Smiling
	}
	return NotSmiling
}

// String returns the label drawn under the face.
func (m Mood) String() string {
	if m == Smiling {
		return "happy"
	}
	return "angry"
}
