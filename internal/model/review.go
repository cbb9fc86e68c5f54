package model

const (
	SourceTypeNote = "note"
)

// ReviewKey identifies one reviewable unit. CardID is empty when the note as
// a whole is graded and set for cards inside a note. Every capture lands as
// a note here, so note is the only source type in use.
type ReviewKey struct {
	OwnerID    string
	SourceType string
	SourceID   string
	CardID     string
}

func (k ReviewKey) String() string {
	if k.CardID == "" {
		return k.OwnerID + "-" + k.SourceType + "-" + k.SourceID
	}
	return k.OwnerID + "-" + k.SourceType + "-" + k.SourceID + "-" + k.CardID
}

// ReviewState is the full scheduling state of one reviewable.
// LastReviewedAt is 0 before the first review; NextReviewAt always equals
// LastReviewedAt + IntervalSeconds once a review happened.
type ReviewState struct {
	EaseFactor      float64
	IntervalSeconds int64
	Repetitions     int
	NextReviewAt    int64
	LastReviewedAt  int64
}

func (s ReviewState) Equal(other ReviewState) bool {
	return s.EaseFactor == other.EaseFactor &&
		s.IntervalSeconds == other.IntervalSeconds &&
		s.Repetitions == other.Repetitions &&
		s.NextReviewAt == other.NextReviewAt &&
		s.LastReviewedAt == other.LastReviewedAt
}

// ReviewSnapshot is a point-in-time copy of review fields pulled from the
// server of record; absent fields stay nil.
type ReviewSnapshot struct {
	EaseFactor      *float64
	IntervalSeconds *int64
	Repetitions     *int
	NextReviewAt    *int64
	LastReviewedAt  *int64
}

// ReviewRecord is the persisted form of one review state plus the derived
// streak counter.
type ReviewRecord struct {
	Key    ReviewKey
	State  ReviewState
	Streak int
	Mtime  int64
}
