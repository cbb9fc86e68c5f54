package model

type Card struct {
	ID    string   `json:"id"`
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Extra string   `json:"extra,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Note owns its cards; cards are only removed by an explicit delete or by
// deleting the note itself. Review* fields mirror the server-of-record copy
// of the note's review state.
type Note struct {
	NoteID                string
	OwnerID               string
	SourceURL             string
	Topic                 string
	Summary               string
	Cards                 []Card
	LastReviewedAt        int64
	LastReviewStatus      string
	ReviewIntervalSeconds int64
	ReviewEaseFactor      float64
	ReviewRepetitions     int
	NextReviewAt          int64
	Ctime                 int64
	Mtime                 int64
}

type NoteSummary struct {
	NoteID       string `json:"note_id"`
	SourceURL    string `json:"source_url"`
	Topic        string `json:"topic,omitempty"`
	Summary      string `json:"summary,omitempty"`
	CardCount    int    `json:"card_count"`
	NextReviewAt int64  `json:"next_review_at,omitempty"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
