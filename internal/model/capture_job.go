package model

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// CapturePayload is the raw material handed to the generation collaborator.
type CapturePayload struct {
	Content      string `json:"content"`
	Topic        string `json:"topic,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// CaptureJob tracks one capture-to-cards generation request. Status moves
// pending -> processing -> completed|failed and never backward; rows past
// ExpiresAt are reclaimed by a background job.
type CaptureJob struct {
	ID            string
	OwnerID       string
	URL           string
	Topic         string
	Requirements  string
	Status        string
	Payload       CapturePayload
	ResultNoteID  string
	ResultTopic   string
	ResultSummary string
	ResultCards   []Card
	ErrorMessage  string
	Ctime         int64
	Mtime         int64
	ExpiresAt     int64
}

func (j *CaptureJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
