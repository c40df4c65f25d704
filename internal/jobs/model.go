package jobs

import "time"

// Job statuses. A job moves forward through the processing states and ends
// in exactly one of the terminal states.
const (
	StatusPending    = "pending"
	StatusExtracting = "extracting"
	StatusParsing    = "parsing"
	StatusAssembling = "assembling"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job represents one end-to-end request to convert a PDF page range into a
// structured question document.
type Job struct {
	ID          string `json:"id"`
	PDFFilename string `json:"pdfFilename"`
	PDFPath     string `json:"-"`

	PageStart     int    `json:"pageStart"`
	PageEnd       int    `json:"pageEnd"`
	QuestionStart int    `json:"questionStart"`
	QuestionEnd   int    `json:"questionEnd"`
	Label         string `json:"label,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Year          int    `json:"year,omitempty"`

	Status      string   `json:"status"`
	Progress    int      `json:"progress"`
	CurrentStep string   `json:"currentStep,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`

	OutputFilename string `json:"outputFilename,omitempty"`
	OutputPath     string `json:"-"`
	AnswerKeyPath  string `json:"-"`
	TotalQuestions int    `json:"totalQuestions,omitempty"`
	DiagramCount   int    `json:"diagramCount,omitempty"`

	ErrorMessage string         `json:"errorMessage,omitempty"`
	ErrorDetail  map[string]any `json:"errorDetail,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	ExpiresAt   time.Time  `json:"expiresAt"`
}

// IsProcessing reports whether the job currently occupies a worker or is
// waiting for one; such jobs cannot be deleted.
func (j Job) IsProcessing() bool {
	switch j.Status {
	case StatusPending, StatusExtracting, StatusParsing, StatusAssembling:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the job has reached completed or failed.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// IsExpired reports whether the retention window has passed.
func (j Job) IsExpired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}
