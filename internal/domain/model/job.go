package model

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further scheduler-driven transition can
// happen from s. Only an explicit requeue leaves a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition enforces the forward-only lifecycle:
// queued -> running -> completed|failed, and queued|running -> cancelled.
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelled
	}
	return false
}

// Progress counters for a single job run. Total is fixed at creation to
// the job's MaxItems; Pending shrinks as items resolve.
type Progress struct {
	Scraped  int `json:"scraped"`
	Analyzed int `json:"analyzed"`
	Inserted int `json:"inserted"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// JobSpec is the submission-side input for a new scrape job.
type JobSpec struct {
	URL          string `json:"url"`
	MaxItems     int    `json:"max_items"`
	SaveRaw      bool   `json:"save_raw"`
	SaveStore    bool   `json:"save_store"`
	AutoAnalyze  bool   `json:"auto_analyze"`
	AnalysisMode string `json:"analysis_mode,omitempty"`
	PageID       string `json:"page_id,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
}

// RunSummary is the success payload attached to a completed job.
type RunSummary struct {
	Scraped  int `json:"scraped"`
	Analyzed int `json:"analyzed"`
	Inserted int `json:"inserted"`
}

// Job is one unit of scrape+analyze+persist work tied to a target URL.
// The JSON field set is the contract the status API serves.
type Job struct {
	ID           string      `json:"job_id"`
	URL          string      `json:"url"`
	MaxItems     int         `json:"max_items"`
	SaveRaw      bool        `json:"save_raw"`
	SaveStore    bool        `json:"save_store"`
	AutoAnalyze  bool        `json:"auto_analyze"`
	AnalysisMode string      `json:"analysis_mode,omitempty"`
	PageID       string      `json:"page_id,omitempty"`
	StartDate    string      `json:"start_date,omitempty"`
	EndDate      string      `json:"end_date,omitempty"`
	Status       JobStatus   `json:"status"`
	Progress     Progress    `json:"progress"`
	Result       *RunSummary `json:"result"`
	Error        string      `json:"error,omitempty"`
	Message      string      `json:"message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at"`
}

// NewJob builds a freshly queued job from a spec. The caller assigns ID.
func NewJob(id string, spec JobSpec) *Job {
	return &Job{
		ID:           id,
		URL:          spec.URL,
		MaxItems:     spec.MaxItems,
		SaveRaw:      spec.SaveRaw,
		SaveStore:    spec.SaveStore,
		AutoAnalyze:  spec.AutoAnalyze,
		AnalysisMode: spec.AnalysisMode,
		PageID:       spec.PageID,
		StartDate:    spec.StartDate,
		EndDate:      spec.EndDate,
		Status:       JobStatusQueued,
		Progress:     Progress{Total: spec.MaxItems},
		CreatedAt:    time.Now().UTC(),
	}
}

// JobPatch carries a partial update; nil fields are left untouched.
type JobPatch struct {
	Status  *JobStatus
	Result  *RunSummary
	Error   *string
	Message *string
}

// ProgressPatch carries a partial progress update; nil fields are left
// untouched.
type ProgressPatch struct {
	Scraped  *int
	Analyzed *int
	Inserted *int
	Pending  *int
	Failed   *int
	Message  *string
}

// Apply merges p into the job in place.
func (j *Job) Apply(p JobPatch) {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Result != nil {
		j.Result = p.Result
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	if p.Message != nil {
		j.Message = *p.Message
	}
}

// ApplyProgress merges p into the job's progress sub-record.
func (j *Job) ApplyProgress(p ProgressPatch) {
	if p.Scraped != nil {
		j.Progress.Scraped = *p.Scraped
	}
	if p.Analyzed != nil {
		j.Progress.Analyzed = *p.Analyzed
	}
	if p.Inserted != nil {
		j.Progress.Inserted = *p.Inserted
	}
	if p.Pending != nil {
		j.Progress.Pending = *p.Pending
	}
	if p.Failed != nil {
		j.Progress.Failed = *p.Failed
	}
	if p.Message != nil {
		j.Message = *p.Message
	}
}

// Stats aggregates counts across all known jobs.
type Stats struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	Scraped  int `json:"scraped"`
	Analyzed int `json:"analyzed"`
	Inserted int `json:"inserted"`
}
