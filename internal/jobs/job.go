package jobs

import (
	"math"
	"time"

	"github.com/tagsapp/catalog-scraper/internal/models"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusStopped    Status = "stopped"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

type SavedItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type SkippedItem struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Job tracks one scrape run over a single store URL. A parent job created by
// the orchestrator has Collections set and aggregates its children's counters.
type Job struct {
	ID             string                    `json:"jobId"`
	ParentJobID    string                    `json:"parentJobId,omitempty"`
	StoreURL       string                    `json:"storeUrl"`
	Status         Status                    `json:"status"`
	Candidates     []models.ProductCandidate `json:"-"`
	Categories     []string                  `json:"-"`
	Collections    []string                  `json:"collections,omitempty"`
	TargetCount    int                       `json:"targetCount"`
	ProcessedCount int                       `json:"processedCount"`
	SavedCount     int                       `json:"savedCount"`
	SkippedCount   int                       `json:"skippedCount"`
	ProcessedPages int                       `json:"processedPages,omitempty"`
	Saved          []SavedItem               `json:"savedProducts,omitempty"`
	Skipped        []SkippedItem             `json:"skippedProducts,omitempty"`
	LastMessage    string                    `json:"message"`
	Error          string                    `json:"error,omitempty"`
	StartedAt      time.Time                 `json:"startedAt"`
	EndedAt        *time.Time                `json:"endedAt,omitempty"`
}

// Progress derives the completion percentage from saved items against the
// target, capped at 100.
func (j *Job) Progress() int {
	if j.TargetCount <= 0 {
		if j.Status.Terminal() {
			return 100
		}
		return 0
	}
	p := int(math.Round(float64(j.SavedCount) / float64(j.TargetCount) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
