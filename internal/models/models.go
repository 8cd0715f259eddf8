package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// UnitKind distinguishes the collaborators a source unit came from.
type UnitKind string

const (
	UnitKindRepository UnitKind = "repository"
	UnitKindDocument   UnitKind = "document"
)

// SourceUnit is one repository (or equivalent) whose signals feed skill inference.
type SourceUnit struct {
	ID         string   `json:"id"`
	Kind       UnitKind `json:"kind"`
	Source     string   `json:"source"`
	Owner      string   `json:"owner"`
	Name       string   `json:"name"`
	FullName   string   `json:"full_name"`
	DefaultRef string   `json:"default_ref"`
	Stars      int      `json:"stars"`
	Forks      int      `json:"forks"`
	Language   string   `json:"language,omitempty"`
	PushedAtMs int64    `json:"pushed_at_ms"`
	// TracksActivity is false for units that have no commit feed at all.
	TracksActivity bool `json:"tracks_activity"`
}

type Commit struct {
	SHA         string `json:"sha"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp_ms"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorLogin string `json:"author_login,omitempty"`
}

type FileEntry struct {
	Path      string `json:"path"`
	Extension string `json:"extension,omitempty"`
}

type Dependency struct {
	Manager string `json:"manager"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// SignalBundle is everything the inference collaborator gets to see for one unit.
type SignalBundle struct {
	Unit               SourceUnit     `json:"unit"`
	Dependencies       []Dependency   `json:"dependencies"`
	Commits            []Commit       `json:"commits"`
	ExtensionHistogram map[string]int `json:"extension_histogram"`
	DocumentText       string         `json:"document_text,omitempty"`
}

type DerivedSkill struct {
	Skill     string   `json:"skill"`
	Score     float64  `json:"score"`
	Reasoning string   `json:"reasoning"`
	Evidence  []string `json:"evidence"`
}

// UnitSkills ties derived skills to the unit they were inferred from.
type UnitSkills struct {
	Unit   SourceUnit
	Skills []DerivedSkill
}

type AggregatedSkill struct {
	Skill                string             `json:"skill"`
	Score                float64            `json:"score"`
	Reasoning            string             `json:"reasoning"`
	Vector               map[string]float64 `json:"vector"`
	VocabularyGeneration int64              `json:"vocabulary_generation"`
}

type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobError   JobStatus = "error"
)

// Terminal reports whether no further transition may leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobError
}

type Job struct {
	ID          uuid.UUID  `json:"id"`
	SubjectID   uuid.UUID  `json:"subject_id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type EvaluationStatus string

const (
	EvaluationIdle    EvaluationStatus = "idle"
	EvaluationRunning EvaluationStatus = "running"
	EvaluationSuccess EvaluationStatus = "success"
	EvaluationError   EvaluationStatus = "error"
)

type Subject struct {
	ID               uuid.UUID        `json:"id"`
	Handle           string           `json:"handle"`
	ConnectedAt      time.Time        `json:"connected_at"`
	LastEvaluatedAt  *time.Time       `json:"last_evaluated_at,omitempty"`
	EvaluationStatus EvaluationStatus `json:"evaluation_status"`
	EvaluationError  string           `json:"evaluation_error,omitempty"`
}

type CatalogItem struct {
	ID              int64    `json:"id"`
	Title           string   `json:"job_title"`
	Company         string   `json:"company,omitempty"`
	LocationCity    string   `json:"location_city,omitempty"`
	LocationState   string   `json:"location_state,omitempty"`
	LocationCountry string   `json:"location_country,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	EmploymentType  string   `json:"employment_type,omitempty"`
	Skills          []string `json:"skills_tech_stack"`
	JobURL          string   `json:"job_url,omitempty"`
	ApplyURL        string   `json:"apply_url,omitempty"`
}

type CatalogSkill struct {
	ItemID               int64              `json:"item_id"`
	Skill                string             `json:"skill"`
	Vector               map[string]float64 `json:"vector"`
	VocabularyGeneration int64              `json:"vocabulary_generation"`
}

type SkillPair struct {
	CatalogSkill string  `json:"catalog_skill"`
	SubjectSkill string  `json:"subject_skill"`
	Similarity   float64 `json:"similarity"`
	SubjectScore float64 `json:"subject_score"`
}

type MatchResult struct {
	CatalogItemID int64       `json:"catalog_item_id"`
	Title         string      `json:"job_title"`
	Company       string      `json:"company,omitempty"`
	JobURL        string      `json:"job_url,omitempty"`
	Score         float64     `json:"score"`
	TopSkillPairs []SkillPair `json:"top_skill_pairs"`
}

// ErrNotFound is returned by stores for unknown keys.
var ErrNotFound = errors.New("not found")
