package database

import (
	"database/sql"

	"github.com/google/uuid"
)

type Subject struct {
	ID               uuid.UUID
	Handle           string
	ConnectedAt      int64
	LastEvaluatedAt  sql.NullInt64
	EvaluationStatus string
	EvaluationError  string
}

type EvaluationJob struct {
	ID          uuid.UUID
	SubjectID   uuid.UUID
	Status      string
	Progress    int32
	CreatedAt   int64
	StartedAt   sql.NullInt64
	CompletedAt sql.NullInt64
	Error       string
}

type SourceUnit struct {
	SubjectID  uuid.UUID
	UnitID     string
	Kind       string
	Source     string
	Owner      string
	Name       string
	FullName   string
	DefaultRef string
	Stars      int32
	Forks      int32
	Language   string
	PushedAt   int64
}

type UnitSkill struct {
	SubjectID uuid.UUID
	UnitID    string
	Skill     string
	Score     float64
	Reasoning string
	// Evidence is a JSON array of strings.
	Evidence string
}

type SubjectSkill struct {
	SubjectID            uuid.UUID
	Skill                string
	Score                float64
	Reasoning            string
	Vector               string
	VocabularyGeneration int64
}

type VocabularyTerm struct {
	Term              string
	DocumentFrequency int32
	Idf               float64
}

type VocabularyState struct {
	Generation int64
	Documents  int32
}

type CatalogItem struct {
	ID              int64
	Title           string
	Company         string
	LocationCity    string
	LocationState   string
	LocationCountry string
	ExperienceLevel string
	EmploymentType  string
	// Skills is a JSON array of strings.
	Skills   string
	JobUrl   string
	ApplyUrl string
}

type CatalogSkill struct {
	ItemID               int64
	Ordinal              int32
	Skill                string
	Vector               string
	VocabularyGeneration int64
}
