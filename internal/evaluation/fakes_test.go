package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

type memStore struct {
	mu          sync.Mutex
	subjects    map[uuid.UUID]models.Subject
	jobs        map[uuid.UUID]models.Job
	progressLog map[uuid.UUID][]int
	units       map[uuid.UUID][]models.UnitSkills
	skills      map[uuid.UUID][]models.AggregatedSkill
	vocab       *textvec.Vocabulary
	replaceErr  error
	failErrs    int // next FailJob calls that error out
	failCalls   int
}

func newMemStore(vocab *textvec.Vocabulary) *memStore {
	return &memStore{
		subjects:    make(map[uuid.UUID]models.Subject),
		jobs:        make(map[uuid.UUID]models.Job),
		progressLog: make(map[uuid.UUID][]int),
		units:       make(map[uuid.UUID][]models.UnitSkills),
		skills:      make(map[uuid.UUID][]models.AggregatedSkill),
		vocab:       vocab,
	}
}

func (s *memStore) VocabularyGeneration(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vocab.Generation, nil
}

func (s *memStore) LoadVocabulary(context.Context) (*textvec.Vocabulary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vocab, nil
}

func (s *memStore) EnsureSubject(_ context.Context, handle string, connectedAt time.Time) (models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subjects {
		if sub.Handle == handle {
			return sub, nil
		}
	}
	sub := models.Subject{ID: uuid.New(), Handle: handle, ConnectedAt: connectedAt, EvaluationStatus: models.EvaluationIdle}
	s.subjects[sub.ID] = sub
	return sub, nil
}

func (s *memStore) SubjectByID(_ context.Context, id uuid.UUID) (models.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return models.Subject{}, fmt.Errorf("subject %s: %w", id, models.ErrNotFound)
	}
	return sub, nil
}

func (s *memStore) SetSubjectEvaluation(_ context.Context, id uuid.UUID, status models.EvaluationStatus, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subjects[id]
	sub.EvaluationStatus = status
	sub.EvaluationError = message
	s.subjects[id] = sub
	return nil
}

func (s *memStore) CreateJob(_ context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) GetJob(_ context.Context, id uuid.UUID) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	return job, nil
}

func (s *memStore) LiveJobForSubject(_ context.Context, subjectID uuid.UUID, since time.Time) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var live []models.Job
	for _, job := range s.jobs {
		if job.SubjectID == subjectID && !job.Status.Terminal() && !job.CreatedAt.Before(since) {
			live = append(live, job)
		}
	}
	if len(live) == 0 {
		return models.Job{}, models.ErrNotFound
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	return live[0], nil
}

func (s *memStore) StartJob(_ context.Context, id uuid.UUID, startedAt, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	stale := job.Status == models.JobRunning && job.StartedAt != nil && job.StartedAt.Before(staleBefore)
	if job.Status != models.JobQueued && !stale {
		return false, nil
	}
	job.Status = models.JobRunning
	job.StartedAt = &startedAt
	job.Progress = max(job.Progress, progressStarted)
	s.jobs[id] = job
	s.progressLog[id] = append(s.progressLog[id], job.Progress)
	return true, nil
}

func (s *memStore) AdvanceJobProgress(_ context.Context, id uuid.UUID, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job.Status != models.JobRunning || progress <= job.Progress {
		return nil
	}
	job.Progress = progress
	s.jobs[id] = job
	s.progressLog[id] = append(s.progressLog[id], progress)
	return nil
}

func (s *memStore) CompleteJob(_ context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.JobSuccess
	job.Progress = progressDone
	job.CompletedAt = &completedAt
	s.jobs[id] = job
	s.progressLog[id] = append(s.progressLog[id], progressDone)
	return true, nil
}

func (s *memStore) FailJob(_ context.Context, id uuid.UUID, message string, completedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCalls++
	if s.failErrs > 0 {
		s.failErrs--
		return false, errors.New("connection reset")
	}
	job := s.jobs[id]
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = models.JobError
	job.Error = message
	job.CompletedAt = &completedAt
	s.jobs[id] = job
	return true, nil
}

func (s *memStore) ReplaceSubjectSkills(_ context.Context, subjectID uuid.UUID, units []models.UnitSkills, skills []models.AggregatedSkill, evaluatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.units[subjectID] = units
	s.skills[subjectID] = skills
	sub := s.subjects[subjectID]
	sub.EvaluationStatus = models.EvaluationSuccess
	sub.EvaluationError = ""
	sub.LastEvaluatedAt = &evaluatedAt
	s.subjects[subjectID] = sub
	return nil
}

func (s *memStore) job(id uuid.UUID) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *memStore) subjectSkills(id uuid.UUID) []models.AggregatedSkill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skills[id]
}

type fakeSignals struct {
	units     []models.SourceUnit
	listErr   error
	commits   map[string][]models.Commit
	commitErr map[string]error
	treeErr   map[string]error
	deps      map[string][]models.Dependency
	documents map[string]string
	// delay per unit, to shuffle completion order
	delay map[string]time.Duration
}

func (f *fakeSignals) ListSourceUnits(ctx context.Context, _ string, limit int) ([]models.SourceUnit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	units := f.units
	if len(units) > limit {
		units = units[:limit]
	}
	return units, nil
}

func (f *fakeSignals) FetchCommitHistory(_ context.Context, unit models.SourceUnit, limit int) ([]models.Commit, error) {
	if d := f.delay[unit.ID]; d > 0 {
		time.Sleep(d)
	}
	if err := f.commitErr[unit.ID]; err != nil {
		return nil, err
	}
	commits := f.commits[unit.ID]
	if len(commits) > limit {
		commits = commits[:limit]
	}
	return commits, nil
}

func (f *fakeSignals) FetchFileTree(_ context.Context, unit models.SourceUnit, _ int) ([]models.FileEntry, error) {
	if err := f.treeErr[unit.ID]; err != nil {
		return nil, err
	}
	return []models.FileEntry{{Path: "main.go", Extension: "go"}, {Path: "go.mod"}}, nil
}

func (f *fakeSignals) FetchDependencyManifests(_ context.Context, unit models.SourceUnit, _ []models.FileEntry) ([]models.Dependency, error) {
	return f.deps[unit.ID], nil
}

func (f *fakeSignals) FetchDocumentText(_ context.Context, unit models.SourceUnit) (string, error) {
	text, ok := f.documents[unit.ID]
	if !ok {
		return "", errors.New("no such document")
	}
	return text, nil
}

type fakeInferer struct {
	mu      sync.Mutex
	skills  map[string][]models.DerivedSkill
	errs    map[string]error
	bundles []models.SignalBundle
}

func (f *fakeInferer) InferSkills(_ context.Context, bundle models.SignalBundle) ([]models.DerivedSkill, error) {
	f.mu.Lock()
	f.bundles = append(f.bundles, bundle)
	f.mu.Unlock()
	if err := f.errs[bundle.Unit.ID]; err != nil {
		return nil, err
	}
	return f.skills[bundle.Unit.ID], nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []Update
}

func (n *recordingNotifier) Notify(_ context.Context, u Update) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	return nil
}

func (n *recordingNotifier) statuses() []models.JobStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.JobStatus, 0, len(n.updates))
	for _, u := range n.updates {
		if len(out) > 0 && out[len(out)-1] == u.Status {
			continue
		}
		out = append(out, u.Status)
	}
	return out
}
