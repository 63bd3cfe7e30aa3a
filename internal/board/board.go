// Package board implements the Task Board: the ordered set of Tasks with
// status, dependencies, decomposition tree, and priority scoring (spec §4.2).
package board

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/undercity/internal/models"
	"github.com/harrison/undercity/internal/store"
)

const documentName = "tasks.json"

// Document is the on-disk schema of tasks.json (spec §6).
type Document struct {
	Tasks       []models.Task `json:"tasks"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// Board is the Task Board, backed by the State Store.
type Board struct {
	store *store.Store
}

// New constructs a Board over the given State Store.
func New(s *store.Store) *Board {
	return &Board{store: s}
}

// read loads the current document without acquiring the advisory lock.
// Callers that mutate must wrap the whole read-modify-write in WithLock.
func (b *Board) read() (Document, error) {
	var doc Document
	if err := b.store.Load(documentName, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (b *Board) write(doc Document) error {
	doc.LastUpdated = time.Now()
	return b.store.Save(documentName, doc)
}

func (b *Board) mutate(fn func(doc *Document) error) error {
	return b.store.WithLock(documentName, func() error {
		doc, err := b.read()
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		return b.write(doc)
	})
}

// AddTask creates and persists a new pending Task.
func (b *Board) AddTask(objective string, priority float64, ticket *models.TicketContent) (models.Task, error) {
	var created models.Task
	err := b.mutate(func(doc *Document) error {
		task := models.NewTask(uuid.NewString(), objective, priority)
		task.Ticket = ticket
		if err := models.ValidateDependsOn(doc.Tasks, task); err != nil {
			return err
		}
		doc.Tasks = append(doc.Tasks, task)
		created = task
		return nil
	})
	return created, err
}

// AddTasks creates a batch of Tasks, assigning ascending priority within the
// batch (0, 1, 2, ...) so later objectives in the list rank lower than
// earlier ones by default.
func (b *Board) AddTasks(objectives []string) ([]models.Task, error) {
	var created []models.Task
	err := b.mutate(func(doc *Document) error {
		for i, objective := range objectives {
			task := models.NewTask(uuid.NewString(), objective, float64(i))
			doc.Tasks = append(doc.Tasks, task)
			created = append(created, task)
		}
		return nil
	})
	return created, err
}

// PlanTaskSpec is one task to create via AddPlan, with dependencies named by
// their 1-based position in the same batch rather than by Task ID (which
// does not exist yet at parse time).
type PlanTaskSpec struct {
	Objective    string
	Priority     float64
	DependsOnPos []int
}

// AddPlan creates a batch of Tasks from specs in one document, translating
// each DependsOnPos entry into the real Task ID assigned to that position
// (import-plan's `depends: N, M` annotation).
func (b *Board) AddPlan(specs []PlanTaskSpec) ([]models.Task, error) {
	var created []models.Task
	err := b.mutate(func(doc *Document) error {
		ids := make([]string, len(specs))
		tasks := make([]models.Task, len(specs))
		for i, spec := range specs {
			task := models.NewTask(uuid.NewString(), spec.Objective, spec.Priority)
			ids[i] = task.ID
			tasks[i] = task
		}
		for i, spec := range specs {
			for _, pos := range spec.DependsOnPos {
				if pos < 1 || pos > len(ids) || pos == i+1 {
					continue
				}
				tasks[i].DependsOn = append(tasks[i].DependsOn, ids[pos-1])
			}
			if err := models.ValidateDependsOn(doc.Tasks, tasks[i]); err != nil {
				return err
			}
			doc.Tasks = append(doc.Tasks, tasks[i])
		}
		created = tasks
		return nil
	})
	return created, err
}

// GetNextTask returns the single highest-ranked pending task whose
// dependencies are all complete and which is not a decomposed parent, or nil
// if none qualify.
func (b *Board) GetNextTask() (*models.Task, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	ranked := b.rankedReady(doc.Tasks)
	if len(ranked) == 0 {
		return nil, nil
	}
	return &ranked[0], nil
}

// GetReadyTasksForBatch returns up to n pending, dependency-satisfied,
// non-decomposed tasks with file/package overlap pruning against each other.
func (b *Board) GetReadyTasksForBatch(n int) ([]models.Task, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	ranked := b.rankedReady(doc.Tasks)

	var selected []models.Task
	selectedPackages := make(map[string]struct{})
	selectedFiles := make(map[string]struct{})

	for _, task := range ranked {
		if len(selected) >= n {
			break
		}
		if overlaps(task.PackageSet(), selectedPackages) || overlaps(task.FileSet(), selectedFiles) {
			continue
		}
		selected = append(selected, task)
		for p := range task.PackageSet() {
			selectedPackages[p] = struct{}{}
		}
		for f := range task.FileSet() {
			selectedFiles[f] = struct{}{}
		}
	}
	return selected, nil
}

func overlaps(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// rankedReady returns every CanExecute task whose dependsOn are all complete,
// sorted by priority score ascending (lower score = higher priority), ties
// broken by original insertion order.
func (b *Board) rankedReady(tasks []models.Task) []models.Task {
	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	type scored struct {
		task  models.Task
		score float64
		order int
	}

	var candidates []scored
	for i, t := range tasks {
		if !t.CanExecute() {
			continue
		}
		if !dependenciesComplete(t, byID) {
			continue
		}
		candidates = append(candidates, scored{task: t, score: PriorityScore(t), order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].order < candidates[j].order
	})

	out := make([]models.Task, len(candidates))
	for i, c := range candidates {
		out[i] = c.task
	}
	return out
}

func dependenciesComplete(t models.Task, byID map[string]models.Task) bool {
	for _, dep := range t.DependsOn {
		depTask, ok := byID[dep]
		if !ok || depTask.Status != models.StatusComplete {
			return false
		}
	}
	return true
}

var tagBoosts = map[string]float64{
	"critical":    -50,
	"bugfix":      -30,
	"security":    -25,
	"performance": -20,
	"refactor":    -10,
}

var complexityBoosts = map[string]float64{
	"trivial":  -20,
	"low":      -10,
	"medium":   0,
	"high":     10,
	"critical": 20,
}

// PriorityScore computes the board's ranking score for a task; lower is
// higher priority (spec §4.2).
func PriorityScore(t models.Task) float64 {
	score := t.Priority

	for _, tag := range t.Tags {
		if boost, ok := tagBoosts[strings.ToLower(tag)]; ok {
			score += boost
		}
		if boost, ok := complexityBoosts[strings.ToLower(tag)]; ok {
			score += boost
		}
	}

	age := math.Floor(time.Since(t.CreatedAt).Hours() / 24)
	agePenalty := age * 0.5
	if agePenalty > 30 {
		agePenalty = 30
	}
	score += agePenalty

	score += 5 * float64(len(t.DependsOn))

	return score
}

// MarkInProgress transitions a pending task to in_progress with a session id.
func (b *Board) MarkInProgress(id, sessionID string) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		now := time.Now()
		doc.Tasks[idx].Status = models.StatusInProgress
		doc.Tasks[idx].SessionID = sessionID
		doc.Tasks[idx].StartedAt = &now
		return nil
	})
}

// MarkComplete transitions a task to complete and, if it is a subtask,
// completes its parent when every sibling is also complete.
func (b *Board) MarkComplete(id string) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		now := time.Now()
		doc.Tasks[idx].Status = models.StatusComplete
		doc.Tasks[idx].CompletedAt = &now
		doc.Tasks[idx].Error = ""

		parentID := doc.Tasks[idx].ParentID
		if parentID != "" {
			completeParentIfDone(doc.Tasks, parentID)
		}
		return nil
	})
}

// MarkReconciled transitions a task straight to complete with a note that
// the `reconcile` command, not a Worker, determined it was already
// satisfied by an existing trunk commit.
func (b *Board) MarkReconciled(id, note string) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		now := time.Now()
		doc.Tasks[idx].Status = models.StatusComplete
		doc.Tasks[idx].CompletedAt = &now
		doc.Tasks[idx].Error = ""
		doc.Tasks[idx].ReconciledNote = note

		parentID := doc.Tasks[idx].ParentID
		if parentID != "" {
			completeParentIfDone(doc.Tasks, parentID)
		}
		return nil
	})
}

// MarkFailed transitions a task to failed with the given error text. A
// failed task may later be retried by resetting it to pending.
func (b *Board) MarkFailed(id, errText string) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		doc.Tasks[idx].Status = models.StatusFailed
		doc.Tasks[idx].Error = errText
		return nil
	})
}

// Retry resets a failed task back to pending, clearing session/error state.
func (b *Board) Retry(id string) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		if doc.Tasks[idx].Status != models.StatusFailed {
			return fmt.Errorf("task %s is not failed", id)
		}
		doc.Tasks[idx].Status = models.StatusPending
		doc.Tasks[idx].Error = ""
		doc.Tasks[idx].SessionID = ""
		doc.Tasks[idx].StartedAt = nil
		return nil
	})
}

// TaskAnalysis carries the fields updateTaskAnalysis may set.
type TaskAnalysis struct {
	ComputedPackages *[]string
	RiskScore        *float64
	EstimatedFiles   *[]string
	Tags             *[]string
}

// UpdateTaskAnalysis applies router/planner-derived analysis to a task.
func (b *Board) UpdateTaskAnalysis(id string, analysis TaskAnalysis) error {
	return b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, id)
		if err != nil {
			return err
		}
		if analysis.ComputedPackages != nil {
			doc.Tasks[idx].ComputedPackages = *analysis.ComputedPackages
		}
		if analysis.RiskScore != nil {
			doc.Tasks[idx].RiskScore = *analysis.RiskScore
		}
		if analysis.EstimatedFiles != nil {
			doc.Tasks[idx].EstimatedFiles = *analysis.EstimatedFiles
		}
		if analysis.Tags != nil {
			doc.Tasks[idx].Tags = *analysis.Tags
		}
		return nil
	})
}

// DecomposeInto marks parentID as decomposed (never directly executable) and
// inserts subtasks inheriting the parent's tags and estimated-file hints,
// with priority = parent.priority + 0.1*order to preserve ordering inside
// the parent's band.
func (b *Board) DecomposeInto(parentID string, objectives []string) ([]string, error) {
	var subtaskIDs []string
	err := b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, parentID)
		if err != nil {
			return err
		}
		parent := &doc.Tasks[idx]
		parent.IsDecomposed = true

		for order, objective := range objectives {
			sub := models.NewTask(uuid.NewString(), objective, parent.Priority+0.1*float64(order))
			sub.ParentID = parentID
			sub.Tags = append([]string{}, parent.Tags...)
			sub.EstimatedFiles = append([]string{}, parent.EstimatedFiles...)
			doc.Tasks = append(doc.Tasks, sub)
			subtaskIDs = append(subtaskIDs, sub.ID)
			parent.SubtaskIDs = append(parent.SubtaskIDs, sub.ID)
		}
		return nil
	})
	return subtaskIDs, err
}

// AddTickets creates new pending Tasks from unresolved review tickets,
// linked to parentID via ParentID. Unlike DecomposeInto, it does not mark
// parentID decomposed or register the new tasks in its SubtaskIDs: parentID
// has already merged by the time review tickets exist, so these are
// follow-up work sitting alongside it, not a split of work it never did
// (spec §4.7).
func (b *Board) AddTickets(parentID string, tickets []models.TicketContent) ([]models.Task, error) {
	var created []models.Task
	err := b.mutate(func(doc *Document) error {
		idx, err := findTask(doc.Tasks, parentID)
		if err != nil {
			return err
		}
		parent := doc.Tasks[idx]
		for i, ticket := range tickets {
			t := ticket
			sub := models.NewTask(uuid.NewString(), ticket.Description, parent.Priority+0.1*float64(i))
			sub.ParentID = parentID
			sub.Ticket = &t
			doc.Tasks = append(doc.Tasks, sub)
			created = append(created, sub)
		}
		return nil
	})
	return created, err
}

// AreAllSubtasksComplete reports whether every subtask of parentID is
// complete. A parent with no subtasks is not considered complete by this
// check (decomposition must have happened first).
func (b *Board) AreAllSubtasksComplete(parentID string) (bool, error) {
	doc, err := b.read()
	if err != nil {
		return false, err
	}
	idx, err := findTask(doc.Tasks, parentID)
	if err != nil {
		return false, err
	}
	return allSubtasksComplete(doc.Tasks, doc.Tasks[idx]), nil
}

// CompleteParentIfAllSubtasksDone marks parentID complete iff every one of
// its subtasks is already complete.
func (b *Board) CompleteParentIfAllSubtasksDone(parentID string) error {
	return b.mutate(func(doc *Document) error {
		completeParentIfDone(doc.Tasks, parentID)
		return nil
	})
}

func completeParentIfDone(tasks []models.Task, parentID string) {
	pIdx, err := findTask(tasks, parentID)
	if err != nil {
		return
	}
	if tasks[pIdx].Status == models.StatusComplete {
		return
	}
	if allSubtasksComplete(tasks, tasks[pIdx]) {
		now := time.Now()
		tasks[pIdx].Status = models.StatusComplete
		tasks[pIdx].CompletedAt = &now
	}
}

func allSubtasksComplete(tasks []models.Task, parent models.Task) bool {
	if len(parent.SubtaskIDs) == 0 {
		return false
	}
	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	for _, subID := range parent.SubtaskIDs {
		sub, ok := byID[subID]
		if !ok || sub.Status != models.StatusComplete {
			return false
		}
	}
	return true
}

// Get returns a task by id.
func (b *Board) Get(id string) (models.Task, error) {
	doc, err := b.read()
	if err != nil {
		return models.Task{}, err
	}
	idx, err := findTask(doc.Tasks, id)
	if err != nil {
		return models.Task{}, err
	}
	return doc.Tasks[idx], nil
}

// All returns every task currently on the board.
func (b *Board) All() ([]models.Task, error) {
	doc, err := b.read()
	if err != nil {
		return nil, err
	}
	return doc.Tasks, nil
}

func findTask(tasks []models.Task, id string) (int, error) {
	for i, t := range tasks {
		if t.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("task %s not found", id)
}
