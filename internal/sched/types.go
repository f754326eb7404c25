package sched

import (
	"context"
	"time"

	"github.com/o9nn/echo.go-sub000/internal/budget"
	"github.com/o9nn/echo.go-sub000/internal/loop"
)

// Priority orders task admission. Lower is more urgent.
type Priority int

const (
	PriorityCritical   Priority = 1
	PriorityHigh       Priority = 2
	PriorityMedium     Priority = 3
	PriorityLow        Priority = 4
	PriorityBackground Priority = 5
)

func (p Priority) valid() bool {
	return p >= PriorityCritical && p <= PriorityBackground
}

// TaskType is the closed set of cognitive task kinds.
type TaskType string

const (
	TypeThoughtGeneration    TaskType = "thought_generation"
	TypeSkillPractice        TaskType = "skill_practice"
	TypeKnowledgeAcquisition TaskType = "knowledge_acquisition"
	TypeDiscussionEngagement TaskType = "discussion_engagement"
	TypeWisdomSynthesis      TaskType = "wisdom_synthesis"
	TypeGoalFormation        TaskType = "goal_formation"
	TypeInterestExploration  TaskType = "interest_exploration"
	TypeMemoryConsolidation  TaskType = "memory_consolidation"
	TypeMetaReflection       TaskType = "meta_reflection"
)

// streamForType partitions the known task types across the three streams.
// Types outside the table spread evenly at random.
var streamForType = map[TaskType]int{
	// Stream 1: perception-action.
	TypeThoughtGeneration:    1,
	TypeKnowledgeAcquisition: 1,
	TypeDiscussionEngagement: 1,
	// Stream 2: reflection-planning.
	TypeGoalFormation:       2,
	TypeInterestExploration: 2,
	TypeMetaReflection:      2,
	// Stream 3: simulation-synthesis.
	TypeWisdomSynthesis:     3,
	TypeMemoryConsolidation: 3,
	TypeSkillPractice:       3,
}

// Status is the task lifecycle state. Terminal states are permanent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Callback is the uniform unit-of-work signature. Blocking work must honor
// ctx; errors (and panics) are recorded on the task, never propagated.
//
// The scheduler knows nothing about a callback's contents, only its declared
// task type and estimated cost.
type Callback func(ctx context.Context, params map[string]any) (any, error)

// Sync adapts a function with no blocking work to the Callback signature.
func Sync(fn func(params map[string]any) (any, error)) Callback {
	return func(_ context.Context, params map[string]any) (any, error) {
		return fn(params)
	}
}

// TaskRequest describes one unit of work to schedule.
type TaskRequest struct {
	Type        TaskType
	Description string
	Priority    Priority // zero value means PriorityMedium
	Callback    Callback
	Params      map[string]any
	Deadline    time.Time // optional; zero means none
	Cost        int       // estimated cost units; zero means the default (100)
	Stream      int       // 1..3, or 0 to derive from Type
}

// task is the scheduler-internal task state. Only the driver mutates
// status, result and completedAt after enqueue.
type task struct {
	id          string
	taskType    TaskType
	description string
	priority    Priority
	stream      int
	step        int
	mode        loop.Mode
	scheduledAt time.Time
	deadline    time.Time
	cost        int
	callback    Callback
	params      map[string]any

	status      Status
	result      any
	errText     string
	createdAt   time.Time
	completedAt time.Time

	seq uint64 // insertion order, final comparator tie-break
}

// TaskRecord is the externally visible view of a finished (or scheduled)
// task. Records for terminal tasks land in the history, keyed by type.
type TaskRecord struct {
	ID          string        `json:"id"`
	Type        TaskType      `json:"type"`
	Description string        `json:"description,omitempty"`
	Priority    Priority      `json:"priority"`
	Stream      int           `json:"stream"`
	Step        int           `json:"step"`
	Mode        loop.Mode     `json:"mode"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`
	Result      any           `json:"result,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (t *task) record() TaskRecord {
	r := TaskRecord{
		ID:          t.id,
		Type:        t.taskType,
		Description: t.description,
		Priority:    t.priority,
		Stream:      t.stream,
		Step:        t.step,
		Mode:        t.mode,
		Status:      t.status,
		Error:       t.errText,
		Result:      t.result,
		CreatedAt:   t.createdAt,
		CompletedAt: t.completedAt,
	}
	if !t.completedAt.IsZero() {
		r.Duration = t.completedAt.Sub(t.createdAt)
	}
	return r
}

// Config controls the scheduler driver.
type Config struct {
	Enabled bool

	// TickInterval is the duration of one phase-clock step.
	TickInterval time.Duration

	// AdmitPerTick caps admissions within a single tick.
	AdmitPerTick int

	// ExecTimeout bounds one callback's wall-clock duration. On expiry the
	// task is failed and its concurrency slot forcibly released.
	ExecTimeout time.Duration

	// HistorySize bounds the recent-record list in the snapshot.
	HistorySize int

	Budget budget.Config
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 2 * time.Second
	}
	if c.AdmitPerTick <= 0 {
		c.AdmitPerTick = 3
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 30 * time.Second
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

// Snapshot is a read-only view of scheduler state. Building it never
// mutates the scheduler.
type Snapshot struct {
	Running          bool             `json:"is_running"`
	State            string           `json:"state"`
	CurrentStep      int              `json:"current_step"`
	CycleCount       uint64           `json:"cycle_count"`
	StreamStates     map[int]int      `json:"stream_states"`
	PendingTasks     int              `json:"pending_tasks"`
	PendingHighWater int              `json:"pending_high_water"`
	CompletedTasks   int              `json:"completed_tasks"`
	Budget           budget.Usage     `json:"resource_budget"`
	TaskHistory      map[TaskType]int `json:"task_history"`
	Recent           []TaskRecord     `json:"recent,omitempty"`
}
