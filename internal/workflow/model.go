// Package workflow holds the inspection checklist and the navigation state
// machine over it. Nothing here performs I/O or locking: callers serialize
// access (see package arbiter).
package workflow

// Stage is one of the five phases of an inspection session.
type Stage int

const (
	StageStart Stage = iota
	StagePrerequisites
	StageTools
	StageInspection
	StageSummary
)

// String returns the upper-case stage name used in logs and JSON.
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "START"
	case StagePrerequisites:
		return "PREREQUISITES"
	case StageTools:
		return "TOOLS"
	case StageInspection:
		return "INSPECTION"
	case StageSummary:
		return "SUMMARY"
	default:
		return "UNKNOWN"
	}
}

// Direction is the navigation step for Advance.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// Cursor is the navigation position. Only the indices relevant to Stage are
// meaningful: Prereq in PREREQUISITES, Panel and Task in INSPECTION.
type Cursor struct {
	Stage  Stage `json:"-"`
	Prereq int   `json:"prerequisite_index"`
	Panel  int   `json:"panel_index"`
	Task   int   `json:"task_index"`
}

// Notifier is told about every state change. The render trigger implements
// it.
type Notifier interface {
	Mark()
}

// Option configures a Model.
type Option func(*Model)

// WithNotifier registers the notifier marked on every successful mutation.
func WithNotifier(n Notifier) Option {
	return func(m *Model) { m.notify = n }
}

// OnComplete registers fn to run when a forward advance first reaches
// SUMMARY. fn runs with the caller's lock held and must not block.
func OnComplete(fn func()) Option {
	return func(m *Model) { m.onComplete = fn }
}

// Model is the cursor plus the checklist it walks. It is not safe for
// concurrent use.
type Model struct {
	content    *Content
	cursor     Cursor
	completed  bool
	notify     Notifier
	onComplete func()
}

// NewModel returns a model positioned at START. content must have passed
// Validate.
func NewModel(content *Content, opts ...Option) *Model {
	m := &Model{content: content}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cursor returns the current position.
func (m *Model) Cursor() Cursor { return m.cursor }

// Content returns the checklist.
func (m *Model) Content() *Content { return m.content }

// Completed reports whether SUMMARY has ever been reached.
func (m *Model) Completed() bool { return m.completed }

// CurrentStep returns the step under the cursor, or nil outside
// PREREQUISITES and INSPECTION.
func (m *Model) CurrentStep() *Step {
	switch m.cursor.Stage {
	case StagePrerequisites:
		return m.content.Prerequisites[m.cursor.Prereq]
	case StageInspection:
		return m.content.Panels[m.cursor.Panel].Tasks[m.cursor.Task]
	}
	return nil
}

// MarkCurrentStep records status on the current step if it is still
// PENDING. It reports whether anything changed.
func (m *Model) MarkCurrentStep(status Status) bool {
	if status != StatusPass && status != StatusFail {
		return false
	}
	step := m.CurrentStep()
	if step == nil || step.Status != StatusPending {
		return false
	}
	step.Status = status
	m.changed()
	return true
}

// Advance moves the cursor one position in dir. It reports whether the
// cursor moved; START backward and SUMMARY forward are no-ops.
func (m *Model) Advance(dir Direction) bool {
	if dir != Forward && dir != Backward {
		return false
	}

	c := &m.cursor
	switch c.Stage {
	case StageStart:
		if dir == Backward {
			return false
		}
		c.Stage, c.Prereq = StagePrerequisites, 0

	case StagePrerequisites:
		next := c.Prereq + int(dir)
		switch {
		case next >= len(m.content.Prerequisites):
			c.Stage = StageTools
		case next < 0:
			c.Stage = StageStart
		default:
			c.Prereq = next
		}

	case StageTools:
		if dir == Forward {
			c.Stage, c.Panel, c.Task = StageInspection, 0, 0
		} else {
			c.Stage, c.Prereq = StagePrerequisites, len(m.content.Prerequisites)-1
		}

	case StageInspection:
		m.advanceInspection(dir)

	case StageSummary:
		if dir == Forward {
			return false
		}
		last := len(m.content.Panels) - 1
		c.Stage, c.Panel, c.Task = StageInspection, last, len(m.content.Panels[last].Tasks)-1

	default:
		return false
	}

	m.changed()
	return true
}

func (m *Model) advanceInspection(dir Direction) {
	c := &m.cursor
	tasks := len(m.content.Panels[c.Panel].Tasks)
	next := c.Task + int(dir)

	switch {
	case next >= 0 && next < tasks:
		c.Task = next

	case next >= tasks:
		if c.Panel < len(m.content.Panels)-1 {
			c.Panel, c.Task = c.Panel+1, 0
			return
		}
		c.Stage = StageSummary
		first := !m.completed
		m.completed = true
		if first && m.onComplete != nil {
			m.onComplete()
		}

	default:
		if c.Panel > 0 {
			c.Panel--
			c.Task = len(m.content.Panels[c.Panel].Tasks) - 1
			return
		}
		c.Stage = StageTools
	}
}

func (m *Model) changed() {
	if m.notify != nil {
		m.notify.Mark()
	}
}
