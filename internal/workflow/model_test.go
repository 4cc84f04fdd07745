package workflow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct{ n int }

func (c *countingNotifier) Mark() { c.n++ }

// testContent has 3 prerequisites and two panels with 2 and 3 tasks.
func testContent() *Content {
	step := func(d string) *Step { return &Step{Description: d, Status: StatusPending} }
	return &Content{
		Title:         "test",
		Prerequisites: []*Step{step("p1"), step("p2"), step("p3")},
		Tools:         []string{"wrench"},
		Panels: []*Panel{
			{Name: "A", Tasks: []*Step{step("a1"), step("a2")}},
			{Name: "B", Tasks: []*Step{step("b1"), step("b2"), step("b3")}},
		},
	}
}

func advanceN(m *Model, dir Direction, n int) {
	for i := 0; i < n; i++ {
		m.Advance(dir)
	}
}

func TestModel_scenario_reachesSummary(t *testing.T) {
	completions := 0
	m := NewModel(testContent(), OnComplete(func() { completions++ }))

	m.Advance(Forward)
	assert.Equal(t, Cursor{Stage: StagePrerequisites}, m.Cursor())

	advanceN(m, Forward, 3)
	assert.Equal(t, StageTools, m.Cursor().Stage)

	m.Advance(Forward)
	assert.Equal(t, Cursor{Stage: StageInspection, Prereq: 2, Panel: 0, Task: 0}, m.Cursor())

	advanceN(m, Forward, 4)
	assert.Equal(t, Cursor{Stage: StageInspection, Prereq: 2, Panel: 1, Task: 2}, m.Cursor())
	assert.Equal(t, 0, completions)

	m.Advance(Forward)
	assert.Equal(t, StageSummary, m.Cursor().Stage)
	assert.Equal(t, 1, completions)
	assert.True(t, m.Completed())
}

func TestModel_completionFiresOnce(t *testing.T) {
	completions := 0
	m := NewModel(testContent(), OnComplete(func() { completions++ }))
	advanceN(m, Forward, 1+3+1+5)
	require.Equal(t, StageSummary, m.Cursor().Stage)

	for i := 0; i < 3; i++ {
		m.Advance(Backward)
		require.Equal(t, StageInspection, m.Cursor().Stage)
		m.Advance(Forward)
		require.Equal(t, StageSummary, m.Cursor().Stage)
	}
	assert.Equal(t, 1, completions)
}

func TestModel_startBackwardIsNoop(t *testing.T) {
	n := &countingNotifier{}
	m := NewModel(testContent(), WithNotifier(n))

	assert.False(t, m.Advance(Backward))
	assert.Equal(t, StageStart, m.Cursor().Stage)
	assert.Zero(t, n.n)
}

func TestModel_summaryForwardIsNoop(t *testing.T) {
	n := &countingNotifier{}
	m := NewModel(testContent(), WithNotifier(n))
	advanceN(m, Forward, 10)
	require.Equal(t, StageSummary, m.Cursor().Stage)
	marks := n.n

	assert.False(t, m.Advance(Forward))
	assert.Equal(t, marks, n.n)
}

func TestModel_invalidDirection(t *testing.T) {
	m := NewModel(testContent())
	assert.False(t, m.Advance(Direction(2)))
	assert.False(t, m.Advance(Direction(0)))
}

func TestModel_backwardTransitions(t *testing.T) {
	m := NewModel(testContent())

	// PREREQUISITES(0) -> START
	m.Advance(Forward)
	m.Advance(Backward)
	assert.Equal(t, StageStart, m.Cursor().Stage)

	// TOOLS -> PREREQUISITES(last)
	advanceN(m, Forward, 4)
	require.Equal(t, StageTools, m.Cursor().Stage)
	m.Advance(Backward)
	assert.Equal(t, Cursor{Stage: StagePrerequisites, Prereq: 2}, m.Cursor())

	// INSPECTION(1,0) -> INSPECTION(0,last)
	advanceN(m, Forward, 4)
	require.Equal(t, Cursor{Stage: StageInspection, Prereq: 2, Panel: 1, Task: 0}, m.Cursor())
	m.Advance(Backward)
	assert.Equal(t, Cursor{Stage: StageInspection, Panel: 0, Task: 1, Prereq: 2}, m.Cursor())

	// INSPECTION(0,0) -> TOOLS
	m.Advance(Backward)
	m.Advance(Backward)
	assert.Equal(t, StageTools, m.Cursor().Stage)

	// SUMMARY -> INSPECTION(last, last)
	advanceN(m, Forward, 6)
	require.Equal(t, StageSummary, m.Cursor().Stage)
	m.Advance(Backward)
	c := m.Cursor()
	assert.Equal(t, StageInspection, c.Stage)
	assert.Equal(t, 1, c.Panel)
	assert.Equal(t, 2, c.Task)
}

func TestModel_markOnlyInStepStages(t *testing.T) {
	n := &countingNotifier{}
	m := NewModel(testContent(), WithNotifier(n))

	assert.False(t, m.MarkCurrentStep(StatusPass), "START")
	assert.Nil(t, m.CurrentStep())

	advanceN(m, Forward, 4)
	require.Equal(t, StageTools, m.Cursor().Stage)
	marks := n.n
	assert.False(t, m.MarkCurrentStep(StatusFail), "TOOLS")
	assert.Equal(t, marks, n.n)

	advanceN(m, Forward, 6)
	require.Equal(t, StageSummary, m.Cursor().Stage)
	assert.False(t, m.MarkCurrentStep(StatusFail), "SUMMARY")
}

func TestModel_markIsIdempotentAfterFirstSet(t *testing.T) {
	n := &countingNotifier{}
	m := NewModel(testContent(), WithNotifier(n))
	m.Advance(Forward)

	require.True(t, m.MarkCurrentStep(StatusFail))
	marks := n.n

	assert.False(t, m.MarkCurrentStep(StatusPass))
	assert.False(t, m.MarkCurrentStep(StatusFail))
	assert.False(t, m.MarkCurrentStep(StatusPending))
	assert.Equal(t, StatusFail, m.CurrentStep().Status)
	assert.Equal(t, marks, n.n)
}

func TestModel_navigationKeepsStatus(t *testing.T) {
	m := NewModel(testContent())
	advanceN(m, Forward, 6) // INSPECTION(0,1)
	require.Equal(t, Cursor{Stage: StageInspection, Prereq: 2, Panel: 0, Task: 1}, m.Cursor())
	require.True(t, m.MarkCurrentStep(StatusPass))

	m.Advance(Backward)
	m.Advance(Forward)

	assert.Equal(t, StatusPass, m.CurrentStep().Status)
}

func TestModel_everyMutationNotifies(t *testing.T) {
	n := &countingNotifier{}
	m := NewModel(testContent(), WithNotifier(n))

	m.Advance(Forward)
	m.MarkCurrentStep(StatusPass)
	m.Advance(Forward)

	assert.Equal(t, 3, n.n)
}

func assertInBounds(t *testing.T, c *Content, cur Cursor) {
	t.Helper()
	switch cur.Stage {
	case StagePrerequisites:
		require.GreaterOrEqual(t, cur.Prereq, 0)
		require.Less(t, cur.Prereq, len(c.Prerequisites))
	case StageInspection:
		require.GreaterOrEqual(t, cur.Panel, 0)
		require.Less(t, cur.Panel, len(c.Panels))
		require.GreaterOrEqual(t, cur.Task, 0)
		require.Less(t, cur.Task, len(c.Panels[cur.Panel].Tasks))
	case StageStart, StageTools, StageSummary:
	default:
		t.Fatalf("unknown stage %v", cur.Stage)
	}
}

func TestModel_randomSequencesStayInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		content := testContent()
		m := NewModel(content)
		seen := map[*Step]Status{}

		for i := 0; i < 200; i++ {
			switch rng.Intn(4) {
			case 0:
				m.Advance(Forward)
			case 1:
				m.Advance(Backward)
			case 2:
				m.MarkCurrentStep(StatusPass)
			case 3:
				m.MarkCurrentStep(StatusFail)
			}
			assertInBounds(t, content, m.Cursor())

			if s := m.CurrentStep(); s != nil && s.Status != StatusPending {
				if prev, ok := seen[s]; ok {
					require.Equal(t, prev, s.Status, "status changed after being set")
				}
				seen[s] = s.Status
			}
		}
	}
}

func TestModel_localInvertibility(t *testing.T) {
	content := testContent()
	// Positions where both neighbours stay inside the same collection.
	interior := []Cursor{
		{Stage: StagePrerequisites, Prereq: 1},
		{Stage: StageInspection, Panel: 1, Task: 1},
	}
	for _, start := range interior {
		m := NewModel(content)
		m.cursor = start

		m.Advance(Forward)
		m.Advance(Backward)
		assert.Equal(t, start, m.Cursor())

		m.Advance(Backward)
		m.Advance(Forward)
		assert.Equal(t, start, m.Cursor())
	}
}

func TestModel_View(t *testing.T) {
	m := NewModel(testContent())
	advanceN(m, Forward, 5) // INSPECTION(0,0)
	m.MarkCurrentStep(StatusFail)

	v := m.View()
	assert.Equal(t, "INSPECTION", v.StageName)
	assert.Equal(t, "A", v.PanelName)
	assert.Equal(t, 2, v.TaskCount)
	require.NotNil(t, v.Step)
	assert.Equal(t, "a1", v.Step.Description)
	assert.Equal(t, StatusFail, v.Step.Status)
	assert.Equal(t, Tally{Total: 8, Failed: 1, Pending: 7}, v.Tally)

	// The snapshot does not follow later mutations.
	m.Advance(Forward)
	m.MarkCurrentStep(StatusPass)
	assert.Equal(t, "a1", v.Step.Description)
}
