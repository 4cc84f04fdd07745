package arbiter

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/inspector/internal/redraw"
	"github.com/pitabwire/inspector/internal/workflow"
	"github.com/pitabwire/inspector/model"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testContent() *workflow.Content {
	step := func(d string) *workflow.Step {
		return &workflow.Step{Description: d, Status: workflow.StatusPending}
	}
	return &workflow.Content{
		Title:         "test",
		Prerequisites: []*workflow.Step{step("p1"), step("p2"), step("p3")},
		Tools:         []string{"wrench"},
		Panels: []*workflow.Panel{
			{Name: "A", Tasks: []*workflow.Step{step("a1"), step("a2")}},
			{Name: "B", Tasks: []*workflow.Step{step("b1"), step("b2"), step("b3")}},
		},
	}
}

type recorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	stages   []workflow.Stage
}

func (r *recorder) RecordCommand(_, _, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *recorder) SetStage(s workflow.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, s)
}

func newArbiter(t *testing.T, opts ...workflow.Option) (*Arbiter, *redraw.Trigger) {
	t.Helper()
	tr := redraw.New()
	tr.Take()
	m := workflow.NewModel(testContent(), append(opts, workflow.WithNotifier(tr))...)
	return New(m, tr), tr
}

func TestSubmit_firstCommandAccepted(t *testing.T) {
	a, _ := newArbiter(t)
	res := a.Submit(model.SourceRemote, model.CommandNext, epoch)
	assert.Equal(t, Accepted, res.Outcome)
	assert.True(t, res.Changed)
	assert.Equal(t, workflow.StagePrerequisites, res.Stage)
}

func TestSubmit_cooldownBoundary(t *testing.T) {
	a, tr := newArbiter(t)
	require.Equal(t, Accepted, a.Submit(model.SourceRemote, model.CommandNext, epoch).Outcome)
	require.True(t, tr.Take())

	res := a.Submit(model.SourceButton, model.CommandNext, epoch.Add(999*time.Millisecond))
	assert.Equal(t, CooldownActive, res.Outcome)
	assert.False(t, tr.Take(), "a rejected command must not mark the trigger")
	assert.Equal(t, 0, a.Snapshot().Cursor.Prereq)

	res = a.Submit(model.SourceButton, model.CommandNext, epoch.Add(time.Second))
	assert.Equal(t, Accepted, res.Outcome)
	assert.Equal(t, 1, a.Snapshot().Cursor.Prereq)
}

func TestSubmit_rejectionDoesNotExtendWindow(t *testing.T) {
	a, _ := newArbiter(t)
	a.Submit(model.SourceRemote, model.CommandNext, epoch)
	a.Submit(model.SourceRemote, model.CommandNext, epoch.Add(900*time.Millisecond))

	res := a.Submit(model.SourceRemote, model.CommandNext, epoch.Add(time.Second))
	assert.Equal(t, Accepted, res.Outcome)
}

func TestSubmit_noopStillConsumesCooldown(t *testing.T) {
	a, tr := newArbiter(t)

	res := a.Submit(model.SourceRemote, model.CommandPrev, epoch)
	assert.Equal(t, Accepted, res.Outcome)
	assert.False(t, res.Changed)
	assert.False(t, tr.Take())

	res = a.Submit(model.SourceRemote, model.CommandNext, epoch.Add(500*time.Millisecond))
	assert.Equal(t, CooldownActive, res.Outcome)
}

func TestSubmit_invalidCommand(t *testing.T) {
	a, _ := newArbiter(t)
	res := a.Submit(model.SourceRemote, model.Command("jump"), epoch)
	assert.Equal(t, Invalid, res.Outcome)

	// Invalid commands do not start a cooldown window.
	res = a.Submit(model.SourceRemote, model.CommandNext, epoch)
	assert.Equal(t, Accepted, res.Outcome)
}

func TestSubmit_closed(t *testing.T) {
	a, tr := newArbiter(t)
	a.Close()
	a.Close()

	res := a.Submit(model.SourceRemote, model.CommandNext, epoch)
	assert.Equal(t, Closed, res.Outcome)
	assert.True(t, a.IsClosed())
	assert.False(t, tr.Take())
	assert.Equal(t, workflow.StageStart, a.Snapshot().Stage)
}

func TestSubmit_marks(t *testing.T) {
	a, _ := newArbiter(t)
	at := epoch
	step := func(cmd model.Command) Result {
		res := a.Submit(model.SourceButton, cmd, at)
		at = at.Add(time.Second)
		return res
	}

	step(model.CommandNext)
	res := step(model.CommandFail)
	assert.True(t, res.Changed)
	res = step(model.CommandPass)
	assert.Equal(t, Accepted, res.Outcome)
	assert.False(t, res.Changed)

	v := a.Snapshot()
	require.NotNil(t, v.Step)
	assert.Equal(t, workflow.StatusFail, v.Step.Status)
}

func TestSubmit_scenarioFiresCompletionOnce(t *testing.T) {
	var completions atomic.Int32
	a, _ := newArbiter(t, workflow.OnComplete(func() { completions.Add(1) }))

	at := epoch
	for i := 0; i < 1+3+1+5; i++ {
		require.Equal(t, Accepted, a.Submit(model.SourceButton, model.CommandNext, at).Outcome)
		at = at.Add(time.Second)
	}
	assert.Equal(t, workflow.StageSummary, a.Snapshot().Stage)

	a.Submit(model.SourceButton, model.CommandPrev, at)
	a.Submit(model.SourceButton, model.CommandNext, at.Add(time.Second))
	assert.Equal(t, workflow.StageSummary, a.Snapshot().Stage)
	assert.Equal(t, int32(1), completions.Load())
}

func TestSubmit_concurrentWithinCooldown(t *testing.T) {
	for run := 0; run < 20; run++ {
		a, _ := newArbiter(t)

		const callers = 16
		var accepted atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				src := model.SourceRemote
				if i%2 == 0 {
					src = model.SourceButton
				}
				at := epoch.Add(time.Duration(i) * 10 * time.Millisecond)
				if a.Submit(src, model.CommandNext, at).Outcome == Accepted {
					accepted.Add(1)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), accepted.Load())
		assert.Equal(t, workflow.StagePrerequisites, a.Snapshot().Stage)
	}
}

func TestTakeView(t *testing.T) {
	a, _ := newArbiter(t)

	_, dirty := a.TakeView()
	assert.False(t, dirty)

	a.Submit(model.SourceRemote, model.CommandNext, epoch)
	v, dirty := a.TakeView()
	assert.True(t, dirty)
	assert.Equal(t, workflow.StagePrerequisites, v.Stage)

	_, dirty = a.TakeView()
	assert.False(t, dirty)
}

func TestCooldownActive(t *testing.T) {
	now := epoch
	tr := redraw.New()
	m := workflow.NewModel(testContent(), workflow.WithNotifier(tr))
	a := New(m, tr, WithCooldown(2*time.Second), WithClock(func() time.Time { return now }))

	assert.False(t, a.CooldownActive())
	a.SubmitNow(model.SourceButton, model.CommandNext)
	assert.True(t, a.CooldownActive())

	now = now.Add(1999 * time.Millisecond)
	assert.True(t, a.CooldownActive())
	now = now.Add(time.Millisecond)
	assert.False(t, a.CooldownActive())
}

func TestObserver(t *testing.T) {
	rec := &recorder{}
	tr := redraw.New()
	m := workflow.NewModel(testContent(), workflow.WithNotifier(tr))
	a := New(m, tr, WithObserver(rec))

	a.Submit(model.SourceRemote, model.CommandNext, epoch)
	a.Submit(model.SourceRemote, model.CommandNext, epoch)
	a.Submit(model.SourceRemote, model.Command("bogus"), epoch)

	assert.Equal(t, map[string]int{"accepted": 1, "cooldown": 1, "invalid": 1}, rec.outcomes)
	assert.Equal(t, []workflow.Stage{workflow.StagePrerequisites}, rec.stages)
}

func TestObserver_multiple(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	tr := redraw.New()
	m := workflow.NewModel(testContent(), workflow.WithNotifier(tr))
	a := New(m, tr, WithObserver(first), WithObserver(second))

	a.Submit(model.SourceButton, model.CommandNext, epoch)

	for _, rec := range []*recorder{first, second} {
		assert.Equal(t, map[string]int{"accepted": 1}, rec.outcomes)
		assert.Equal(t, []workflow.Stage{workflow.StagePrerequisites}, rec.stages)
	}
}
