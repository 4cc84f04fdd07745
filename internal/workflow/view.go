package workflow

// StepView is a copy of a Step taken at snapshot time.
type StepView struct {
	Description string `json:"description"`
	Reference   string `json:"reference,omitempty"`
	Status      Status `json:"status"`
}

// Tally counts step outcomes across prerequisites and tasks.
type Tally struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// View is an immutable snapshot of everything a screen needs. It is safe to
// hand to another goroutine once taken.
type View struct {
	Title             string    `json:"title"`
	Stage             Stage     `json:"-"`
	StageName         string    `json:"stage"`
	Cursor            Cursor    `json:"cursor"`
	Step              *StepView `json:"step,omitempty"`
	PrerequisiteCount int       `json:"prerequisite_count"`
	PanelName         string    `json:"panel,omitempty"`
	TaskCount         int       `json:"task_count,omitempty"`
	Tools             []string  `json:"tools"`
	Tally             Tally     `json:"tally"`
	Recording         string    `json:"recording,omitempty"`
}

// View takes a snapshot of the model.
func (m *Model) View() View {
	v := View{
		Title:             m.content.Title,
		Stage:             m.cursor.Stage,
		StageName:         m.cursor.Stage.String(),
		Cursor:            m.cursor,
		PrerequisiteCount: len(m.content.Prerequisites),
		Tools:             m.content.Tools,
		Tally:             m.tally(),
	}
	if s := m.CurrentStep(); s != nil {
		v.Step = &StepView{Description: s.Description, Reference: s.Reference, Status: s.Status}
	}
	if m.cursor.Stage == StageInspection {
		p := m.content.Panels[m.cursor.Panel]
		v.PanelName = p.Name
		v.TaskCount = len(p.Tasks)
	}
	return v
}

func (m *Model) tally() Tally {
	var t Tally
	count := func(s *Step) {
		t.Total++
		switch s.Status {
		case StatusPass:
			t.Passed++
		case StatusFail:
			t.Failed++
		default:
			t.Pending++
		}
	}
	for _, s := range m.content.Prerequisites {
		count(s)
	}
	for _, p := range m.content.Panels {
		for _, s := range p.Tasks {
			count(s)
		}
	}
	return t
}
