package render

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"

	"github.com/pitabwire/inspector/internal/config"
	"github.com/pitabwire/inspector/internal/workflow"
)

func countColor(img *image.RGBA, c color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func newTestRenderer() *Renderer {
	return New(320, 240, BasicFaces())
}

func TestRender_size(t *testing.T) {
	img := newTestRenderer().Render(workflow.View{Stage: workflow.StageStart})
	assert.Equal(t, image.Rect(0, 0, 320, 240), img.Bounds())
}

func TestRender_start(t *testing.T) {
	img := newTestRenderer().Render(workflow.View{
		Stage:     workflow.StageStart,
		Title:     "MiG-21 Engine Check (POC)",
		Recording: "inspection_20260301_090507.mp4",
	})

	assert.Positive(t, countColor(img, Success), "ready banner")
	assert.Positive(t, countColor(img, HeaderText), "title and prompt")
	assert.Positive(t, countColor(img, Pending), "recording line")
	for x := 0; x < 320; x++ {
		require.Equal(t, Divider, img.RGBAAt(x, 48), "divider at x=%d", x)
	}
}

func TestRender_prerequisiteBadge(t *testing.T) {
	r := newTestRenderer()
	view := func(s workflow.Status) workflow.View {
		return workflow.View{
			Stage:             workflow.StagePrerequisites,
			PrerequisiteCount: 3,
			Step:              &workflow.StepView{Description: "Aircraft Intake Safety Plugs Removed", Status: s},
		}
	}

	pending := r.Render(view(workflow.StatusPending))
	assert.Positive(t, countColor(pending, Pending))
	assert.Zero(t, countColor(pending, Success))

	passed := r.Render(view(workflow.StatusPass))
	assert.Positive(t, countColor(passed, Success))
	assert.Zero(t, countColor(passed, Pending))

	failed := r.Render(view(workflow.StatusFail))
	assert.Positive(t, countColor(failed, Fail))
}

func TestRender_tools(t *testing.T) {
	r := newTestRenderer()
	none := r.Render(workflow.View{Stage: workflow.StageTools})
	some := r.Render(workflow.View{Stage: workflow.StageTools, Tools: []string{"Borescope Camera", "Digital Multimeter"}})
	assert.Greater(t, countColor(some, Text), countColor(none, Text))
}

func TestRender_inspection(t *testing.T) {
	img := newTestRenderer().Render(workflow.View{
		Stage:     workflow.StageInspection,
		PanelName: "Engine Fan & Compressor",
		TaskCount: 2,
		Step: &workflow.StepView{
			Description: "Turbine Blades: Inspect for FOD/cracks",
			Reference:   "Ref: No nicks > 1mm. Smooth leading edges.",
			Status:      workflow.StatusFail,
		},
	})
	assert.Positive(t, countColor(img, Fail), "badge")
	assert.Positive(t, countColor(img, Pending), "key hints")
	assert.Positive(t, countColor(img, Text), "description")
}

func TestRender_summaryBanner(t *testing.T) {
	r := newTestRenderer()

	clean := r.Render(workflow.View{Stage: workflow.StageSummary, Tally: workflow.Tally{Total: 3, Passed: 3}})
	assert.Positive(t, countColor(clean, Success))
	assert.Zero(t, countColor(clean, Fail))
	assert.Zero(t, countColor(clean, Pending))

	failed := r.Render(workflow.View{Stage: workflow.StageSummary, Tally: workflow.Tally{Total: 3, Passed: 1, Failed: 1, Pending: 1}})
	assert.Positive(t, countColor(failed, Fail))
	assert.Zero(t, countColor(failed, Success))
	assert.Positive(t, countColor(failed, Pending), "unchecked count")
}

func TestShutdownAndBlank(t *testing.T) {
	r := newTestRenderer()

	s := r.Shutdown()
	assert.Positive(t, countColor(s, Text))
	assert.Positive(t, countColor(s, Muted))

	b := r.Blank()
	assert.Equal(t, 320*240, countColor(b, Background))
}

func TestWrap(t *testing.T) {
	face := basicfont.Face7x13 // 7px advance

	assert.Equal(t, []string{"aaa bbb", "ccc"}, wrap(face, "aaa bbb ccc", 49))
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, wrap(face, "aaa bbb ccc", 48))
	assert.Equal(t, []string{"overlongword", "x"}, wrap(face, "overlongword x", 21))
	assert.Nil(t, wrap(face, "   ", 100))
}

func TestDrawWrapped_advancesPerLine(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	face := basicfont.Face7x13
	y := drawWrapped(img, face, Text, 0, 10, 49, false, "aaa bbb ccc")
	assert.Equal(t, 10+2*lineHeight(face), y)
}

func TestLoadFaces(t *testing.T) {
	sizes := config.FontSizes{Header: 28, Large: 26, Body: 22, Label: 20}

	f, err := LoadFaces("", sizes)
	require.NoError(t, err)
	assert.Equal(t, basicfont.Face7x13, f.Body)

	_, err = LoadFaces(filepath.Join(t.TempDir(), "missing.ttf"), sizes)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("not a font"), 0o600))
	_, err = LoadFaces(bad, sizes)
	assert.Error(t, err)
}
