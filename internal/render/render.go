// Package render draws the five workflow screens and the shutdown screens
// into RGBA frames for the display.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/pitabwire/inspector/internal/workflow"
)

// Palette.
var (
	Background = color.RGBA{0x00, 0x00, 0x00, 0xff}
	Text       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	HeaderText = color.RGBA{0x39, 0xff, 0x14, 0xff}
	Success    = color.RGBA{0x4c, 0xaf, 0x50, 0xff}
	Fail       = color.RGBA{0xf4, 0x43, 0x36, 0xff}
	Pending    = color.RGBA{0xff, 0xff, 0x00, 0xff}
	Divider    = color.RGBA{0x33, 0x33, 0x33, 0xff}
	Muted      = color.RGBA{0xb4, 0xb4, 0xb4, 0xff}
)

// Renderer draws screens at a fixed logical size. Orientation is applied by
// the display.
type Renderer struct {
	width  int
	height int
	faces  *Faces
}

// New returns a renderer for a width x height canvas.
func New(width, height int, faces *Faces) *Renderer {
	if faces == nil {
		faces = BasicFaces()
	}
	return &Renderer{width: width, height: height, faces: faces}
}

// Size returns the canvas size.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Render draws the screen for v.Stage.
func (r *Renderer) Render(v workflow.View) *image.RGBA {
	img := r.canvas()
	switch v.Stage {
	case workflow.StageStart:
		r.start(img, v)
	case workflow.StagePrerequisites:
		r.prerequisite(img, v)
	case workflow.StageTools:
		r.tools(img, v)
	case workflow.StageInspection:
		r.inspection(img, v)
	case workflow.StageSummary:
		r.summary(img, v)
	}
	return img
}

// Shutdown draws the terminating message.
func (r *Renderer) Shutdown() *image.RGBA {
	img := r.canvas()
	drawText(img, r.faces.Large, Text, r.width/2, r.height/2-10, center, "System Shutting Down...")
	drawText(img, r.faces.Label, Muted, r.width/2, r.height/2+25, center, "Please wait")
	return img
}

// Blank returns an all-background frame.
func (r *Renderer) Blank() *image.RGBA {
	return r.canvas()
}

func (r *Renderer) canvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)
	return img
}

func (r *Renderer) pad() int { return r.width * 5 / 100 }

func (r *Renderer) at(pct int) int { return r.height * pct / 100 }

func (r *Renderer) header(img *image.RGBA, title string) {
	drawText(img, r.faces.Header, HeaderText, r.pad(), r.at(5), topLeft, title)
	y := r.at(20)
	for x := 0; x < r.width; x++ {
		img.SetRGBA(x, y, Divider)
	}
}

func (r *Renderer) badge(img *image.RGBA, s workflow.Status) {
	drawText(img, r.faces.Header, statusColor(s), r.width*95/100, r.at(5), topRight, string(s))
}

func statusColor(s workflow.Status) color.RGBA {
	switch s {
	case workflow.StatusPass:
		return Success
	case workflow.StatusFail:
		return Fail
	default:
		return Pending
	}
}

func recordingLabel(v workflow.View) string {
	if v.Recording == "" {
		return "disabled"
	}
	return v.Recording
}

func (r *Renderer) start(img *image.RGBA, v workflow.View) {
	title := v.Title
	if title == "" {
		title = "Inspection"
	}
	r.header(img, title)
	drawText(img, r.faces.Large, Success, r.width/2, r.at(35), center, "INSPECTION SYSTEM READY")
	drawWrapped(img, r.faces.Label, Text, 0, r.at(40), r.width-2*r.pad(), true,
		"Use physical buttons or web interface for control.")
	drawText(img, r.faces.Large, HeaderText, r.width/2, r.at(70), center, "PRESS NEXT (B1) TO START")
	drawText(img, r.faces.Label, Pending, r.width/2, r.at(90), center, "Rec: "+recordingLabel(v))
}

func (r *Renderer) prerequisite(img *image.RGBA, v workflow.View) {
	r.header(img, fmt.Sprintf("Safety & Pre-Check (%d/%d)", v.Cursor.Prereq+1, v.PrerequisiteCount))
	if v.Step != nil {
		r.badge(img, v.Step.Status)
		drawWrapped(img, r.faces.Body, Text, 0, r.at(40), r.width-2*r.pad(), true, v.Step.Description)
	}
	drawText(img, r.faces.Label, HeaderText, r.width/2, r.at(90), center, "PASS (B4) / FAIL (B3) | B1/B2 to Navigate")
}

func (r *Renderer) tools(img *image.RGBA, v workflow.View) {
	r.header(img, "Required Equipment Checklist")
	drawText(img, r.faces.Label, Pending, r.width/2, r.at(30), center, "Confirm ALL tools are ready.")
	y := r.at(40)
	for _, tool := range v.Tools {
		drawText(img, r.faces.Large, Text, r.width/2, y, center, tool)
		y += r.at(12)
	}
	drawText(img, r.faces.Label, HeaderText, r.width/2, r.at(90), center, "PRESS NEXT (B1) TO CONTINUE")
}

func (r *Renderer) inspection(img *image.RGBA, v workflow.View) {
	r.header(img, v.PanelName)
	pad := r.pad()
	maxWidth := r.width - 2*pad

	if v.Step != nil {
		r.badge(img, v.Step.Status)
		progress := fmt.Sprintf("TASK (Task %d of %d):", v.Cursor.Task+1, v.TaskCount)
		drawText(img, r.faces.Body, HeaderText, pad, r.at(23), topLeft, progress)

		y := drawWrapped(img, r.faces.Body, Text, pad, r.at(30), maxWidth, false, v.Step.Description)
		refY := max(y+8, r.at(50))
		drawText(img, r.faces.Body, HeaderText, pad, refY, topLeft, "REFERENCE:")
		drawWrapped(img, r.faces.Label, Text, pad, refY+lineHeight(r.faces.Body), maxWidth, false, v.Step.Reference)
	}

	drawText(img, r.faces.Label, Pending, r.width/2, r.at(95), center, "PASS (B4) / FAIL (B3) | NEXT (B1)")
}

func (r *Renderer) summary(img *image.RGBA, v workflow.View) {
	r.header(img, "Engine Check Complete")
	banner := Success
	if v.Tally.Failed > 0 {
		banner = Fail
	}
	drawText(img, r.faces.Header, banner, r.width/2, r.at(40), center, "RECORDING SAVED!")
	drawText(img, r.faces.Large, Text, r.width/2, r.at(60), center,
		fmt.Sprintf("Pass/Fail: %d/%d", v.Tally.Passed, v.Tally.Failed))
	if v.Tally.Pending > 0 {
		drawText(img, r.faces.Label, Pending, r.width/2, r.at(70), center,
			fmt.Sprintf("Not checked: %d", v.Tally.Pending))
	}
	drawText(img, r.faces.Label, HeaderText, r.width/2, r.at(80), center, "File: "+recordingLabel(v))
}
