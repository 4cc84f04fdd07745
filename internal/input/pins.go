// Package input polls the physical buttons and submits their commands to the
// arbiter.
package input

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/pitabwire/inspector/internal/config"
	"github.com/pitabwire/inspector/model"
)

// Pins reads the levels of a fixed set of lines, in the order they were
// requested.
type Pins interface {
	Values(values []int) error
	Close() error
}

// Button binds a GPIO line offset to the command it issues.
type Button struct {
	Offset  int
	Command model.Command
}

// Buttons returns the buttons in polling order. When more than one is held,
// the first one in this order wins.
func Buttons(cfg config.PinsConfig) []Button {
	return []Button{
		{Offset: cfg.Next, Command: model.CommandNext},
		{Offset: cfg.Prev, Command: model.CommandPrev},
		{Offset: cfg.Fail, Command: model.CommandFail},
		{Offset: cfg.Pass, Command: model.CommandPass},
	}
}

// OpenPins requests the button lines as pulled-up inputs on chip.
func OpenPins(chip string, buttons []Button) (Pins, error) {
	offsets := make([]int, len(buttons))
	for i, b := range buttons {
		offsets[i] = b.Offset
	}
	lines, err := gpiocdev.RequestLines(chip, offsets,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("inspectord"),
	)
	if err != nil {
		return nil, fmt.Errorf("input: requesting lines %v on %s: %w", offsets, chip, err)
	}
	return lines, nil
}
