package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultContent(t *testing.T) {
	c, err := DefaultContent()
	require.NoError(t, err)

	assert.Len(t, c.Prerequisites, 3)
	assert.Len(t, c.Tools, 3)
	require.Len(t, c.Panels, 3)
	assert.Equal(t, 9, c.TaskCount())
	for _, s := range c.Prerequisites {
		assert.Equal(t, StatusPending, s.Status)
	}
	assert.NotEmpty(t, c.Panels[0].Tasks[0].Reference)
}

func TestDefaultContent_freshCopy(t *testing.T) {
	a, err := DefaultContent()
	require.NoError(t, err)
	b, err := DefaultContent()
	require.NoError(t, err)

	a.Prerequisites[0].Status = StatusPass
	assert.Equal(t, StatusPending, b.Prerequisites[0].Status)
}

func TestParseContent_ignoresStatusInInput(t *testing.T) {
	c, err := ParseContent([]byte(`
prerequisites:
  - description: one
panels:
  - name: P
    tasks:
      - description: t
`))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, c.Prerequisites[0].Status)
	assert.Equal(t, StatusPending, c.Panels[0].Tasks[0].Status)
}

func TestParseContent_invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no prerequisites", "panels:\n  - name: P\n    tasks:\n      - description: t\n"},
		{"no panels", "prerequisites:\n  - description: one\n"},
		{"empty panel", "prerequisites:\n  - description: one\npanels:\n  - name: P\n"},
		{"blank task", "prerequisites:\n  - description: one\npanels:\n  - name: P\n    tasks:\n      - description: ''\n"},
		{"unnamed panel", "prerequisites:\n  - description: one\npanels:\n  - tasks:\n      - description: t\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContent([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidContent), "err = %v", err)
		})
	}
}

func TestParseContent_malformed(t *testing.T) {
	_, err := ParseContent([]byte("prerequisites: [unterminated"))
	assert.Error(t, err)
}

func TestLoadContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: Custom
prerequisites:
  - description: one
tools: [torch]
panels:
  - name: P
    tasks:
      - description: t
        reference: r
`), 0o644))

	c, err := LoadContent(path)
	require.NoError(t, err)
	assert.Equal(t, "Custom", c.Title)
	assert.Equal(t, []string{"torch"}, c.Tools)
}

func TestLoadContent_emptyPathUsesDefault(t *testing.T) {
	c, err := LoadContent("")
	require.NoError(t, err)
	assert.Len(t, c.Panels, 3)
}

func TestLoadContent_missingFile(t *testing.T) {
	_, err := LoadContent(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
