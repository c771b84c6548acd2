package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSchema struct {
	up, down []int
	version  uint
	dirty    bool
	err      error
}

func (f *fakeSchema) Up(steps int) error {
	f.up = append(f.up, steps)
	return f.err
}

func (f *fakeSchema) Down(steps int) error {
	f.down = append(f.down, steps)
	return f.err
}

func (f *fakeSchema) Version() (uint, bool, error) {
	return f.version, f.dirty, f.err
}

func TestRunAction(t *testing.T) {
	tests := []struct {
		name     string
		schema   *fakeSchema
		action   string
		steps    int
		wantErr  string
		validate func(t *testing.T, f *fakeSchema)
	}{
		{
			name:   "up applies all pending",
			schema: &fakeSchema{},
			action: "up",
			validate: func(t *testing.T, f *fakeSchema) {
				assert.Equal(t, []int{0}, f.up)
				assert.Empty(t, f.down)
			},
		},
		{
			name:   "down by steps",
			schema: &fakeSchema{},
			action: "down",
			steps:  2,
			validate: func(t *testing.T, f *fakeSchema) {
				assert.Equal(t, []int{2}, f.down)
			},
		},
		{
			name:    "dirty schema fails status",
			schema:  &fakeSchema{version: 3, dirty: true},
			action:  "status",
			wantErr: "schema version 3 is dirty",
		},
		{
			name:    "migration errors propagate",
			schema:  &fakeSchema{err: errors.New("connection refused")},
			action:  "up",
			wantErr: "connection refused",
		},
		{
			name:    "negative steps",
			schema:  &fakeSchema{},
			action:  "up",
			steps:   -1,
			wantErr: "must not be negative",
			validate: func(t *testing.T, f *fakeSchema) {
				assert.Empty(t, f.up)
			},
		},
		{
			name:    "unknown action",
			schema:  &fakeSchema{},
			action:  "create",
			wantErr: `unknown action "create"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runAction(tt.schema, tt.action, tt.steps, zaptest.NewLogger(t))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			if tt.validate != nil {
				tt.validate(t, tt.schema)
			}
		})
	}
}

func TestRunAction_StatusLogsVersion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := runAction(&fakeSchema{version: 2}, "status", 0, zap.New(core))
	assert.NoError(t, err)

	entries := logs.FilterMessage("schema status").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, uint64(2), entries[0].ContextMap()["version"])
	}
}
