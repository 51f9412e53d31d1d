package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/godisc/internal/report"
)

func runJSON(t *testing.T, args ...string) *report.Summary {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), &stdout, &stderr, append([]string{"-format", "json", "-log-level", "error"}, args...))
	require.NoError(t, err, stderr.String())

	var s report.Summary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &s))
	return &s
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func TestRun_PrintsReport(t *testing.T) {
	s := runJSON(t, "testdata/ode.hcl")

	assert.Equal(t, "ode", s.Model)
	assert.Equal(t, 2, s.StateSize)
	require.Len(t, s.States, 2)
	assert.Equal(t, "a", s.States[0].Name)
	assert.Equal(t, "algebraic", s.States[1].Equation)
	assert.Equal(t, []report.Event{{Name: "a below half", Type: "termination"}}, s.Events)
}

func TestRun_KeepIndependent(t *testing.T) {
	s := runJSON(t, "-keep-independent", "testdata/ode.hcl")
	assert.Equal(t, 3, s.StateSize)
}

func TestRun_YAMLByDefault(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), &stdout, &stderr, []string{"-log-level", "error", "testdata/ode.hcl"}))
	assert.Contains(t, stdout.String(), "model: ode\n")
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "no model", args: nil, code: 2},
		{name: "two models", args: []string{"a.hcl", "b.hcl"}, code: 2},
		{name: "unknown flag", args: []string{"-colour", "testdata/ode.hcl"}, code: 2},
		{name: "bad format", args: []string{"-format", "xml", "testdata/ode.hcl"}, code: 2},
		{name: "missing model", args: []string{"testdata/missing.hcl"}, code: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), &stdout, &stderr, tc.args)
			require.Error(t, err)
			assert.Equal(t, tc.code, exitCode(err))
			assert.Zero(t, stdout.Len())
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, run(context.Background(), &stdout, &stderr, []string{"-h"}))
	assert.Contains(t, stderr.String(), "Usage:")
}
