// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/regalloc/services/regalloc"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const pathScheduleYAML = `name: path
cycles: 5
variables:
  - {id: 1, def: 0, use: 2}
  - {id: 2, def: 1, use: 3}
  - {id: 3, def: 3, use: 5}
  - {id: 4, def: 4, use: 4}
`

// quickRun keeps CLI runs short and reproducible.
var quickRun = []string{"--population", "8", "--selection", "6", "--generations", "10", "--seed", "3"}

func writeSchedule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "path.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pathScheduleYAML), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--output", "plain", "--log-level", "warn"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// =============================================================================
// parseRatio Tests
// =============================================================================

func TestParseRatio(t *testing.T) {
	tests := []struct {
		in      string
		want    genalg.Ratio
		wantErr bool
	}{
		{"1/4", genalg.Ratio{Num: 1, Den: 4}, false},
		{" 3 / 4 ", genalg.Ratio{Num: 3, Den: 4}, false},
		{"0/1", genalg.Ratio{Num: 0, Den: 1}, false},
		{"1/1", genalg.Ratio{Num: 1, Den: 1}, false},
		{"5/4", genalg.Ratio{}, true},
		{"1/0", genalg.Ratio{}, true},
		{"1", genalg.Ratio{}, true},
		{"a/2", genalg.Ratio{}, true},
		{"-1/2", genalg.Ratio{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRatio(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, genalg.ErrInvalidRatio)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// run Tests
// =============================================================================

func TestRunCmd_Plain(t *testing.T) {
	path := writeSchedule(t)

	out, _, err := execute(t, append([]string{"run", path}, quickRun...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "lower_bound=2")
	assert.Contains(t, out, "seed=3")
	assert.Contains(t, out, "# Register occupancy")
	assert.Regexp(t, `R0:\t\[[^\n]*\]\t *\d+%`, out)
}

func TestRunCmd_JSON(t *testing.T) {
	path := writeSchedule(t)

	out, _, err := execute(t, append([]string{"run", path, "--json", "--arch", "arm64"}, quickRun...)...)
	require.NoError(t, err)

	var resp regalloc.AllocateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "path", resp.Name)
	assert.Equal(t, 2, resp.LowerBound)
	assert.GreaterOrEqual(t, int(resp.Registers), 2)
	assert.Len(t, resp.Coloring, 4)
	require.NotNil(t, resp.Assignment)
	assert.Equal(t, "arm64", resp.Assignment.Arch)
	assert.Len(t, resp.Assignment.Locations, 4)
}

func TestRunCmd_NameDefaultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "block7.yaml")
	doc := strings.Replace(pathScheduleYAML, "name: path\n", "", 1)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	out, _, err := execute(t, append([]string{"run", path, "--json"}, quickRun...)...)
	require.NoError(t, err)

	var resp regalloc.AllocateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "block7", resp.Name)
}

func TestRunCmd_Dot(t *testing.T) {
	path := writeSchedule(t)
	dot := filepath.Join(t.TempDir(), "out.dot")

	out, _, err := execute(t, append([]string{"run", path, "--dot", dot}, quickRun...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: wrote "+dot)

	data, err := os.ReadFile(dot)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "graph conflicts {"))
	assert.Contains(t, string(data), "v1 -- v2;")
	assert.Contains(t, string(data), `fillcolor="`)
}

func TestRunCmd_Errors(t *testing.T) {
	path := writeSchedule(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"run", filepath.Join(t.TempDir(), "nope.yaml")}},
		{"bad ratio", []string{"run", path, "--mutation", "5/4"}},
		{"bad population", []string{"run", path, "--population", "0"}},
		{"unknown arch", []string{"run", path, "--arch", "vax"}},
		{"no args", []string{"run"}},
		{"save without store", []string{"run", path, "--save"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// graph Tests
// =============================================================================

func TestGraphCmd(t *testing.T) {
	path := writeSchedule(t)

	out, _, err := execute(t, "graph", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph conflicts {"))
	assert.Contains(t, out, "v2 -- v3;")
	assert.NotContains(t, out, `\nR`)

	out, _, err = execute(t, "graph", path, "--colored")
	require.NoError(t, err)
	assert.Contains(t, out, `\nR0`)
}

// =============================================================================
// runs Tests
// =============================================================================

func TestRunsCmd_SaveListShow(t *testing.T) {
	path := writeSchedule(t)
	store := t.TempDir()

	out, _, err := execute(t, append([]string{"--store", store, "run", path, "--save", "--json"}, quickRun...)...)
	require.NoError(t, err)
	var resp regalloc.AllocateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.RunID)

	out, _, err = execute(t, "--store", store, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID\tCREATED\tNAME")
	assert.Contains(t, out, resp.RunID)

	out, _, err = execute(t, "--store", store, "runs", "show", resp.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "lower_bound=2")
	assert.Contains(t, out, "OK: saved run "+resp.RunID)
	assert.Contains(t, out, "# Register occupancy")

	out, _, err = execute(t, "--store", store, "runs", "show", resp.RunID, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "`+resp.RunID+`"`)

	out, _, err = execute(t, "--store", store, "runs", "delete", resp.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: deleted run "+resp.RunID)

	out, _, err = execute(t, "--store", store, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved runs")

	_, _, err = execute(t, "--store", store, "runs", "delete", resp.RunID)
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}

func TestRunsCmd_Empty(t *testing.T) {
	out, _, err := execute(t, "--store", t.TempDir(), "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no saved runs")
}

func TestRunsCmd_Errors(t *testing.T) {
	_, _, err := execute(t, "runs", "list")
	assert.Error(t, err)

	_, _, err = execute(t, "--store", t.TempDir(), "runs", "show", "missing")
	assert.Error(t, err)
}

// =============================================================================
// config Tests
// =============================================================================

func TestConfigCmd_Init(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "regalloc.yaml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "population_size: 32")

	_, _, err = execute(t, "config", "init", path)
	assert.ErrorIs(t, err, os.ErrExist)

	out, _, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "population_size: 32")
}

func TestConfigCmd_ShowAppliesFlags(t *testing.T) {
	store := t.TempDir()
	out, _, err := execute(t, "--store", store, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "enabled: true")
	assert.Contains(t, out, store)
}

// =============================================================================
// serve Tests
// =============================================================================

func TestNewRouter(t *testing.T) {
	svc := regalloc.NewService(regalloc.DefaultServiceConfig())
	router := newRouter(svc, "regalloc-test", false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/regalloc/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/regalloc/health", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
