package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodbite/backend/internal/domain"
)

// useSQLiteStore points the CLI at a fresh database so state survives
// between command invocations.
func useSQLiteStore(t *testing.T) {
	t.Helper()
	t.Setenv("MOODBITE_STORE_TYPE", "sqlite")
	t.Setenv("MOODBITE_STORE_SQLITE_PATH", filepath.Join(t.TempDir(), "cli.db"))

	// keep a stray .env in the package directory from leaking in
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_MoodAndDashboard(t *testing.T) {
	useSQLiteStore(t)

	out, err := runCLI(t, "mood", "2024-03-05", "Good", "--user", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-03-05")
	assert.Contains(t, out, "Good")

	out, err = runCLI(t, "mood", "--user", "alice", "--json")
	require.NoError(t, err)
	var moods []domain.MoodRecord
	require.NoError(t, json.Unmarshal([]byte(out), &moods))
	assert.Equal(t, []domain.MoodRecord{{Date: "2024-03-05", Mood: "Good"}}, moods)

	out, err = runCLI(t, "dashboard", "--user", "alice", "--json")
	require.NoError(t, err)
	var dashboard domain.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &dashboard))
	assert.Equal(t, "alice", dashboard.UserID)
	assert.Empty(t, dashboard.Days)
}

func TestCLI_ListEmptyAndDelete(t *testing.T) {
	useSQLiteStore(t)

	out, err := runCLI(t, "list", "--user", "alice")
	require.NoError(t, err)
	assert.Equal(t, "No records.\n", out)

	out, err = runCLI(t, "delete", "123", "--user", "alice", "--collection", "diet_foods")
	require.NoError(t, err)
	assert.Equal(t, "Deleted 123 from diet_foods\n", out)
}

func TestCLI_RequiresUser(t *testing.T) {
	for _, args := range [][]string{{"list"}, {"scan", "123"}, {"dashboard"}, {"mood"}} {
		_, err := runCLI(t, args...)
		require.Error(t, err, strings.Join(args, " "))
		assert.Contains(t, err.Error(), "--user is required")
	}
}

func TestCLI_MoodArgs(t *testing.T) {
	_, err := runCLI(t, "mood", "2024-03-05", "--user", "alice")
	assert.Error(t, err)
}

func TestPrintDashboard(t *testing.T) {
	var out bytes.Buffer
	err := printDashboard(&out, false, &domain.Dashboard{
		Days: []domain.DaySummary{{
			Date:         "05-03-2024",
			Records:      []domain.NutritionRecord{{Barcode: "1"}},
			Sugar:        60,
			Energy:       500,
			ExceedsLimit: true,
			Mood:         "Good",
			Tip:          "Even when you're feeling good, watch your sugar intake!",
		}},
		Totals:       domain.Totals{Energy: 500, Sugar: 60},
		PercentDaily: domain.Totals{Energy: 25, Sugar: 120},
		SugarLimit:   50,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "05-03-2024")
	assert.Contains(t, out.String(), "yes")
	assert.Contains(t, out.String(), "Total: 500 kcal (25% DV), sugar 60.0 g (120% DV), limit 50 g/day")
}
