package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const roster = `First Name,Surname,DOB,Email
Aoife,Murphy,04/05/2012,aoife@example.com
Sean,Kelly,10/02/2011,sean@example.com
Aoife,Murphy,04/05/2012,aoife@example.com
`

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("MAPPING_CACHE_BACKEND", "memory")
	return dir
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSimulateCommand(t *testing.T) {
	dir := setupCLIEnv(t)
	input := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(input, []byte(roster), 0o644))
	report := filepath.Join(dir, "report.xlsx")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	out, err := runRoot(t, "simulate", input, "--sqlite", dsn, "--sport", "soccer", "-o", report)
	require.NoError(t, err)

	assert.Contains(t, out, "firstName")
	assert.Contains(t, out, "Rows: 3")
	assert.Contains(t, out, "duplicate: 1")

	f, err := excelize.OpenFile(report)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSimulateRejectsUnknownReportFormat(t *testing.T) {
	dir := setupCLIEnv(t)
	input := filepath.Join(dir, "roster.csv")
	require.NoError(t, os.WriteFile(input, []byte(roster), 0o644))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	_, err := runRoot(t, "simulate", input, "--sqlite", dsn, "-o", filepath.Join(dir, "report.pdf"))
	assert.Error(t, err)
}

func TestSimulateNeedsAFile(t *testing.T) {
	setupCLIEnv(t)
	_, err := runRoot(t, "simulate")
	assert.Error(t, err)
}

// testChdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
