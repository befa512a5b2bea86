package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/apitest"
	"ledger/internal/core"
	"ledger/internal/notify"
)

type harness struct {
	t   *testing.T
	srv *apitest.Server
	dir string
}

type result struct {
	code   int
	stdout string
	stderr string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("alice", "wonderland", apitest.RoleUser)
	srv.AddUser("root", "supersecret", apitest.RoleAdmin)

	dir := t.TempDir()
	t.Setenv("LEDGER_API_URL", srv.BaseURL())
	t.Setenv("SESSION_BACKEND", "file")
	t.Setenv("SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("NOTIFY_AMQP_URL", "")
	t.Setenv("LEDGER_PASSWORD", "")
	return &harness{t: t, srv: srv, dir: dir}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (h *harness) ok(args ...string) string {
	h.t.Helper()
	res := h.run("", args...)
	require.Equal(h.t, 0, res.code, "ledger %v\nstdout: %s\nstderr: %s", args, res.stdout, res.stderr)
	return res.stdout
}

func (h *harness) login(user, password string) {
	h.t.Helper()
	h.ok("login", "-u", user, "-p", password)
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	res := h.run("")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, "Usage: ledger")

	res = h.run("", "frobnicate")
	assert.Equal(t, 2, res.code)
	assert.Contains(t, res.stderr, `unknown command "frobnicate"`)

	assert.Equal(t, 0, h.run("", "help").code)
}

func TestProtectedCommandsNeedLogin(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"records"}, {"sources"}, {"dashboard"}, {"whoami"}, {"export", "url"}} {
		res := h.run("", args...)
		assert.Equal(t, 1, res.code, "%v", args)
		assert.Contains(t, res.stderr, "not logged in", "%v", args)
	}

	assert.Contains(t, h.ok("status"), "Not logged in")
	assert.Contains(t, h.ok("health"), "ok")
}

func TestOpen(t *testing.T) {
	h := newHarness(t)

	out := h.ok("open", "/income/records?year=2024")
	assert.Contains(t, out, "Redirected to /login?redirect=")
	assert.Contains(t, out, "/income/records?year=2024")

	h.login("alice", "wonderland")
	out = h.ok("open", "/nowhere")
	assert.Contains(t, out, "Redirected to /income/dashboard")
	assert.Contains(t, out, "Income overview")
}

func TestLoginPrompt(t *testing.T) {
	h := newHarness(t)

	res := h.run("alice\nwonderland\n", "login")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Logged in as alice (user)")
	assert.Contains(t, res.stdout, "Continue at /income/dashboard")
	assert.Contains(t, res.stderr, "Username: ")

	assert.Contains(t, h.ok("login"), "Already logged in as alice")
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)

	res := h.run("", "login", "-u", "alice", "-p", "nope")
	assert.Equal(t, 1, res.code)
	assert.NotContains(t, res.stderr, "ledger:", "transport errors are shown once, as a notice")
	assert.Contains(t, res.stderr, "[error]")
	assert.Contains(t, h.ok("status"), "Not logged in")
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login("alice", "wonderland")

	status := h.ok("status")
	assert.Contains(t, status, "Logged in as alice (user)")
	assert.Contains(t, status, "Token expires at")

	var me core.Profile
	require.NoError(t, json.Unmarshal([]byte(h.ok("whoami", "-json")), &me))
	assert.Equal(t, "alice", me.Username)

	assert.Contains(t, h.ok("logout"), "Logged out")
	assert.Equal(t, 1, h.run("", "records").code)
}

func TestExpiredSessionLogsOut(t *testing.T) {
	h := newHarness(t)
	h.login("alice", "wonderland")

	h.srv.RotateSecret()
	res := h.run("", "sources")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, notify.MsgSessionExpired)

	assert.Contains(t, h.ok("status"), "Not logged in")
}

func TestIncomeWorkflow(t *testing.T) {
	h := newHarness(t)
	h.login("alice", "wonderland")

	assert.Contains(t, h.ok("sources", "add", "-name", "Salary"), "Created source")
	assert.Contains(t, h.ok("sources", "add", "-name", "Freelance", "-icon", "laptop"), "Created source")

	var sources []core.IncomeSource
	require.NoError(t, json.Unmarshal([]byte(h.ok("sources", "list", "-json")), &sources))
	require.Len(t, sources, 2)
	ids := map[string]string{}
	for _, s := range sources {
		ids[s.Name] = strconv.FormatInt(s.ID, 10)
	}

	h.ok("records", "add", "-source", ids["Salary"], "-amount", "1500", "-date", "2024-03-01")
	h.ok("records", "add", "-source", ids["Freelance"], "-amount", "500.50", "-date", "2024-03-15", "-note", "site")

	var page core.RecordPage
	require.NoError(t, json.Unmarshal([]byte(h.ok("records", "list", "-year", "2024", "-json")), &page))
	require.Equal(t, 2, page.Total)
	latest := strconv.FormatInt(page.Items[0].ID, 10)

	assert.Contains(t, h.ok("records", "update", latest, "-amount", "600"), "600.00")

	dash := h.ok("dashboard", "-year", "2024", "-month", "3")
	assert.Contains(t, dash, "March 2024")
	assert.Contains(t, dash, "Salary")
	assert.Contains(t, dash, "2100.00")
	assert.Regexp(t, `Total\s+2100\.00\s+100\.00%`, dash)

	breakdown := h.ok("stats", "breakdown", "-year", "2024", "-month", "3")
	assert.Regexp(t, `Freelance\s+600\.00\s+28\.57%`, breakdown)
	assert.Regexp(t, `Total\s+2100\.00\s+100\.00%`, breakdown)

	annual := h.ok("stats", "annual", "2023", "2024")
	assert.Contains(t, annual, "2024")
	assert.Contains(t, annual, "2100.00")

	assert.Contains(t, h.ok("export", "url", "-year", "2024"), "/income/records/export/csv?year=2024")

	csvPath := filepath.Join(h.dir, "out.csv")
	h.ok("export", "csv", "-year", "2024", "-o", csvPath)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "record_date,source_name,amount,note", lines[0])
	assert.Equal(t, "2024-03-01,Salary,1500.00,", lines[1])

	sheet := h.ok("export", "sheets", "-dry-run", "-year", "2024")
	assert.Contains(t, sheet, "Exported 2 records (1 pages)")
	assert.Contains(t, sheet, "2024-03-15")

	importPath := filepath.Join(h.dir, "in.csv")
	require.NoError(t, os.WriteFile(importPath, []byte(
		"record_date,source_name,amount,note\n"+
			"2024-04-01,Salary,1500,\n"+
			"2024-04-02,Unknown,10,\n"), 0o600))
	imported := h.ok("import", importPath)
	assert.Contains(t, imported, "Imported 1 records, skipped 1")
	assert.Contains(t, imported, "Row 3")

	res := h.run("", "sources", "delete", ids["Salary"])
	assert.Equal(t, 1, res.code, "a source with records cannot be deleted")

	assert.Contains(t, h.ok("records", "delete", latest), "Deleted record")
}

func TestInvalidInputNeverReachesServer(t *testing.T) {
	h := newHarness(t)
	h.login("alice", "wonderland")
	before := len(h.srv.Requests())

	for _, args := range [][]string{
		{"records", "add", "-source", "1", "-amount", "abc"},
		{"records", "add", "-source", "1", "-amount", "10", "-date", "03/01/2024"},
		{"records", "update", "x"},
		{"sources", "update", "1"},
		{"dashboard", "-month", "13"},
	} {
		res := h.run("", args...)
		assert.Equal(t, 1, res.code, "%v", args)
		assert.Contains(t, res.stderr, "ledger:", "%v", args)
	}
	assert.Equal(t, before, len(h.srv.Requests()))
}

func TestBackup(t *testing.T) {
	h := newHarness(t)
	h.login("alice", "wonderland")

	res := h.run("", "backup", "trigger")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, notify.MsgPermissionDenied)

	h.ok("logout")
	h.login("root", "supersecret")
	assert.Contains(t, h.ok("backup", "trigger"), "Backup triggered")
	list := h.ok("backup", "list")
	assert.Contains(t, list, "ai_platform_")
	assert.Contains(t, list, "KiB")
}
