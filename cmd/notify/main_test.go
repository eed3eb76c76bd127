package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parent-messenger/pkg/models"
)

const rosterCSV = `USN,Student Name,Phone Number
1AB21CS001,Asha Rao,9876543210
1AB21CS002,Ravi Kumar,9876543211
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// wassengerStub accepts every message except those to failPhone.
func wassengerStub(t *testing.T, failPhone string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		phones []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Phone string `json:"phone"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		phones = append(phones, msg.Phone)
		mu.Unlock()
		if msg.Phone == failPhone {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"number not on whatsapp"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"wg-`+msg.Phone+`"}`)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), phones...)
	}
}

func setEnv(t *testing.T, baseURL string) {
	t.Setenv("NOTIFY_CONFIG", "")
	t.Setenv("PROVIDER", "wassenger")
	t.Setenv("WASSENGER_API", "tok")
	t.Setenv("WASSENGER_BASE_URL", baseURL)
	t.Setenv("COUNTRY_CODE", "+91")
	t.Setenv("SMS_PROVIDER", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func TestMessage_SendsToOneStudent(t *testing.T) {
	srv, sent := wassengerStub(t, "")
	setEnv(t, srv.URL)
	students := writeFile(t, t.TempDir(), "roster.csv", rosterCSV)

	out, err := execute(t, "message", "--json", "--students", students, "--usn", "1ab21cs002", "--text", "Please meet the class teacher.")
	require.NoError(t, err)

	var rep models.BatchReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "FREE_TEXT", rep.Kind)
	assert.Equal(t, 1, rep.Total)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, []string{"+919876543211"}, sent())
}

func TestMessage_UnknownStudent(t *testing.T) {
	srv, sent := wassengerStub(t, "")
	setEnv(t, srv.URL)
	students := writeFile(t, t.TempDir(), "roster.csv", rosterCSV)

	_, err := execute(t, "message", "--students", students, "--name", "Nobody", "--text", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student_not_found")
	assert.Empty(t, sent())
}

func TestMessage_RequiresSelector(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")
	_, err := execute(t, "message", "--students", "x.csv", "--text", "hi")
	assert.Error(t, err)
}

func TestIAMarks_PartialFailure(t *testing.T) {
	srv, sent := wassengerStub(t, "+919876543210")
	setEnv(t, srv.URL)
	dir := t.TempDir()
	students := writeFile(t, dir, "roster.csv", rosterCSV)
	marks := writeFile(t, dir, "marks.csv", "USN,Maths,Physics\n1AB21CS001,18,20\n1AB21CS002,15,17\n")

	out, err := execute(t, "ia-marks", "--students", students, "--marks", marks, "--ia", "2")
	assert.True(t, errors.Is(err, errIncomplete))
	assert.Len(t, sent(), 2)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "1 of 2 sent, 1 failed")
}

func TestConfigErrorStopsBeforeSending(t *testing.T) {
	srv, sent := wassengerStub(t, "")
	setEnv(t, srv.URL)
	t.Setenv("WASSENGER_API", "")
	students := writeFile(t, t.TempDir(), "roster.csv", rosterCSV)

	_, err := execute(t, "message", "--students", students, "--usn", "1AB21CS001", "--text", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WASSENGER_API")
	assert.Empty(t, sent())
}

func TestPreview(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")
	students := writeFile(t, t.TempDir(), "roster.csv", rosterCSV+"1AB21CS003,Short Phone,12\n")

	out, err := execute(t, "preview", "--json", "--students", students)
	require.NoError(t, err)

	var p models.RosterPreview
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.Len(t, p.Students, 3)
	assert.True(t, p.Students[0].Valid)
	assert.False(t, p.Students[2].Valid)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "roster.csv", rosterCSV)
	writeFile(t, dir, "notes.txt", "USN\n")
	writeFile(t, dir, "~$roster.xlsx", "")
	writeFile(t, dir, "readme.md", "")

	out, err := execute(t, "files", "--json", dir)
	require.NoError(t, err)

	var paths []string
	require.NoError(t, json.Unmarshal([]byte(out), &paths))
	assert.Equal(t, []string{filepath.Join(dir, "notes.txt"), filepath.Join(dir, "roster.csv")}, paths)
}

func TestMigrate_RequiresDriver(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER")
}

func TestMigrate_CopiesSQLiteLog(t *testing.T) {
	setEnv(t, "http://127.0.0.1:0")
	dir := t.TempDir()

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(dir, "old.db"))
	_, err := execute(t, "migrate")
	require.NoError(t, err)

	t.Setenv("DB_PATH", filepath.Join(dir, "new.db"))
	_, err = execute(t, "migrate", "--from-sqlite", filepath.Join(dir, "old.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "new.db"))
	assert.NoError(t, err)
}
