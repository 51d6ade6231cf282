package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/jsworker/internal/host"
	"github.com/GriffinCanCode/jsworker/internal/worker"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildOptions(t *testing.T) {
	dir := t.TempDir()
	square := writeFile(t, dir, "square.js", "function (x) { return x * x; }\n")

	opts, err := buildOptions([]string{"square=" + square}, []string{`limit=10`, `tags=["a","b"]`})
	require.NoError(t, err)

	assert.Equal(t, worker.JS("function (x) { return x * x; }"), opts["square"])
	assert.Equal(t, 10.0, opts["limit"])
	assert.Equal(t, []any{"a", "b"}, opts["tags"])
}

func TestBuildOptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		js     []string
		values []string
		want   string
	}{
		{"missing equals", nil, []string{"limit"}, "expected name=value"},
		{"bad name", nil, []string{"my-limit=1"}, "not an identifier"},
		{"bad json", nil, []string{"limit={"}, "--value limit"},
		{"missing file", []string{"f=/does/not/exist.js"}, nil, "--js f"},
		{"duplicate", nil, []string{"a=1", "a=2"}, "given twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildOptions(tt.js, tt.values)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.js", "function (module, exports) { exports.answer = 42; }")

	table, err := loadTable(dir, "**/*.js", "")
	require.NoError(t, err)
	_, ok := table.Factory("src/a")
	assert.True(t, ok)

	table, err = loadTable("", "", "")
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestGetenv(t *testing.T) {
	t.Setenv("JSWORKER_TEST_VAR", "visible")
	fn := getenv([]string{"JSWORKER_TEST_VAR", "JSWORKER_UNSET_VAR"})

	v, err := fn(context.Background(), []any{"JSWORKER_TEST_VAR"})
	require.NoError(t, err)
	assert.Equal(t, "visible", v)

	v, err = fn(context.Background(), []any{"JSWORKER_UNSET_VAR"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = fn(context.Background(), []any{"HOME"})
	assert.Error(t, err)

	_, err = fn(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunWorker(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.js", `function () {
		registerMsgHandler("ping", function (p) {
			send({type: "pong", payload: {n: p.n * options.limit}});
			send({type: "ignored", payload: {}});
		});
	}`)

	saved := run
	t.Cleanup(func() { run = saved })
	run = runFlags{
		values: []string{"limit=3"},
		listen: []string{"pong"},
		linger: 300 * time.Millisecond,
	}

	in := strings.NewReader(`{"type":"ping","payload":{"n":2}}` + "\n\n")
	var out bytes.Buffer

	require.NoError(t, runWorker(context.Background(), main, in, &out))
	assert.Equal(t, `{"type":"pong","payload":{"n":6}}`+"\n", out.String())
}

func TestRunWorkerListensFromStart(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.js", `function () {
		send({type: "hello", payload: {n: 1}});
	}`)

	saved := run
	t.Cleanup(func() { run = saved })
	run = runFlags{
		listen: []string{"hello"},
		linger: 300 * time.Millisecond,
	}

	var out bytes.Buffer
	require.NoError(t, runWorker(context.Background(), main, strings.NewReader(""), &out))
	assert.Equal(t, `{"type":"hello","payload":{"n":1}}`+"\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrinterLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := &printer{out: failingWriter{}, log: zap.New(core)}

	p.handler("pong")(map[string]any{"n": 1})
	p.handler("pong")(make(chan int))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Writing message", entries[0].Message)
	assert.Equal(t, "disk full", entries[0].ContextMap()["error"])
	assert.Equal(t, "Encoding message", entries[1].Message)
}

func TestRunWorkerBootFailure(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.js", `function () { throw new Error("no way"); }`)

	saved := run
	t.Cleanup(func() { run = saved })
	run = runFlags{linger: time.Second}

	err := runWorker(context.Background(), main, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no way")
}

func TestPumpRejectsBadInput(t *testing.T) {
	w, err := worker.Create(context.Background(), `function () {}`, nil, nil)
	require.NoError(t, err)
	defer func() {
		w.Terminate()
		<-w.Done()
	}()

	err = pump(w, strings.NewReader("not json\n"), 1<<20)
	assert.Error(t, err)

	err = pump(w, strings.NewReader(`{"payload":1}`+"\n"), 1<<20)
	assert.EqualError(t, err, "input line has no type")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	if args == nil {
		args = []string{} // nil makes cobra read os.Args
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPsAndKill(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := host.New(host.Config{}, nil, nil)
	router := gin.New()
	h.Register(router)
	srv := httptest.NewServer(router)
	defer srv.Close()
	defer h.Close()

	w, err := worker.Create(context.Background(), `function () {}`, nil, nil,
		worker.WithSpawner(&worker.RemoteSpawner{URL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/spawn"}))
	require.NoError(t, err)
	<-w.Ready()

	out, err := execute(t, "ps", "--host", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, w.ID())
	assert.Contains(t, out, "ready")

	out, err = execute(t, "kill", w.ID(), "--host", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, w.ID()+"\n", out)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "worker did not stop")
	}

	_, err = execute(t, "kill", "wrk_missing", "--host", srv.URL)
	assert.Error(t, err)
}

func TestRootRequiresSubcommand(t *testing.T) {
	_, err := execute(t)
	assert.ErrorIs(t, err, ErrMissingSubcommand)
}
