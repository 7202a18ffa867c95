package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"simsweep/internal/params"
	"simsweep/internal/store"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sim.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil { // #nosec G306 -- test fixture must be executable
		t.Fatal(err)
	}
	return path
}

func testCombo(t *testing.T, mcs int64) params.Combination {
	t.Helper()
	c, err := params.NewCombination([]string{"mcs"}, map[string]params.Value{"mcs": params.Int(mcs)})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// memSink collects appended records in memory.
type memSink struct {
	mu   sync.Mutex
	recs []*store.RunRecord
}

func (m *memSink) Append(_ context.Context, rec *store.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memSink) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

func TestDefaultCommand(t *testing.T) {
	c, err := params.NewCombination([]string{"useRts", "mcs"}, map[string]params.Value{
		"useRts": params.Bool(true),
		"mcs":    params.Int(7),
	})
	if err != nil {
		t.Fatal(err)
	}
	argv := DefaultCommand("/opt/sim", c, "--RngRun", 3)
	want := []string{"/opt/sim", "--useRts=true", "--mcs=7", "--RngRun=3"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestExecuteSuccess(t *testing.T) {
	prog := writeScript(t, `echo "args: $@"
echo "result=42"
echo "trace data" > out.txt`)

	r := New(Options{
		Program:    prog,
		SeedArg:    "--RngRun",
		OutputRoot: t.TempDir(),
	})
	defer r.Close()

	rec, err := r.Execute(context.Background(), WorkItem{Combination: testCombo(t, 7), Seed: 0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rec.Failed || rec.ExitCode != 0 {
		t.Errorf("record = %+v, want success", rec)
	}
	if !strings.Contains(rec.Stdout, "result=42") {
		t.Errorf("stdout = %q, want result line", rec.Stdout)
	}
	if !strings.Contains(rec.Stdout, "--mcs=7") || !strings.Contains(rec.Stdout, "--RngRun=0") {
		t.Errorf("stdout = %q, rendered args missing", rec.Stdout)
	}
	if len(rec.OutputFiles) != 1 || rec.OutputFiles[0] != "out.txt" {
		t.Errorf("OutputFiles = %v, want [out.txt]", rec.OutputFiles)
	}
	if rec.Duration <= 0 {
		t.Errorf("Duration = %s, want > 0", rec.Duration)
	}

	// The file lives in the run-scoped output directory.
	data, err := os.ReadFile(filepath.Join(r.OutputDir(rec.ID), "out.txt"))
	if err != nil {
		t.Fatalf("reading output file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "trace data" {
		t.Errorf("output file content = %q", data)
	}
}

func TestExecuteNonzeroExit(t *testing.T) {
	prog := writeScript(t, `echo "partial output"; echo "boom" >&2; exit 3`)

	r := New(Options{Program: prog, SeedArg: "--RngRun", OutputRoot: t.TempDir()})
	defer r.Close()

	rec, err := r.Execute(context.Background(), WorkItem{Combination: testCombo(t, 0), Seed: 1})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !rec.Failed || rec.FailureKind != store.FailureExit || rec.ExitCode != 3 {
		t.Errorf("record = %+v, want exit failure with code 3", rec)
	}
	if !strings.Contains(rec.Stdout, "partial output") {
		t.Errorf("stdout = %q, want partial output preserved", rec.Stdout)
	}
	if !strings.Contains(rec.Stderr, "boom") {
		t.Errorf("stderr = %q, want boom", rec.Stderr)
	}
}

func TestExecuteTimeout(t *testing.T) {
	prog := writeScript(t, `echo "started"; sleep 10`)

	r := New(Options{
		Program:    prog,
		SeedArg:    "--RngRun",
		OutputRoot: t.TempDir(),
		Timeout:    200 * time.Millisecond,
	})
	defer r.Close()

	start := time.Now()
	rec, err := r.Execute(context.Background(), WorkItem{Combination: testCombo(t, 0), Seed: 0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout did not kill the process promptly (%s)", elapsed)
	}
	if !rec.Failed || rec.FailureKind != store.FailureTimeout {
		t.Errorf("record = %+v, want timeout failure", rec)
	}
}

func TestExecuteTimeoutKillsProcessGroup(t *testing.T) {
	// The shell forks a helper that inherits stdout and outlives it;
	// the timeout must take down the whole group, not just the shell.
	prog := writeScript(t, `sleep 10 &
sleep 10`)

	r := New(Options{
		Program:    prog,
		SeedArg:    "--RngRun",
		OutputRoot: t.TempDir(),
		Timeout:    200 * time.Millisecond,
	})
	defer r.Close()

	start := time.Now()
	rec, err := r.Execute(context.Background(), WorkItem{Combination: testCombo(t, 0), Seed: 0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("forked helper kept the run alive past the timeout (%s)", elapsed)
	}
	if !rec.Failed || rec.FailureKind != store.FailureTimeout {
		t.Errorf("record = %+v, want timeout failure", rec)
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	r := New(Options{
		Program:    filepath.Join(t.TempDir(), "missing-binary"),
		SeedArg:    "--RngRun",
		OutputRoot: t.TempDir(),
	})
	defer r.Close()

	rec, err := r.Execute(context.Background(), WorkItem{Combination: testCombo(t, 0), Seed: 0})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !rec.Failed || rec.FailureKind != store.FailureSpawn {
		t.Errorf("record = %+v, want spawn failure", rec)
	}
}

func TestRunBatch(t *testing.T) {
	prog := writeScript(t, `echo "seed run"`)

	r := New(Options{
		Program:    prog,
		SeedArg:    "--RngRun",
		OutputRoot: t.TempDir(),
		Workers:    3,
	})
	defer r.Close()

	var items []WorkItem
	for seed := int64(0); seed < 6; seed++ {
		items = append(items, WorkItem{Combination: testCombo(t, seed%2), Seed: seed})
	}

	sink := &memSink{}
	var mu sync.Mutex
	var reports [][2]int
	res, err := r.RunBatch(context.Background(), items, sink, func(completed, total int) {
		mu.Lock()
		reports = append(reports, [2]int{completed, total})
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Total != 6 || res.Completed != 6 || res.Failed != 0 {
		t.Errorf("result = %+v, want 6/6 completed", res)
	}
	if sink.len() != 6 {
		t.Errorf("sink has %d records, want 6", sink.len())
	}
	if len(reports) != 6 {
		t.Fatalf("progress called %d times, want 6", len(reports))
	}
	for i, rep := range reports {
		if rep[0] != i+1 || rep[1] != 6 {
			t.Errorf("progress[%d] = %v, want (%d, 6)", i, rep, i+1)
		}
	}
}

func TestRunBatchContinuesPastFailures(t *testing.T) {
	// Seed 0 fails, other seeds succeed.
	prog := writeScript(t, `case "$*" in *"--RngRun=0"*) exit 1;; esac
echo ok`)

	r := New(Options{Program: prog, SeedArg: "--RngRun", OutputRoot: t.TempDir(), Workers: 2})
	defer r.Close()

	items := []WorkItem{
		{Combination: testCombo(t, 0), Seed: 0},
		{Combination: testCombo(t, 0), Seed: 1},
		{Combination: testCombo(t, 0), Seed: 2},
	}
	sink := &memSink{}
	res, err := r.RunBatch(context.Background(), items, sink, nil)
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if res.Completed != 3 || res.Failed != 1 {
		t.Errorf("result = %+v, want 3 completed with 1 failed", res)
	}
}

func TestRunBatchCancellation(t *testing.T) {
	prog := writeScript(t, `sleep 10`)

	r := New(Options{Program: prog, SeedArg: "--RngRun", OutputRoot: t.TempDir(), Workers: 1})
	defer r.Close()

	var items []WorkItem
	for seed := int64(0); seed < 4; seed++ {
		items = append(items, WorkItem{Combination: testCombo(t, 0), Seed: seed})
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	sink := &memSink{}
	_, err := r.RunBatch(ctx, items, sink, nil)
	if err == nil {
		t.Fatal("RunBatch returned nil error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation did not stop the batch promptly (%s)", elapsed)
	}
}

// cancelingSink cancels the batch from inside the first append and
// records the context state the append observed.
type cancelingSink struct {
	cancel context.CancelFunc
	ctxErr error
	recs   int
}

func (s *cancelingSink) Append(ctx context.Context, _ *store.RunRecord) error {
	s.cancel()
	s.ctxErr = ctx.Err()
	s.recs++
	return nil
}

func TestRunBatchPersistsRecordAtCancellation(t *testing.T) {
	// A record produced right at the cancellation boundary must still
	// be appended under a live context.
	prog := writeScript(t, `echo ok`)

	r := New(Options{Program: prog, SeedArg: "--RngRun", OutputRoot: t.TempDir(), Workers: 1})
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelingSink{cancel: cancel}

	res, err := r.RunBatch(ctx, []WorkItem{{Combination: testCombo(t, 0), Seed: 0}}, sink, nil)
	if err != context.Canceled {
		t.Errorf("RunBatch error = %v, want context.Canceled", err)
	}
	if res.Completed != 1 || sink.recs != 1 {
		t.Errorf("result = %+v with %d records, want the record persisted", res, sink.recs)
	}
	if sink.ctxErr != nil {
		t.Errorf("append saw context error %v, want none", sink.ctxErr)
	}
}

func TestRunBatchAfterClose(t *testing.T) {
	r := New(Options{Program: "/bin/true", SeedArg: "--RngRun", OutputRoot: t.TempDir()})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := r.RunBatch(context.Background(), nil, &memSink{}, nil)
	if err != ErrClosed {
		t.Errorf("RunBatch after Close = %v, want ErrClosed", err)
	}
}
