package spec_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	speccmd "github.com/RigiResearch/middleware-sub001/cmd/specctl/spec"
	"github.com/RigiResearch/middleware-sub001/internal/cli/report"
	"github.com/RigiResearch/middleware-sub001/internal/cli/workflow"
	"github.com/RigiResearch/middleware-sub001/pkg/notation"
	pkgstate "github.com/RigiResearch/middleware-sub001/pkg/state"
	"github.com/RigiResearch/middleware-sub001/pkg/telemetry"
)

const previousDoc = `# managed by ops

# the main vm
resource "vm" "web" {
  ami   = "ami-1" # pinned
  count = 2
}
`

const currentDoc = `resource "vm" "web" {
  ami   = "ami-2"
  count = 3
}

resource "vm" "api" {
  count = 1
}
`

const mergedDoc = `# managed by ops

resource "vm" "api" {
  count = 1
}

# the main vm
resource "vm" "web" {
  ami   = "ami-2" # pinned
  count = 3
}
`

type memFS struct {
	files  map[string][]byte
	writes map[string][]byte
}

func newMemFS(files map[string]string) *memFS {
	m := &memFS{files: map[string][]byte{}, writes: map[string][]byte{}}
	for k, v := range files {
		m.files[k] = []byte(v)
	}
	return m
}

func (m *memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return data, nil
}

func (m *memFS) WriteFile(path string, data []byte, _ os.FileMode) error {
	m.writes[path] = append([]byte(nil), data...)
	return nil
}

type stubStateWriter struct {
	records   []pkgstate.Record
	overrides []pkgstate.Overrides
	err       error
}

func (s *stubStateWriter) Write(record pkgstate.Record, overrides pkgstate.Overrides) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.records = append(s.records, record)
	s.overrides = append(s.overrides, overrides)
	return overrides.StateDirectory + "/" + overrides.Template + ".json", nil
}

func newDeps(files *memFS, state speccmd.StateWriter) speccmd.Deps {
	return speccmd.Deps{
		ReadFile:     files.ReadFile,
		WriteFile:    files.WriteFile,
		StateManager: state,
		Telemetry: workflow.Factories{
			Emitter: func(w io.Writer) (*telemetry.Emitter, error) {
				return telemetry.NewEmitterWithID(w, "wf-spec")
			},
		},
	}
}

func newCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	return cmd, &stdout, &stderr
}

func TestMergeWritesMergedDocumentToStdout(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": currentDoc})
	cmd, stdout, stderr := newCommand()

	err := speccmd.RunMergeForTest(cmd, speccmd.MergeOptions{Previous: "prev.tf", Current: "live.tf"}, newDeps(files, &stubStateWriter{}))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if stdout.String() != mergedDoc {
		t.Fatalf("unexpected merged document:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "merge workflow completed") {
		t.Fatalf("expected workflow log on stderr, got %s", stderr.String())
	}
	if len(files.writes) != 0 {
		t.Fatalf("expected no file writes, got %v", files.writes)
	}
}

func TestMergeWritesOutFileAndState(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": currentDoc})
	state := &stubStateWriter{}
	cmd, stdout, _ := newCommand()

	opts := speccmd.MergeOptions{Previous: "prev.tf", Current: "live.tf", Out: "merged.tf", StateDir: "/var/lib/specctl"}
	if err := speccmd.RunMergeForTest(cmd, opts, newDeps(files, state)); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected empty stdout with --out, got %q", stdout.String())
	}
	if string(files.writes["merged.tf"]) != mergedDoc {
		t.Fatalf("unexpected merged file:\n%s", files.writes["merged.tf"])
	}
	if len(state.records) != 1 {
		t.Fatalf("expected one state record, got %d", len(state.records))
	}
	record := state.records[0]
	if record.Template != "live" || record.LastAction != "merge" || record.WorkflowID != "wf-spec" {
		t.Fatalf("unexpected record %#v", record)
	}
	if record.Resources.Added != 1 || record.Resources.Updated != 1 || record.CarriedComments == 0 {
		t.Fatalf("unexpected record counts %#v", record)
	}
	if record.MergedDigest == "" || record.MergedDigest == record.CurrentDigest {
		t.Fatalf("expected distinct merged digest, got %#v", record)
	}
	if state.overrides[0].StateDirectory != "/var/lib/specctl" {
		t.Fatalf("unexpected overrides %#v", state.overrides[0])
	}
}

func TestMergeRequiresInputs(t *testing.T) {
	files := newMemFS(nil)
	cmd, _, _ := newCommand()
	deps := newDeps(files, &stubStateWriter{})

	if err := speccmd.RunMergeForTest(cmd, speccmd.MergeOptions{Current: "live.tf"}, deps); !errors.Is(err, speccmd.ErrPreviousRequired()) {
		t.Fatalf("expected ErrPreviousRequired, got %v", err)
	}
	if err := speccmd.RunMergeForTest(cmd, speccmd.MergeOptions{Previous: "prev.tf"}, deps); !errors.Is(err, speccmd.ErrCurrentRequired()) {
		t.Fatalf("expected ErrCurrentRequired, got %v", err)
	}
}

func TestMergeReportsMissingAndInvalidFiles(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "broken.tf": "resource \"vm\" {\n"})
	cmd, stdout, stderr := newCommand()
	deps := newDeps(files, &stubStateWriter{})

	err := speccmd.RunMergeForTest(cmd, speccmd.MergeOptions{Previous: "prev.tf", Current: "absent.tf"}, deps)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	err = speccmd.RunMergeForTest(cmd, speccmd.MergeOptions{Previous: "prev.tf", Current: "broken.tf"}, deps)
	if !errors.Is(err, notation.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "merge workflow failed") {
		t.Fatalf("expected failure log, got %s", stderr.String())
	}
}

func TestMergeStateFailureIsReturned(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": currentDoc})
	cmd, _, _ := newCommand()
	boom := fmt.Errorf("disk full")

	opts := speccmd.MergeOptions{Previous: "prev.tf", Current: "live.tf", StateDir: "/state"}
	err := speccmd.RunMergeForTest(cmd, opts, newDeps(files, &stubStateWriter{err: boom}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestPlanJSONReport(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": currentDoc})
	cmd, stdout, _ := newCommand()

	opts := speccmd.PlanOptions{Previous: "prev.tf", Current: "live.tf", Output: "json"}
	if err := speccmd.RunPlanForTest(cmd, opts, newDeps(files, &stubStateWriter{})); err != nil {
		t.Fatalf("plan: %v", err)
	}

	var summary report.Summary
	if err := json.Unmarshal(stdout.Bytes(), &summary); err != nil {
		t.Fatalf("decode plan output %q: %v", stdout.String(), err)
	}
	if summary.Template != "live" || summary.Resources.Added != 1 || summary.Resources.Updated != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(files.writes) != 0 {
		t.Fatalf("plan must not write files, got %v", files.writes)
	}
}

func TestPlanAutoOutputFallsBackToJSON(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": previousDoc})
	cmd, stdout, _ := newCommand()

	opts := speccmd.PlanOptions{Previous: "prev.tf", Current: "live.tf", Output: "auto"}
	if err := speccmd.RunPlanForTest(cmd, opts, newDeps(files, &stubStateWriter{})); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !json.Valid(stdout.Bytes()) {
		t.Fatalf("expected json for a non-terminal writer, got %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"changes": []`) {
		t.Fatalf("expected empty change list, got %s", stdout.String())
	}
}

func TestPlanTextAndInvalidOutput(t *testing.T) {
	files := newMemFS(map[string]string{"prev.tf": previousDoc, "live.tf": currentDoc})
	cmd, stdout, _ := newCommand()
	deps := newDeps(files, &stubStateWriter{})

	if err := speccmd.RunPlanForTest(cmd, speccmd.PlanOptions{Previous: "prev.tf", Current: "live.tf", Output: "text"}, deps); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(stdout.String(), "resource.vm.api") {
		t.Fatalf("expected change table, got %s", stdout.String())
	}

	err := speccmd.RunPlanForTest(cmd, speccmd.PlanOptions{Previous: "prev.tf", Current: "live.tf", Output: "yaml"}, deps)
	if err == nil || !strings.Contains(err.Error(), "unsupported output format") {
		t.Fatalf("expected unsupported output error, got %v", err)
	}
}

const messyDoc = `resource "vm" "web" {
  count = 2
  ami = "ami-1"
}
`

const tidyDoc = `resource "vm" "web" {
  count = 2
  ami   = "ami-1"
}
`

func TestFmtPrintsCanonicalForm(t *testing.T) {
	files := newMemFS(map[string]string{"web.tf": messyDoc})
	cmd, stdout, _ := newCommand()

	if err := speccmd.RunFmtForTest(cmd, speccmd.FmtOptions{Files: []string{"web.tf"}}, newDeps(files, nil)); err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if stdout.String() != tidyDoc {
		t.Fatalf("unexpected output:\n%s", stdout.String())
	}
}

func TestFmtWriteOnlyTouchesChangedFiles(t *testing.T) {
	files := newMemFS(map[string]string{"web.tf": messyDoc, "tidy.tf": tidyDoc})
	cmd, stdout, _ := newCommand()

	opts := speccmd.FmtOptions{Files: []string{"web.tf", "tidy.tf"}, Write: true}
	if err := speccmd.RunFmtForTest(cmd, opts, newDeps(files, nil)); err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if string(files.writes["web.tf"]) != tidyDoc {
		t.Fatalf("unexpected rewrite:\n%s", files.writes["web.tf"])
	}
	if _, ok := files.writes["tidy.tf"]; ok {
		t.Fatalf("expected canonical file to be left alone")
	}
	if stdout.String() != "web.tf\n" {
		t.Fatalf("expected rewritten file list, got %q", stdout.String())
	}
}

func TestFmtCheck(t *testing.T) {
	files := newMemFS(map[string]string{"web.tf": messyDoc, "tidy.tf": tidyDoc})
	cmd, stdout, _ := newCommand()
	deps := newDeps(files, nil)

	if err := speccmd.RunFmtForTest(cmd, speccmd.FmtOptions{Files: []string{"tidy.tf"}, Check: true}, deps); err != nil {
		t.Fatalf("expected canonical file to pass, got %v", err)
	}
	err := speccmd.RunFmtForTest(cmd, speccmd.FmtOptions{Files: []string{"web.tf", "tidy.tf"}, Check: true}, deps)
	if !errors.Is(err, speccmd.ErrNotFormatted()) {
		t.Fatalf("expected ErrNotFormatted, got %v", err)
	}
	if stdout.String() != "web.tf\n" {
		t.Fatalf("expected only the unformatted file, got %q", stdout.String())
	}
	if len(files.writes) != 0 {
		t.Fatalf("check must not write files")
	}
}

func TestValidateReportsEveryFile(t *testing.T) {
	files := newMemFS(map[string]string{
		"good.tf": tidyDoc,
		"dup.tf":  "resource \"vm\" \"web\" {\n}\nresource \"vm\" \"web\" {\n}\n",
	})
	cmd, stdout, _ := newCommand()

	err := speccmd.RunValidateForTest(cmd, []string{"good.tf", "dup.tf", "absent.tf"}, newDeps(files, nil))
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected joined not-exist error, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected a line per file, got %q", stdout.String())
	}
	if lines[0] != "good.tf: ok" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "dup.tf: ") || strings.HasSuffix(lines[1], ": ok") {
		t.Fatalf("expected duplicate failure, got %q", lines[1])
	}
}

func TestValidateSucceeds(t *testing.T) {
	files := newMemFS(map[string]string{"good.tf": tidyDoc})
	cmd, stdout, _ := newCommand()

	if err := speccmd.RunValidateForTest(cmd, []string{"good.tf"}, newDeps(files, nil)); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if stdout.String() != "good.tf: ok\n" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}
