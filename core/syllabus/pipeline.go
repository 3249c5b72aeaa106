package syllabus

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/task"
)

// pipeline states, as logged
const (
	stateValidating  = "validating"
	stateExtracting  = "extracting"
	stateNormalizing = "normalizing"
	statePersisting  = "persisting"
	stateNotifying   = "notifying"
	stateDone        = "done"
)

type (
	// Identity is the authenticated caller.
	Identity struct {
		UserID int64
		Email  string
		Name   string
	}

	Request struct {
		Identity Identity
		Upload   *Upload
		ClassID  null.Int64
		DryRun   bool // extract only: nothing is persisted or notified
	}

	Result struct {
		FileName    string
		FileSize    int64
		Mode        Mode
		Pages       int // PDF page count, when validated
		Assignments []json.RawMessage
		Tasks       []task.Task
		Failed      []Failure
		DryRun      bool
		Notified    bool
	}

	Pipeline struct {
		intake       *Intake
		invoker      *Invoker
		materializer *Materializer
		notifier     *Notifier
		academicYear int
		logger       core.Logger
	}
)

func NewPipeline(
	conf *core.Config,
	provider Completer,
	store TaskStore,
	classes ClassFinder,
	mailSvc core.EmailService,
	logger core.Logger,
) *Pipeline {
	return &Pipeline{
		intake:       NewIntake(conf),
		invoker:      NewInvoker(provider, conf, logger),
		materializer: NewMaterializer(store, classes, conf, logger),
		notifier:     NewNotifier(mailSvc, logger),
		academicYear: conf.Syllabus.AcademicYear,
		logger:       logger,
	}
}

// Run takes an upload through intake, extraction, normalization, persistence & notification.
// Failures are always a *Error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	uid := req.Identity.UserID

	fail := func(state string, err error) (*Result, error) {
		var serr *Error
		if !errors.As(err, &serr) {
			serr = internalError(err)
		}
		p.logger.Warn("syllabus pipeline failed", "user_id", uid, "state", state, "kind", string(serr.Kind), serr)
		return nil, serr
	}

	p.logger.Debug("syllabus pipeline", "user_id", uid, "state", stateValidating)
	payload, err := p.intake.Accept(req.Upload)
	if err != nil {
		return fail(stateValidating, err)
	}
	res := &Result{FileName: req.Upload.Name, FileSize: req.Upload.Size, Mode: payload.Mode, Pages: payload.Pages, DryRun: req.DryRun}
	if res.FileSize <= 0 {
		res.FileSize = int64(len(payload.Data) + len(payload.Text))
	}

	p.logger.Info("syllabus pipeline", "user_id", uid, "state", stateExtracting, "mode", string(payload.Mode),
		"file", res.FileName, "pages", res.Pages)
	text, err := p.invoker.Invoke(ctx, payload, BuildPrompt(payload, p.academicYear))
	if err != nil {
		return fail(stateExtracting, err)
	}

	p.logger.Debug("syllabus pipeline", "user_id", uid, "state", stateNormalizing)
	records, err := Normalize(text)
	if err != nil {
		return fail(stateNormalizing, err)
	}
	res.Assignments = records

	if !req.DryRun && len(records) > 0 {
		p.logger.Debug("syllabus pipeline", "user_id", uid, "state", statePersisting)
		res.Tasks, res.Failed = p.materializer.Materialize(ctx, uid, req.ClassID, records)
		if len(res.Tasks) == 0 {
			return fail(statePersisting, internalError(errors.Errorf("none of the %d assignments could be saved", len(records))))
		}

		p.logger.Debug("syllabus pipeline", "user_id", uid, "state", stateNotifying)
		res.Notified = p.notifier.Notify(req.Identity, res.FileName, res.Tasks)
	}

	p.logger.Info("syllabus pipeline", "user_id", uid, "state", stateDone, "assignments", len(records),
		"persisted", len(res.Tasks), "failed", len(res.Failed), "took", time.Since(start).String())
	return res, nil
}

// Partial reports whether some, but not all, records were persisted.
func (r *Result) Partial() bool {
	return len(r.Failed) > 0 && len(r.Tasks) > 0
}

// Status is the HTTP status of the result: 207 when persistence was partial.
func (r *Result) Status() int {
	if r.Partial() {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

// Body is the JSON response body.
func (r *Result) Body() map[string]interface{} {
	assignments := r.Assignments
	if assignments == nil {
		assignments = []json.RawMessage{}
	}
	body := map[string]interface{}{
		"success":           !r.Partial(),
		"file_name":         r.FileName,
		"file_size":         r.FileSize,
		"assignments_found": len(assignments),
		"assignments":       assignments,
	}
	if !r.DryRun {
		tasks := r.Tasks
		if tasks == nil {
			tasks = []task.Task{}
		}
		body["tasks"] = tasks
	}
	if r.Partial() {
		body["kind"] = "partial-persist"
		body["error"] = "Some assignments could not be saved"
		body["persisted"] = len(r.Tasks)
		body["failed"] = r.Failed
	}
	return body
}
