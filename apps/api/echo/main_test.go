package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/planner"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	"github.com/trezcool/trackademic/core/user"
	emailsvc "github.com/trezcool/trackademic/services/email"
	logsvc "github.com/trezcool/trackademic/services/logger"
	inmemdb "github.com/trezcool/trackademic/storage/database/inmem"
)

const testPassword = "Sup3r-Secret!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type (
	httpErr struct {
		Error string `json:"error"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		wantCode int
		wantData []byte
	}

	// scriptedCompleter answers completions from a list of canned replies.
	scriptedCompleter struct {
		mu      sync.Mutex
		replies []reply
		calls   int
	}

	reply struct {
		text string
		err  error
	}

	testApp struct {
		*Server
		conf     *core.Config
		userSvc  *user.Service
		classSvc *class.Service
		taskSvc  *task.Service
		provider *scriptedCompleter
	}
)

func (c *scriptedCompleter) Name() string { return "openai" }

func (c *scriptedCompleter) Complete(ctx context.Context, req syllabus.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.replies) == 0 {
		return "", &syllabus.ProviderError{Provider: "openai", Message: "no scripted reply"}
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r.text, r.err
}

func (c *scriptedCompleter) script(replies ...reply) {
	c.mu.Lock()
	c.replies = replies
	c.calls = 0
	c.mu.Unlock()
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewTestLogger(t)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	db := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	userSvc := user.NewService(inmemdb.NewUserRepository(db))
	classSvc := class.NewService(inmemdb.NewClassRepository(db))
	taskSvc := task.NewService(inmemdb.NewTaskRepository(db), conf)
	provider := new(scriptedCompleter)

	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		MailSvc:        mailSvc,
		UserSvc:        userSvc,
		ClassSvc:       classSvc,
		TaskSvc:        taskSvc,
		Pipeline:       syllabus.NewPipeline(conf, provider, taskSvc, classSvc, mailSvc, logger),
		Planner:        planner.NewPlanner(conf, provider, logger),
		DisableReqLogs: true,
	})

	return &testApp{
		Server:   srv,
		conf:     conf,
		userSvc:  userSvc,
		classSvc: classSvc,
		taskSvc:  taskSvc,
		provider: provider,
	}
}

func (app *testApp) createUser(t *testing.T, name, email string) user.User {
	t.Helper()
	usr, err := app.userSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	return usr
}

func (app *testApp) createClass(t *testing.T, usr user.User, name string) class.Class {
	t.Helper()
	cls, err := app.classSvc.Create(context.Background(), usr.ID, class.NewClass{Name: name})
	require.NoError(t, err)
	return cls
}

func (app *testApp) createTask(t *testing.T, usr user.User, title, due string) task.Task {
	t.Helper()
	tsk, err := app.taskSvc.Create(context.Background(), usr.ID, task.NewTask{
		Title:    title,
		DueDate:  due,
		Type:     task.TypeHomework,
		Priority: task.PriorityMedium,
		Status:   task.StatusPending,
	})
	require.NoError(t, err)
	return tsk
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.auth.generateToken(app.auth.userClaims(usr))
	require.NoError(t, err)
	return token
}

func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
