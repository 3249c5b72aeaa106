package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/trackademic/apps/api/echo"
	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/planner"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	"github.com/trezcool/trackademic/core/user"
	emailsvc "github.com/trezcool/trackademic/services/email"
	"github.com/trezcool/trackademic/services/llm"
	logsvc "github.com/trezcool/trackademic/services/logger"
	"github.com/trezcool/trackademic/storage/database"
	inmemdb "github.com/trezcool/trackademic/storage/database/inmem"
	sqlxrepos "github.com/trezcool/trackademic/storage/database/sqlx"
)

// EngineInMemory keeps everything in memory; nothing survives a restart.
const EngineInMemory = "inmem"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are the storage backends of the core services.
	Repositories struct {
		dig.Out
		Users   user.Repository
		Classes class.Repository
		Tasks   task.Repository
	}

	// Closer releases whatever the storage layer holds open.
	Closer func() error
)

func newLogger(conf *core.Config) (*logsvc.RollbarLogger, core.Logger, error) {
	zl, err := logsvc.NewZap(conf, "api")
	if err != nil {
		return nil, nil, errors.Wrap(err, "building api logger")
	}
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger, logger, nil
}

func newDBLogger(conf *core.Config) (core.Logger, error) {
	zl, err := logsvc.NewZap(conf, "db")
	if err != nil {
		return nil, errors.Wrap(err, "building db logger")
	}
	return logsvc.NewRollbarLogger(zl, conf), nil
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) (Repositories, Closer) {
	if conf.Database.Engine == EngineInMemory {
		loggerParam.Logger.Warn("using the in-memory database, data is lost on exit")
		db := inmemdb.Open()
		return Repositories{
			Users:   inmemdb.NewUserRepository(db),
			Classes: inmemdb.NewClassRepository(db),
			Tasks:   inmemdb.NewTaskRepository(db),
		}, func() error { return nil }
	}

	db, err := setUpDB(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		Users:   sqlxrepos.NewUserRepository(db),
		Classes: sqlxrepos.NewClassRepository(db),
		Tasks:   sqlxrepos.NewTaskRepository(db),
	}, db.Close
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewEmailService picks the email backend: console in debug mode or when configured, sendgrid or gmail otherwise.
func NewEmailService(conf *core.Config, logger core.Logger) (core.EmailService, error) {
	backend := conf.Email.Backend
	if conf.Debug {
		backend = "console"
	}
	switch backend {
	case "", "console":
		return emailsvc.NewConsoleService(conf, logger), nil
	case "sendgrid":
		return emailsvc.NewSendgridService(conf, logger), nil
	case "gmail":
		svc, err := emailsvc.NewGmailService(context.Background(), conf, logger)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	return nil, errors.Errorf("unknown email backend %q", backend)
}

func newProvider(conf *core.Config, logger core.Logger) (syllabus.Completer, error) {
	return llm.NewProvider(context.Background(), conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	mailSvc core.EmailService,
	userSvc *user.Service,
	classSvc *class.Service,
	taskSvc *task.Service,
	pipeline *syllabus.Pipeline,
	pl *planner.Planner,
) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		MailSvc:    mailSvc,
		UserSvc:    userSvc,
		ClassSvc:   classSvc,
		TaskSvc:    taskSvc,
		Pipeline:   pipeline,
		Planner:    pl,
	}
}

func newPipeline(
	conf *core.Config,
	provider syllabus.Completer,
	taskSvc *task.Service,
	classSvc *class.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *syllabus.Pipeline {
	return syllabus.NewPipeline(conf, provider, taskSvc, classSvc, mailSvc, logger)
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(NewEmailService))
	must(c.Provide(newProvider))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(task.NewService))
	must(c.Provide(newPipeline))
	must(c.Provide(planner.NewPlanner))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
