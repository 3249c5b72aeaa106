package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/trackademic/apps/api/di/dig"
	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	"github.com/trezcool/trackademic/core/user"
	"github.com/trezcool/trackademic/services/llm"
	logsvc "github.com/trezcool/trackademic/services/logger"
	"github.com/trezcool/trackademic/storage/database"
	inmemdb "github.com/trezcool/trackademic/storage/database/inmem"
	sqlxrepos "github.com/trezcool/trackademic/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf, "admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	rl := logsvc.NewRollbarLogger(zl, conf)
	rl.Enable(false)
	logger = rl

	os.Exit(run(conf, rl))
}

func run(conf *core.Config, rl *logsvc.RollbarLogger) int {
	defer rl.Sync()
	ctx := context.Background()

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	task.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up storage
	var (
		sqlDB    *sql.DB
		usrRepo  user.Repository
		clsRepo  class.Repository
		taskRepo task.Repository
	)
	if conf.Database.Engine == dig_container.EngineInMemory {
		mem := inmemdb.Open()
		usrRepo, clsRepo, taskRepo = inmemdb.NewUserRepository(mem), inmemdb.NewClassRepository(mem), inmemdb.NewTaskRepository(mem)
	} else {
		db, err := database.Open(ctx, conf)
		if err != nil {
			logger.Error(fmt.Sprintf("opening database: %v", err), err)
			return 1
		}
		defer db.Close()
		sqlDB = db.DB
		usrRepo, clsRepo, taskRepo = sqlxrepos.NewUserRepository(db), sqlxrepos.NewClassRepository(db), sqlxrepos.NewTaskRepository(db)
	}

	mailSvc, err := dig_container.NewEmailService(conf, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("setting up email: %v", err), err)
		return 1
	}
	usrSvc := user.NewService(usrRepo)
	classSvc := class.NewService(clsRepo)
	taskSvc := task.NewService(taskRepo, conf)

	cli := commandLine{
		db:         sqlDB,
		conf:       conf,
		logger:     logger,
		validate:   validate,
		translator: translator,
		usrSvc:     usrSvc,
		taskSvc:    taskSvc,
		mailSvc:    mailSvc,
		out:        os.Stdout,
	}
	// the LLM provider is only needed (and configured) for parsesyllabus
	if len(os.Args) > 1 && os.Args[1] == "parsesyllabus" {
		provider, err := llm.NewProvider(ctx, conf, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("setting up LLM provider: %v", err), err)
			return 1
		}
		cli.pipeline = syllabus.NewPipeline(conf, provider, taskSvc, classSvc, mailSvc, logger)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
