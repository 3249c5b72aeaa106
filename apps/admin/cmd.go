package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
	"github.com/trezcool/trackademic/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB // nil with the in-memory engine
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
	usrSvc     *user.Service
	taskSvc    *task.Service
	mailSvc    core.EmailService
	pipeline   *syllabus.Pipeline
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose migration command (up, down, status, version, redo, reset...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME [-admin] - create a user, or reset their password. The password is prompted.")
	fmt.Fprintln(cli.out, "  parsesyllabus -file PATH -email EMAIL [-class ID] [-save] - extract the assignments of a syllabus")
	fmt.Fprintln(cli.out, "  remind [-within DURATION] - email every active user their unfinished tasks due soon")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant admin rights.")

	parseCmd := flag.NewFlagSet("parsesyllabus", flag.ContinueOnError)
	parseFile := parseCmd.String("file", "", "Path to the syllabus (PDF, image or text).")
	parseEmail := parseCmd.String("email", "", "Email of the user the tasks belong to.")
	parseClass := parseCmd.String("class", "", "ID of the class to attach the tasks to.")
	parseSave := parseCmd.Bool("save", false, "Persist the tasks and notify the user. Without it nothing is saved.")

	remindCmd := flag.NewFlagSet("remind", flag.ContinueOnError)
	remindWithin := remindCmd.Duration("within", 24*time.Hour, "Remind about tasks due within this window.")

	for _, fs := range []*flag.FlagSet{addUserCmd, parseCmd, remindCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserAdmin)

	case "parsesyllabus":
		if err := parseCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *parseFile == "" || *parseEmail == "" {
			parseCmd.Usage()
			return errHelp
		}
		return cli.parseSyllabus(*parseFile, *parseEmail, *parseClass, *parseSave)

	case "remind":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *remindWithin <= 0 {
			remindCmd.Usage()
			return errHelp
		}
		return cli.remind(*remindWithin)

	default:
		cli.printUsage()
		return errHelp
	}
}

// describe flattens validation errors into one readable line.
func (cli *commandLine) describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// waitForMail blocks until a background email backend has delivered what it was handed.
func (cli *commandLine) waitForMail() {
	if w, ok := cli.mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
}
