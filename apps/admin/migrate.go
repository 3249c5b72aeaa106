package main

import (
	"errors"

	"github.com/trezcool/trackademic/storage/database"
)

var migrateFunc = database.Migrate // mockable

var errNoSQLDatabase = errors.New("migrations need a SQL database (the in-memory engine has none)")

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
