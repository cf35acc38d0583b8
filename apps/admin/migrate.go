package main

import (
	"github.com/pressly/goose/v3"

	"github.com/trezcool/masomo-grading/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	db, err := cli.database()
	if err != nil {
		return err
	}
	if err = database.PrepareMigrations(db); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], db.DB, database.MigrationsDir, arguments...)
}
