package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/storage/database"
)

var (
	errHelp       = errors.New("help provided")
	errNoSQLDB    = errors.New("the memory database engine has nothing to migrate")
	outputFormats = []string{formatJSON, formatYAML}
)

type commandLine struct {
	conf *core.Config
	db   *sqlx.DB // opened on first use
	out  io.Writer
}

// database opens the configured database, once.
func (cli *commandLine) database() (*sqlx.DB, error) {
	if cli.db != nil {
		return cli.db, nil
	}
	if cli.conf.Database.Engine == database.EngineMemory {
		return nil, errNoSQLDB
	}
	db, err := database.Open(cli.conf)
	if err != nil {
		return nil, err
	}
	cli.db = db
	return db, nil
}

func (cli *commandLine) close() error {
	if cli.db == nil {
		return nil
	}
	return cli.db.Close()
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                       - run a goose command on the database")
	_, _ = fmt.Fprintln(cli.out, "  normalize -f FILE [-o json|yaml] [-diff]     - print the normalized form of a serialized scheme")
	_, _ = fmt.Fprintln(cli.out, "  defaults [-assessments \"A,B\"] [-o json|yaml] - print the default grading scheme")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	normalizeCmd := cli.newFlagSet("normalize")
	normalizeFile := normalizeCmd.String("f", "", "The file holding the serialized scheme (a JSON array of {name, weight}); - for stdin.")
	normalizeOutput := normalizeCmd.String("o", formatJSON, "The output format: json or yaml.")
	normalizeDiff := normalizeCmd.Bool("diff", false, "Print a unified diff between the original and the normalized entries.")

	defaultsCmd := cli.newFlagSet("defaults")
	defaultsAssessments := defaultsCmd.String("assessments", "", "Comma separated assessment names. Defaults to the configured ones.")
	defaultsOutput := defaultsCmd.String("o", formatJSON, "The output format: json or yaml.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "normalize":
		if err := normalizeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *normalizeFile == "" || !isOutputFormat(*normalizeOutput) {
			normalizeCmd.Usage()
			return errHelp
		}
		return cli.normalize(*normalizeFile, *normalizeOutput, *normalizeDiff)
	case "defaults":
		if err := defaultsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if !isOutputFormat(*defaultsOutput) {
			defaultsCmd.Usage()
			return errHelp
		}
		names := core.SplitList(*defaultsAssessments)
		if len(names) == 0 {
			names = cli.conf.Grading.DefaultAssessments
		}
		return cli.defaults(names, *defaultsOutput)
	default:
		cli.printUsage()
		return errHelp
	}
}

func isOutputFormat(format string) bool {
	for _, f := range outputFormats {
		if format == f {
			return true
		}
	}
	return false
}
