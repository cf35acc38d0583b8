package main

import (
	"log"
	"os"

	"github.com/trezcool/masomo-grading/core"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cli := commandLine{
		conf: core.NewConfig(),
		out:  os.Stdout,
	}
	err := cli.run(os.Args)
	if cErr := cli.close(); cErr != nil {
		logger.Printf("closing database: %s\n", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
