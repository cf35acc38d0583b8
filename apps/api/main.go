package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-grading/apps/api/echo"
	"github.com/trezcool/masomo-grading/core"
	"github.com/trezcool/masomo-grading/core/scheme"
	"github.com/trezcool/masomo-grading/services/gradebook"
	"github.com/trezcool/masomo-grading/services/logger"
	"github.com/trezcool/masomo-grading/storage/database"
	"github.com/trezcool/masomo-grading/storage/database/dummy"
	"github.com/trezcool/masomo-grading/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repo, db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if db != nil {
		defer func() {
			if err = db.Close(); err != nil {
				dbLogger.Error("Failed to close", err)
			}
		}()
	}

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	scheme.InitValidators(validate, translator)

	opts := []scheme.Option{scheme.WithAssessments(conf.Grading.DefaultAssessments...)}
	var saver scheme.Saver
	if conf.Gradebook.BaseURL == "" {
		saver = gradebooksvc.NewConsoleSaver()
	} else {
		client := gradebooksvc.NewClient(conf.Gradebook)
		saver = client
		opts = append(opts, scheme.WithLoader(client))
	}
	schemeSvc := scheme.NewService(repo, saver, logger, validate, opts...)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			SchemeSvc:  schemeSvc,
			Validate:   validate,
			Translator: translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB returns the draft repository of the configured engine. The returned DB is nil for the memory engine.
func setUpDB(conf *core.Config) (scheme.Repository, *sqlx.DB, error) {
	if conf.Database.Engine == database.EngineMemory {
		mem, err := dummydb.Open()
		if err != nil {
			return nil, nil, err
		}
		return dummydb.NewDraftRepository(mem), nil, nil
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return sqlxrepos.NewDraftRepository(db), db, nil
}
