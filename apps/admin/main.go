package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/entity"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	"github.com/trezcool/masomo-console/services/upstream"
)

func main() {
	conf, err := core.NewConfig()
	errAndDie(err)

	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(os.Stderr, "admin", conf.Debug), conf)
	logger.Enable(!conf.Debug)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	registry, err := entity.NewDefaultRegistry(validate)
	errAndDie(err)
	registry.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:     conf,
		validate: validate,
		registry: registry,
		client:   upstream.NewClient(upstream.NewOptions(conf), logger),
		logger:   logger,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
