package main

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/tenant"
	"github.com/William-Pardo/tudojang-sub002/storage/database"
	sqlxrepos "github.com/William-Pardo/tudojang-sub002/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if err := conf.Check(); err != nil {
		logger.Fatal(err)
	}
	if conf.Database.Engine == core.EngineMemory {
		logger.Fatal(errNoSQLEngine)
	}

	// set up DB
	if conf.Database.Engine == core.EnginePostgres {
		errAndDie(database.CreateIfNotExist(conf))
	}
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.Ping())

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:      conf,
		db:        db,
		usrRepo:   sqlxrepos.NewUserRepository(db),
		tenantSvc: tenant.NewService(sqlxrepos.NewTenantRepository(db), conf),
		validate:  validate,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
