/*
Package nsql provides scoped database producers.

OpenDB opens a *sql.DB from Settings and closes it when the call
that needed it is done.  BeginTx starts a *sql.Tx that is committed
if the call succeeds and rolled back if it fails:

	inj := ndep.MustNewInjector("app")
	nsql.MustInstall(inj, settings)
	f := inj.MustInject(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT ...")
		return err
	})
*/
package nsql

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/muir/ndep"
)

// OpenDB opens a database.  The returned release closes it.
func OpenDB(s Settings) (*sql.DB, ndep.ReleaseFunc, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(s.Driver, s.DSN)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s database", s.Driver)
	}
	db.SetMaxOpenConns(s.MaxOpenConns)
	db.SetMaxIdleConns(s.MaxIdleConns)
	db.SetConnMaxLifetime(s.ConnMaxLifetime)
	db.SetConnMaxIdleTime(s.ConnMaxIdleTime)
	if s.Ping {
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, errors.Wrapf(err, "ping %s database", s.Driver)
		}
	}
	return db, func(ndep.Outcome) error {
		return errors.Wrap(db.Close(), "close database")
	}, nil
}

// BeginTx starts a transaction.  The returned release commits on
// Success and rolls back on Failure.
func BeginTx(db *sql.DB) (*sql.Tx, ndep.ReleaseFunc, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin transaction")
	}
	return tx, func(o ndep.Outcome) error {
		if o == ndep.Success {
			return errors.Wrap(tx.Commit(), "commit")
		}
		return errors.Wrap(tx.Rollback(), "rollback")
	}, nil
}

// Install registers settings, OpenDB, and BeginTx.  Each call of an
// injected function that needs the database opens its own.
func Install(inj *ndep.Injector, s Settings) error {
	return errors.Wrap(inj.Provide(s, OpenDB, BeginTx), "nsql install")
}

// MustInstall calls Install and panics on error
func MustInstall(inj *ndep.Injector, s Settings) *ndep.Injector {
	if err := Install(inj, s); err != nil {
		panic(err)
	}
	return inj
}

// InstallShared registers an already-open database and BeginTx.
// The database is not closed by ndep.
func InstallShared(inj *ndep.Injector, db *sql.DB) error {
	return errors.Wrap(inj.Provide(db, BeginTx), "nsql install")
}
