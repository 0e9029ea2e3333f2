// Command ndepdemo is a small notes service.  Every HTTP endpoint and
// the cron job that expires old notes are injected functions that run
// inside their own database transaction.
//
//	ndepdemo -config notes.yaml
//	ndepdemo -plan
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/muir/ndep"
	"github.com/muir/ndep/ncron"
	"github.com/muir/ndep/nhttp"
	"github.com/muir/ndep/nlog"
	"github.com/muir/ndep/nsql"
)

// Retention is how long notes are kept
type Retention time.Duration

type endpoint struct {
	method     string
	path       string
	target     any
	paramNames []string
}

var endpoints = []endpoint{
	{http.MethodGet, "/notes", listNotes, nil},
	{http.MethodPost, "/notes", addNote, nil},
	{http.MethodGet, "/notes/{id}", getNote, nil},
	{http.MethodDelete, "/notes/{id}", deleteNote, nil},
	{http.MethodGet, "/health", health, []string{"db", "User-Agent"}},
}

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	printPlans := flag.Bool("plan", false, "print the plan of every endpoint and job, then exit")
	printDOT := flag.Bool("dot", false, "with -plan, print Graphviz instead of pseudo-code")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	must(err)
	retention, err := time.ParseDuration(cfg.Retention)
	must(errors.Wrap(err, "retention"))
	zl, err := newZapLogger(cfg.Debug)
	must(err)
	logger := nlog.FromZap(zl.Named("ndepdemo"))
	defer logger.(nlog.LogFlusher).Flush()

	db, closeDB, err := nsql.OpenDB(cfg.Database)
	must(err)
	defer func() {
		if err := closeDB(ndep.Success); err != nil {
			logger.Warn("close database", map[string]any{"error": err.Error()})
		}
	}()

	inj, err := buildInjector(db, Dialect(cfg.Database.Driver), Retention(retention), logger)
	must(err)
	sched := ncron.MustNewScheduler(inj, ncron.WithLogger(logger))
	must(sched.Schedule("expire-notes", cfg.Cleanup, expireNotes))

	if *printPlans {
		must(printAll(inj, sched, *printDOT))
		return
	}

	_, err = inj.Run(createSchema, nil)
	must(err)

	svc := nhttp.NewService(inj, nhttp.WithLogger(logger))
	for _, e := range endpoints {
		route, err := svc.Handle(e.path, e.target, e.paramNames...)
		must(err)
		route.Methods(e.method)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sched.Start()
	go func() {
		logger.Warn("listening", map[string]any{"addr": cfg.Listen})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", map[string]any{"error": err.Error()})
	}
	<-sched.Stop().Done()
}

func buildInjector(db *sql.DB, dialect Dialect, retention Retention, logger nlog.BasicLogger) (*ndep.Injector, error) {
	inj, err := ndep.NewInjector("ndepdemo",
		ndep.WithProviders(
			dialect,
			retention,
			newNotes,
			nhttp.DecodeJSON[newNote](),
			nlog.Producer(logger),
		),
	)
	if err != nil {
		return nil, err
	}
	if err := nhttp.Install(inj); err != nil {
		return nil, err
	}
	if err := nsql.InstallShared(inj, db); err != nil {
		return nil, err
	}
	noteID, err := ndep.Describe("parseNoteID", parseNoteID, "id")
	if err != nil {
		return nil, err
	}
	inj.Register(noteID)
	return inj, nil
}

func printAll(inj *ndep.Injector, sched *ncron.Scheduler, dot bool) error {
	for _, e := range endpoints {
		f, err := inj.Inject(e.target, e.paramNames...)
		if err != nil {
			return errors.Wrapf(err, "%s %s", e.method, e.path)
		}
		fmt.Printf("# %s %s\n", e.method, e.path)
		if dot {
			fmt.Println(f.Plan().DOT())
		} else {
			fmt.Println(f.String() + "\n")
		}
	}
	for _, j := range sched.Jobs() {
		fmt.Printf("# job %s (%s)\n%s\n\n", j.Name, j.Spec, j.Plan)
	}
	return nil
}

func listNotes(notes *Notes) ([]Note, error) {
	return notes.List()
}

func addNote(notes *Notes, n newNote) (Note, error) {
	if n.Text == "" {
		return Note{}, nhttp.BadRequest(errors.New("text is required"))
	}
	return notes.Add(n.Text, time.Now())
}

func getNote(notes *Notes, id NoteID) (Note, error) {
	return notes.Get(id)
}

func deleteNote(notes *Notes, id NoteID) error {
	return notes.Delete(id)
}

func health(db *sql.DB, userAgent nhttp.Header) (map[string]any, error) {
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping")
	}
	return map[string]any{
		"status":    "ok",
		"userAgent": string(userAgent),
		"openConns": db.Stats().OpenConnections,
	}, nil
}

func expireNotes(tick ncron.Tick, notes *Notes, retention Retention, log nlog.BasicLogger) error {
	count, err := notes.DeleteOlderThan(tick.Time.Add(-time.Duration(retention)))
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug("expired notes", map[string]any{
			"count": count,
			"run":   tick.Run,
		})
	}
	return nil
}

// newZapLogger builds a development logger when debugging,
// production otherwise
func newZapLogger(debug bool) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	return logger, errors.Wrap(err, "create logger")
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, ndep.DetailedError(err))
		os.Exit(1)
	}
}
