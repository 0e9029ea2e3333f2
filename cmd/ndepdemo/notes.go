package main

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/muir/ndep/nhttp"
)

// Dialect is the database driver name.  Queries are written with
// "?" placeholders and rewritten for postgres.
type Dialect string

func (d Dialect) rebind(query string) string {
	if d != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) schema() string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch d {
	case "postgres":
		id = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		id = "BIGINT AUTO_INCREMENT PRIMARY KEY"
	}
	return "CREATE TABLE IF NOT EXISTS notes (id " + id + ", body TEXT NOT NULL, created BIGINT NOT NULL)"
}

type Note struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Created time.Time `json:"created"`
}

type newNote struct {
	Text string `json:"text"`
}

type NoteID int64

func parseNoteID(id nhttp.URLArg) (NoteID, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, nhttp.BadRequest(errors.Wrapf(err, "note id %q", string(id)))
	}
	return NoteID(n), nil
}

// Notes is the note store for one transaction
type Notes struct {
	tx      *sql.Tx
	dialect Dialect
}

func newNotes(tx *sql.Tx, dialect Dialect) *Notes {
	return &Notes{tx: tx, dialect: dialect}
}

func createSchema(tx *sql.Tx, dialect Dialect) error {
	_, err := tx.Exec(dialect.schema())
	return errors.Wrap(err, "create schema")
}

func (n *Notes) List() ([]Note, error) {
	rows, err := n.tx.Query("SELECT id, body, created FROM notes ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "list notes")
	}
	defer rows.Close()
	notes := []Note{}
	for rows.Next() {
		var note Note
		var created int64
		if err := rows.Scan(&note.ID, &note.Text, &created); err != nil {
			return nil, errors.Wrap(err, "scan note")
		}
		note.Created = time.Unix(created, 0).UTC()
		notes = append(notes, note)
	}
	return notes, errors.Wrap(rows.Err(), "list notes")
}

func (n *Notes) Get(id NoteID) (Note, error) {
	note := Note{ID: int64(id)}
	var created int64
	err := n.tx.QueryRow(n.dialect.rebind("SELECT body, created FROM notes WHERE id = ?"), int64(id)).
		Scan(&note.Text, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Note{}, nhttp.NotFound(errors.Errorf("no note %d", id))
	}
	if err != nil {
		return Note{}, errors.Wrap(err, "get note")
	}
	note.Created = time.Unix(created, 0).UTC()
	return note, nil
}

func (n *Notes) Add(text string, now time.Time) (Note, error) {
	note := Note{Text: text, Created: now.UTC().Truncate(time.Second)}
	if n.dialect == "postgres" {
		err := n.tx.QueryRow("INSERT INTO notes (body, created) VALUES ($1, $2) RETURNING id", text, now.Unix()).
			Scan(&note.ID)
		return note, errors.Wrap(err, "add note")
	}
	res, err := n.tx.Exec("INSERT INTO notes (body, created) VALUES (?, ?)", text, now.Unix())
	if err != nil {
		return Note{}, errors.Wrap(err, "add note")
	}
	note.ID, err = res.LastInsertId()
	return note, errors.Wrap(err, "add note")
}

func (n *Notes) Delete(id NoteID) error {
	res, err := n.tx.Exec(n.dialect.rebind("DELETE FROM notes WHERE id = ?"), int64(id))
	if err != nil {
		return errors.Wrap(err, "delete note")
	}
	count, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete note")
	}
	if count == 0 {
		return nhttp.NotFound(errors.Errorf("no note %d", id))
	}
	return nil
}

func (n *Notes) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := n.tx.Exec(n.dialect.rebind("DELETE FROM notes WHERE created < ?"), cutoff.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "expire notes")
	}
	count, err := res.RowsAffected()
	return count, errors.Wrap(err, "expire notes")
}
