package logger

import (
	"time"
)

// Log is a single federation node log record.
// The logging helper marshals it to JSON for every writer, so stdout, the journal databases
// and zincsearch all receive the same record with the same ID.
type Log struct {
	ID        any       `json:"_id"        bson:"_id"        db:"id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
	Level     string    `json:"level"      bson:"level"      db:"level"`
	Msg       string    `json:"msg"        bson:"msg"        db:"msg"`
}

// Logger is the logging abstraction used across the federation node and the federator CLI.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
}
