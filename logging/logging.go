package logging

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/bartossh/Federation/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var levels = map[string]int{
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
	"fatal": levelFatal,
}

// Helper helps with writing logs to io.Writers.
// Helper implements logger.Logger interface.
// Writing is done concurrently with out blocking the current thread.
type Helper struct {
	callOnErr   func(error)
	callOnFatal func(error)
	writers     []io.Writer
	min         int
}

// New creates new Helper.
// callOnErr is called when log cannot be marshaled or written,
// callOnFatal is called after the fatal log is written.
func New(callOnErr func(error), callOnFatal func(error), writers ...io.Writer) Helper {
	return Helper{callOnErr: callOnErr, callOnFatal: callOnFatal, writers: writers}
}

// WithLevel returns a copy of the Helper skipping logs below given level.
// Unknown level name keeps all the logs.
func (h Helper) WithLevel(level string) Helper {
	h.min = levels[strings.ToLower(level)]
	return h
}

// Debug writes debug log.
func (h Helper) Debug(msg string) {
	h.write(levelDebug, "debug", msg)
}

// Info writes info log.
func (h Helper) Info(msg string) {
	h.write(levelInfo, "info", msg)
}

// Warn writes warning log.
func (h Helper) Warn(msg string) {
	h.write(levelWarn, "warn", msg)
}

// Error writes error log.
func (h Helper) Error(msg string) {
	h.write(levelError, "error", msg)
}

// Fatal writes fatal log and calls the fatal callback.
func (h Helper) Fatal(msg string) {
	h.write(levelFatal, "fatal", msg)
	if h.callOnFatal != nil {
		h.callOnFatal(errors.New(msg))
	}
}

func (h Helper) write(level int, name, msg string) {
	if level < h.min {
		return
	}
	l := logger.Log{
		ID:        primitive.NewObjectID(),
		Level:     name,
		Msg:       msg,
		CreatedAt: time.Now(),
	}
	go func() {
		raw, err := json.Marshal(l)
		if err != nil {
			h.onErr(err)
			return
		}
		for _, w := range h.writers {
			if _, err := w.Write(raw); err != nil {
				h.onErr(err)
			}
		}
	}()
}

func (h Helper) onErr(err error) {
	if h.callOnErr != nil {
		h.callOnErr(err)
	}
}
