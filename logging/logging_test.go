package logging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bartossh/Federation/logger"
	"github.com/stretchr/testify/assert"
)

type chanWriter chan []byte

func (c chanWriter) Write(p []byte) (int, error) {
	c <- append([]byte{}, p...)
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func readLog(t *testing.T, c chanWriter) logger.Log {
	t.Helper()
	select {
	case raw := <-c:
		var l logger.Log
		assert.Nil(t, json.Unmarshal(raw, &l))
		return l
	case <-time.After(time.Second):
		t.Fatal("log not written")
	}
	return logger.Log{}
}

func TestHelperWritesAllLevels(t *testing.T) {
	c := make(chanWriter, 5)
	h := New(func(err error) { t.Error(err) }, func(error) {}, c)

	h.Debug("debug msg")
	assert.Equal(t, "debug", readLog(t, c).Level)
	h.Info("info msg")
	assert.Equal(t, "info", readLog(t, c).Level)
	h.Warn("warn msg")
	assert.Equal(t, "warn", readLog(t, c).Level)
	h.Error("error msg")
	l := readLog(t, c)
	assert.Equal(t, "error", l.Level)
	assert.Equal(t, "error msg", l.Msg)
	assert.False(t, l.CreatedAt.IsZero())
}

func TestHelperFatalCallsCallback(t *testing.T) {
	c := make(chanWriter, 1)
	var fatal error
	h := New(func(err error) { t.Error(err) }, func(err error) { fatal = err }, c)

	h.Fatal("fatal msg")
	assert.Equal(t, "fatal", readLog(t, c).Level)
	assert.EqualError(t, fatal, "fatal msg")
}

func TestHelperWithLevelSkipsLowerLevels(t *testing.T) {
	c := make(chanWriter, 2)
	h := New(func(err error) { t.Error(err) }, func(error) {}, c).WithLevel("warn")

	h.Debug("skipped")
	h.Info("skipped")
	h.Warn("written")
	l := readLog(t, c)
	assert.Equal(t, "written", l.Msg)
	assert.Len(t, c, 0)
}

func TestHelperReportsWriterError(t *testing.T) {
	errs := make(chan error, 1)
	h := New(func(err error) { errs <- err }, func(error) {}, failingWriter{})

	h.Info("msg")
	select {
	case err := <-errs:
		assert.EqualError(t, err, "write failed")
	case <-time.After(time.Second):
		t.Fatal("error callback not called")
	}
}
