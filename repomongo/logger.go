package repomongo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bartossh/Federation/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const logWriteTimeout = 5 * time.Second

// ErrLogWrite is returned when the log record cannot be stored.
var ErrLogWrite = errors.New("log record write failed")

// Write stores the node log record in the logs collection next to the journal events.
// p is a marshaled logger.Log.
func (db DataBase) Write(p []byte) (int, error) {
	l, err := logDocument(p)
	if err != nil {
		return 0, errors.Join(ErrLogWrite, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()
	if _, err := db.inner.Collection(logsCollection).InsertOne(ctx, l); err != nil {
		return 0, errors.Join(ErrLogWrite, err)
	}
	return len(p), nil
}

// logDocument decodes the record restoring the hex ObjectID so the document id
// matches the id of the same record in the other writers.
func logDocument(p []byte) (logger.Log, error) {
	var l logger.Log
	if err := json.Unmarshal(p, &l); err != nil {
		return logger.Log{}, err
	}
	if hex, ok := l.ID.(string); ok {
		if id, err := primitive.ObjectIDFromHex(hex); err == nil {
			l.ID = id
		}
	}
	if l.ID == nil {
		l.ID = primitive.NewObjectID()
	}
	return l, nil
}
