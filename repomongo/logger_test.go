package repomongo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bartossh/Federation/logger"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLogDocumentKeepsObjectID(t *testing.T) {
	id := primitive.NewObjectID()
	raw, err := json.Marshal(logger.Log{ID: id, CreatedAt: time.Now(), Level: "info", Msg: "proposal created"})
	assert.Nil(t, err)

	l, err := logDocument(raw)
	assert.Nil(t, err)
	assert.Equal(t, id, l.ID)
	assert.Equal(t, "proposal created", l.Msg)
}

func TestLogDocumentWithoutID(t *testing.T) {
	l, err := logDocument([]byte(`{"level":"warn","msg":"no id"}`))
	assert.Nil(t, err)
	_, ok := l.ID.(primitive.ObjectID)
	assert.True(t, ok)

	_, err = logDocument([]byte("not json"))
	assert.NotNil(t, err)
}
