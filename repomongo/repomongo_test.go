//go:build integration

package repomongo

import (
	"context"
	"io"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logging"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestJournalRestore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	godotenv.Load("../.env")
	db, err := Connect(ctx, DBConfig{
		ConnStr:      os.Getenv("MONGO_CONN_STR"),
		DatabaseName: "federation_test",
	})
	assert.Nil(t, err)
	defer db.Disconnect(ctx)
	_, err = db.inner.Collection(eventsCollection).DeleteMany(ctx, bson.D{})
	assert.Nil(t, err)
	db.seq.Store(0)
	assert.Nil(t, db.RunMigration(ctx))

	log := logging.New(func(error) {}, func(error) {}, io.Discard)
	f, err := federation.New(ctx, []federation.Identity{"A"}, "O", db, nil, log)
	assert.Nil(t, err)

	k := federation.ProposalKey{Value: big.NewInt(7), Sender: "alice", Receiver: "bob"}
	id, err := f.SendTransactionProposal(ctx, "A", k, []byte("payload"))
	assert.Nil(t, err)
	_, err = f.UpdateSignatureState(ctx, "A", k, "sig", true)
	assert.Nil(t, err)

	history, err := db.ReadTransactionHistory(ctx, id)
	assert.Nil(t, err)
	assert.Len(t, history, 2)

	restored, err := federation.New(ctx, nil, "", db, nil, log)
	assert.Nil(t, err)
	assert.True(t, restored.IsSigned(id, "A"))
}
