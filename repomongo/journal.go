package repomongo

import (
	"context"
	"errors"
	"time"

	"github.com/bartossh/Federation/federation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type eventDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Seq       int64              `bson:"seq"`
	Kind      string             `bson:"kind"`
	TxID      string             `bson:"tx_id,omitempty"`
	Caller    string             `bson:"caller"`
	CreatedAt time.Time          `bson:"created_at"`
	Data      []byte             `bson:"data"`
}

// Append writes the encoded event to the journal.
func (db DataBase) Append(ctx context.Context, ev *federation.Event) error {
	raw, err := ev.Encode()
	if err != nil {
		return err
	}
	doc := eventDocument{
		ID:        primitive.NewObjectID(),
		Seq:       db.seq.Add(1),
		Kind:      ev.Kind.String(),
		Caller:    string(ev.Caller),
		CreatedAt: ev.CreatedAt,
		Data:      raw,
	}
	if ev.Kind.IsProposal() {
		doc.TxID = ev.TxID.String()
	}
	if _, err := db.inner.Collection(eventsCollection).InsertOne(ctx, doc); err != nil {
		db.seq.Add(-1)
		return err
	}
	return nil
}

// ReadAll reads all journal events in the order they were appended.
func (db DataBase) ReadAll(ctx context.Context) ([]federation.Event, error) {
	return db.readEvents(ctx, bson.D{})
}

// ReadTransactionHistory reads all events of the proposal in the order they were appended.
func (db DataBase) ReadTransactionHistory(ctx context.Context, id federation.TxID) ([]federation.Event, error) {
	return db.readEvents(ctx, bson.D{{Key: "tx_id", Value: id.String()}})
}

func (db DataBase) readEvents(ctx context.Context, filter bson.D) ([]federation.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	cur, err := db.inner.Collection(eventsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []federation.Event
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ev, err := federation.DecodeEvent(doc.Data)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, cur.Err()
}

func (db DataBase) lastSeq(ctx context.Context) (int64, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var doc eventDocument
	err := db.inner.Collection(eventsCollection).FindOne(ctx, bson.D{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
