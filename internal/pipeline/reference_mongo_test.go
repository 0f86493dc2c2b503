package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// liveDatabase connects to ESGDATA_TEST_MONGO_URI and returns a scratch database.
func liveDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("ESGDATA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ESGDATA_TEST_MONGO_URI not set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("esgdata_test_" + bson.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func aggregate[T any](t *testing.T, coll *mongo.Collection, p mongo.Pipeline) []T {
	t.Helper()
	ctx := context.Background()
	cur, err := coll.Aggregate(ctx, p)
	require.NoError(t, err)
	var out []T
	require.NoError(t, cur.All(ctx, &out))
	return out
}

type holding struct {
	ISIN    string `bson:"isin"`
	Company bson.M `bson:"company"`
}

func TestResolveReference_Live(t *testing.T) {
	db := liveDatabase(t)
	ctx := context.Background()

	acme := bson.NewObjectID()
	_, err := db.Collection("companies").InsertOne(ctx, bson.D{{Key: "_id", Value: acme}, {Key: "name", Value: "ACME"}})
	require.NoError(t, err)

	holdings := db.Collection("holdings")
	_, err = holdings.InsertMany(ctx, []any{
		bson.D{{Key: "isin", Value: "A"}, {Key: "company", Value: acme}},
		bson.D{{Key: "isin", Value: "B"}, {Key: "company", Value: bson.NewObjectID()}},
	})
	require.NoError(t, err)

	p := Join(ResolveReference("company", "companies"), mongo.Pipeline{{{Key: "$sort", Value: bson.D{{Key: "isin", Value: 1}}}}})
	docs := aggregate[holding](t, holdings, p)
	require.Len(t, docs, 2, "unmatched records must not be dropped")

	assert.Equal(t, "A", docs[0].ISIN)
	assert.Equal(t, "ACME", docs[0].Company["name"])

	assert.Equal(t, "B", docs[1].ISIN)
	assert.NotNil(t, docs[1].Company)
	assert.Empty(t, docs[1].Company)
}

func TestDereference_Live(t *testing.T) {
	db := liveDatabase(t)
	ctx := context.Background()

	acme := bson.NewObjectID()
	_, err := db.Collection("companies").InsertOne(ctx, bson.D{{Key: "_id", Value: acme}, {Key: "name", Value: "ACME"}})
	require.NoError(t, err)

	owners := db.Collection("funds")
	wrapper := append(bson.D{{Key: "_cls", Value: "Company"}}, RefWrapper("companies", acme)...)
	_, err = owners.InsertOne(ctx, bson.D{{Key: "owner", Value: wrapper}})
	require.NoError(t, err)

	ids := aggregate[struct {
		Owner bson.ObjectID `bson:"owner"`
	}](t, owners, mongo.Pipeline{InlineDereference("owner")})
	require.Len(t, ids, 1)
	assert.Equal(t, acme, ids[0].Owner)

	resolved := aggregate[struct {
		Owner bson.M `bson:"owner"`
	}](t, owners, Dereference("owner", "companies"))
	require.Len(t, resolved, 1)
	assert.Equal(t, "ACME", resolved[0].Owner["name"])
}
