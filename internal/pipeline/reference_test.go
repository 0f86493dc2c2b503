package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

func extJSON(t *testing.T, v any) string {
	t.Helper()
	out, err := bson.MarshalExtJSON(v, false, false)
	require.NoError(t, err)
	return string(out)
}

func TestInlineDereference(t *testing.T) {
	stage := InlineDereference("owner")

	want := `{"$addFields": {"owner": {"$let": {
		"vars": {"a": {"$arrayElemAt": [{"$objectToArray": "$owner._ref"}, 1]}},
		"in": "$$a.v"
	}}}}`
	assert.JSONEq(t, want, extJSON(t, stage))
	require.Len(t, stage, 1)
	assert.Equal(t, "$addFields", stage[0].Key)
}

func TestInlineDereference_DottedField(t *testing.T) {
	stage := InlineDereference("holding.issuer")
	assert.Contains(t, extJSON(t, stage), `"$holding.issuer._ref"`)
}

func TestResolveReference(t *testing.T) {
	stages := ResolveReference("company", "companies")
	require.Len(t, stages, 3)

	assert.Equal(t, "$lookup", stages[0][0].Key)
	assert.Equal(t, "$addFields", stages[1][0].Key)
	assert.Equal(t, "$unwind", stages[2][0].Key)

	assert.JSONEq(t, `{"$lookup": {"from": "companies", "localField": "company", "foreignField": "_id", "as": "company"}}`,
		extJSON(t, stages[0]))
	assert.JSONEq(t, `{"$addFields": {"company": {"$cond": {
		"if": {"$ne": [{"$size": "$company"}, 0]},
		"then": "$company",
		"else": [{}]
	}}}}`, extJSON(t, stages[1]))
	assert.JSONEq(t, `{"$unwind": "$company"}`, extJSON(t, stages[2]))
}

func TestResolveReference_KeyOrder(t *testing.T) {
	lookup := ResolveReference("f", "c")[0][0].Value.(bson.D)
	keys := make([]string, len(lookup))
	for i, e := range lookup {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"from", "localField", "foreignField", "as"}, keys)
}

func TestDereference(t *testing.T) {
	stages := Dereference("owner", "users")
	require.Len(t, stages, 4)
	assert.Equal(t, InlineDereference("owner"), stages[0])
	assert.Equal(t, ResolveReference("owner", "users")[2], stages[3])
}

func TestJoin(t *testing.T) {
	a := ResolveReference("a", "as")
	b := ResolveReference("b", "bs")
	joined := Join(a, nil, b)
	require.Len(t, joined, 6)
	assert.Equal(t, a[0], joined[0])
	assert.Equal(t, b[2], joined[5])
	assert.Empty(t, Join())
}

func TestBuildersArePure(t *testing.T) {
	assert.Equal(t, ResolveReference("x", "y"), ResolveReference("x", "y"))
	assert.Equal(t, InlineDereference("x"), InlineDereference("x"))
}

func TestRefWrapper(t *testing.T) {
	id := bson.NewObjectID()
	w := RefWrapper("companies", id)
	ref := w[0].Value.(bson.D)
	assert.Equal(t, "_ref", w[0].Key)
	assert.Equal(t, "$ref", ref[0].Key)
	assert.Equal(t, id, ref[refIndex].Value)
}

func TestMarshalExtJSON(t *testing.T) {
	out, err := MarshalExtJSON(mongo.Pipeline{InlineDereference("owner"), {{Key: "$unwind", Value: "$owner"}}}, false)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"$addFields": {"owner": {"$let": {
			"vars": {"a": {"$arrayElemAt": [{"$objectToArray": "$owner._ref"}, 1]}},
			"in": "$$a.v"
		}}}},
		{"$unwind": "$owner"}
	]`, string(out))

	empty, err := MarshalExtJSON(nil, false)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}
