// Package pipeline builds aggregation-pipeline fragments that resolve
// references between collections. Nothing here talks to a server; the
// fragments are handed to the driver by the caller.
package pipeline

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// refIndex is the position of the identifier inside a converted DBRef:
// [{k: "$ref"}, {k: "$id"}, {k: "$db"}].
const refIndex = 1

// InlineDereference returns an $addFields stage replacing a
// {"_ref": DBRef, ...} wrapper stored in field by the referenced identifier.
// This is what a generic (dynamic) reference field needs before it can be joined.
func InlineDereference(field string) bson.D {
	return bson.D{{Key: "$addFields", Value: bson.D{
		{Key: field, Value: bson.D{
			{Key: "$let", Value: bson.D{
				{Key: "vars", Value: bson.D{
					{Key: "a", Value: bson.D{
						{Key: "$arrayElemAt", Value: bson.A{
							bson.D{{Key: "$objectToArray", Value: "$" + field + "._ref"}},
							refIndex,
						}},
					}},
				}},
				{Key: "in", Value: "$$a.v"},
			}},
		}},
	}}}
}

// ResolveReference returns the stages that replace the identifier in field by
// the document it points to in collection. A dangling identifier yields an
// empty document instead of dropping the record, and a match never fans out.
// The three stages must stay in this order.
func ResolveReference(field, collection string) mongo.Pipeline {
	ref := "$" + field
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: collection},
			{Key: "localField", Value: field},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: field},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: field, Value: bson.D{
				{Key: "$cond", Value: bson.D{
					{Key: "if", Value: bson.D{{Key: "$ne", Value: bson.A{bson.D{{Key: "$size", Value: ref}}, 0}}}},
					{Key: "then", Value: ref},
					{Key: "else", Value: bson.A{bson.D{}}},
				}},
			}},
		}}},
		{{Key: "$unwind", Value: ref}},
	}
}

// Dereference unwraps a generic reference in field and resolves it against
// collection in one go.
func Dereference(field, collection string) mongo.Pipeline {
	return Join(mongo.Pipeline{InlineDereference(field)}, ResolveReference(field, collection))
}

// Join concatenates fragments in order.
func Join(parts ...mongo.Pipeline) mongo.Pipeline {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make(mongo.Pipeline, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// RefWrapper builds the {"_ref": DBRef} wrapper a generic reference field
// stores, as read by InlineDereference.
func RefWrapper(collection string, id any) bson.D {
	return bson.D{{Key: "_ref", Value: bson.D{
		{Key: "$ref", Value: collection},
		{Key: "$id", Value: id},
	}}}
}
