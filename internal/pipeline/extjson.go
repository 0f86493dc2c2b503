package pipeline

import (
	"bytes"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MarshalExtJSON renders stages as a JSON array of relaxed (or canonical)
// Extended JSON documents, the form mongosh and the aggregation docs use.
func MarshalExtJSON(stages mongo.Pipeline, canonical bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, stage := range stages {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := bson.MarshalExtJSON(stage, canonical, false)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
