package document

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/polystore/polystore/pkg/connector/core"
	"github.com/polystore/polystore/pkg/errors"
)

// idsOf extracts the _id of every row. Merge-mode recovery needs the ids to
// find which documents already exist.
func idsOf(rows []core.Row) ([]interface{}, error) {
	ids := make([]interface{}, 0, len(rows))
	for i, row := range rows {
		id, ok := row["_id"]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"row %d has no _id; merge mode requires explicit document ids", i)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// planBulkWrite partitions a batch into replace and insert operations based
// on which ids already exist in the collection: existing documents become
// upsert-replacements, new documents become inserts. The resulting models
// run as a single bulk write.
//
// The existence check and the bulk write are two round-trips. A concurrent
// writer inserting one of the "new" ids in between makes the bulk write fail
// on a duplicate key; callers retry.
func planBulkWrite(rows []core.Row, existing map[interface{}]bool) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		doc := bson.M(row)
		if existing[row["_id"]] {
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": row["_id"]}).
				SetReplacement(doc).
				SetUpsert(true))
		} else {
			models = append(models, mongo.NewInsertOneModel().SetDocument(doc))
		}
	}
	return models
}
