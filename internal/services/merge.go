package services

import (
	"go.mongodb.org/mongo-driver/bson"
)

// MergeKind distinguishes the three legal mutations on a PersonRecord.
// Profile evidence only unions, counters only increment; Replace is
// reserved for bookkeeping timestamps and the deep-analysis write-back,
// which is a full resynthesis.
type MergeKind int

const (
	OpUnion MergeKind = iota
	OpReplace
	OpIncrement
)

// MergeOp is one field mutation applied inside an atomic record update.
type MergeOp struct {
	Kind  MergeKind
	Field string
	Value interface{}
}

// Union appends values to a set field without duplicating existing entries.
func Union(field string, values ...interface{}) MergeOp {
	return MergeOp{Kind: OpUnion, Field: field, Value: values}
}

// Replace overwrites a field. Only bookkeeping timestamps and the
// deep-analysis write-back may use this.
func Replace(field string, value interface{}) MergeOp {
	return MergeOp{Kind: OpReplace, Field: field, Value: value}
}

// Increment adds n to a numeric counter field.
func Increment(field string, n int64) MergeOp {
	return MergeOp{Kind: OpIncrement, Field: field, Value: n}
}

// BuildUpdate compiles merge ops into a single MongoDB update document, so
// every op in the batch lands in one atomic write.
func BuildUpdate(ops []MergeOp) bson.M {
	addToSet := bson.M{}
	set := bson.M{}
	inc := bson.M{}

	for _, op := range ops {
		switch op.Kind {
		case OpUnion:
			addToSet[op.Field] = bson.M{"$each": op.Value}
		case OpReplace:
			set[op.Field] = op.Value
		case OpIncrement:
			inc[op.Field] = op.Value
		}
	}

	update := bson.M{}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}
