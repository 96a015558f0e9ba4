package services

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

// TestBuildUpdate compiles each op kind into its MongoDB operator
func TestBuildUpdate(t *testing.T) {
	update := BuildUpdate([]MergeOp{
		Union("profileData.possibleLocations", "SP"),
		Replace("confidenceScore", 42.0),
		Increment("metrics.totalConversations", 1),
	})

	addToSet, ok := update["$addToSet"].(bson.M)
	if !ok {
		t.Fatal("Expected $addToSet section")
	}
	each, ok := addToSet["profileData.possibleLocations"].(bson.M)
	if !ok {
		t.Fatal("Union should compile to an $each clause")
	}
	values, ok := each["$each"].([]interface{})
	if !ok || len(values) != 1 || values[0] != "SP" {
		t.Errorf("Union values = %v, want [SP]", each["$each"])
	}

	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatal("Expected $set section")
	}
	if set["confidenceScore"] != 42.0 {
		t.Errorf("Replace value = %v, want 42", set["confidenceScore"])
	}

	inc, ok := update["$inc"].(bson.M)
	if !ok {
		t.Fatal("Expected $inc section")
	}
	if inc["metrics.totalConversations"] != int64(1) {
		t.Errorf("Increment value = %v, want 1", inc["metrics.totalConversations"])
	}
}

// TestBuildUpdateOmitsEmptySections ensures no stray operators
func TestBuildUpdateOmitsEmptySections(t *testing.T) {
	update := BuildUpdate([]MergeOp{Increment("version", 1)})

	if _, exists := update["$addToSet"]; exists {
		t.Error("Unexpected $addToSet for increment-only batch")
	}
	if _, exists := update["$set"]; exists {
		t.Error("Unexpected $set for increment-only batch")
	}
	if _, exists := update["$inc"]; !exists {
		t.Error("Missing $inc section")
	}
}

// TestUnionMultipleValues carries every value into one $each
func TestUnionMultipleValues(t *testing.T) {
	update := BuildUpdate([]MergeOp{Union("profileData.interests", "trilha", "cinema")})

	each := update["$addToSet"].(bson.M)["profileData.interests"].(bson.M)["$each"].([]interface{})
	if len(each) != 2 {
		t.Fatalf("Expected 2 values, got %d", len(each))
	}
}
