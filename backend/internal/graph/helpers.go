package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

// toParams converts string properties into a driver parameter map
func toParams(properties map[string]string) map[string]interface{} {
	params := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		params[k] = v
	}
	return params
}
