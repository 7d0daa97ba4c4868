package metrics

import "fmt"

// Tag creates a formatted DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return fmt.Sprintf("%s:%s", key, value)
}

// LevelTag creates a cache level tag.
func LevelTag(level string) string {
	return Tag("level", level)
}

// OperationTag creates an operation tag.
func OperationTag(op string) string {
	return Tag("operation", op)
}

// StatusTag creates a status tag (success/failure, hit/miss).
func StatusTag(status string) string {
	return Tag("status", status)
}

// LayerTag creates a cache layer tag (memory/redis).
func LayerTag(layer string) string {
	return Tag("layer", layer)
}

// ClassTag creates an error class tag.
func ClassTag(class string) string {
	return Tag("error_class", class)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}
