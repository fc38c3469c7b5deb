package testhelpers

import (
	"encoding/json"
	"sync"
	"testing"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONKeyValue checks if a JSON object has a specific key-value pair
func AssertJSONKeyValue(t *testing.T, jsonStr string, key string, expectedValue interface{}, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	actualValue, exists := obj[key]
	if !exists {
		t.Errorf("%s: JSON does not contain key %q", msg, key)
		return
	}

	// Convert both to JSON for comparison to handle type differences
	expectedJSON, _ := json.Marshal(expectedValue)
	actualJSON, _ := json.Marshal(actualValue)

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("%s: JSON key %q mismatch\nexpected: %v\nactual: %v", msg, key, expectedValue, actualValue)
	}
}

// AssertJSONArrayLength checks the length of a JSON array
func AssertJSONArrayLength(t *testing.T, jsonStr string, expectedLen int, msg string) {
	t.Helper()

	var arr []interface{}
	if err := json.Unmarshal([]byte(jsonStr), &arr); err != nil {
		t.Fatalf("%s: failed to parse JSON array: %v", msg, err)
	}

	if len(arr) != expectedLen {
		t.Errorf("%s: expected array length %d, got %d", msg, expectedLen, len(arr))
	}
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTest runs fn on goroutines workers released together, and waits for all of them
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			<-start
			fn(id)
		}(i)
	}

	close(start)
	wg.Wait()
}
