package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		validate func(*testing.T, map[string]any)
	}{
		{
			name:   "simple object",
			status: http.StatusOK,
			data:   map[string]string{"message": "hello"},
			validate: func(t *testing.T, body map[string]any) {
				data, ok := body["data"].(map[string]any)
				if !ok {
					t.Fatal("Expected data to be present")
				}
				if msg, ok := data["message"].(string); !ok || msg != "hello" {
					t.Errorf("Expected message 'hello', got %v", data["message"])
				}
			},
		},
		{
			name:   "nil data",
			status: http.StatusCreated,
			data:   nil,
			validate: func(t *testing.T, body map[string]any) {
				if body["data"] != nil {
					t.Error("Expected data to be nil")
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			resp := w.Result()
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if success, ok := body["success"].(bool); !ok || !success {
				t.Error("Expected success to be true")
			}
			timestamp, ok := body["timestamp"].(string)
			if !ok {
				t.Fatal("Expected timestamp to be present")
			}
			if _, err := time.Parse(time.RFC3339, timestamp); err != nil {
				t.Errorf("Timestamp '%s' is not valid RFC3339: %v", timestamp, err)
			}

			tt.validate(t, body)
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid input")

	resp := w.Result()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if success, ok := body["success"].(bool); !ok || success {
		t.Error("Expected success to be false")
	}
	if errorType, ok := body["error"].(string); !ok || errorType != "Bad Request" {
		t.Errorf("Expected error 'Bad Request', got '%v'", body["error"])
	}
	if msg, ok := body["message"].(string); !ok || msg != "Invalid input" {
		t.Errorf("Expected message 'Invalid input', got '%v'", body["message"])
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Error("Expected timestamp to be present")
	}
}

func TestRespondJSONErrorTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", strings.Repeat("x", 500))

	resp := w.Result()
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	msg, ok := body["message"].(string)
	if !ok {
		t.Fatal("Expected message to be present")
	}
	if len(msg) != 203 || !strings.HasSuffix(msg, "...") {
		t.Errorf("Expected message truncated to 200 chars plus ellipsis, got length %d", len(msg))
	}
}
