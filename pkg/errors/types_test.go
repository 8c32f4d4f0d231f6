package errors

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestStoreError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *StoreError
		expected string
	}{
		{
			name: "with operation",
			err: &StoreError{
				Operation: "UpsertSnapshot",
				Message:   "period bounds collide",
			},
			expected: "store UpsertSnapshot failed: period bounds collide",
		},
		{
			name: "without operation",
			err: &StoreError{
				Message: "database connection failed",
			},
			expected: "store error: database connection failed",
		},
		{
			name: "empty message",
			err: &StoreError{
				Operation: "SyncAlerts",
				Message:   "",
			},
			expected: "store SyncAlerts failed: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")

	tests := []struct {
		name     string
		err      *StoreError
		hasCause bool
	}{
		{
			name: "with cause",
			err: &StoreError{
				Operation: "InsertFeedback",
				Message:   "failed",
				Cause:     cause,
			},
			hasCause: true,
		},
		{
			name: "without cause",
			err: &StoreError{
				Operation: "InsertFeedback",
				Message:   "failed",
			},
			hasCause: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unwrapped := tt.err.Unwrap()
			if tt.hasCause {
				if unwrapped != cause {
					t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
				}
			} else {
				if unwrapped != nil {
					t.Errorf("Unwrap() = %v, want nil", unwrapped)
				}
			}
		})
	}
}

func TestStoreError_ErrorsAs(t *testing.T) {
	storeErr := &StoreError{
		Operation: "ListSuggestions",
		Message:   "bad query",
	}

	// Wrap the error to test errors.As traversal
	wrappedErr := errors.Wrap(storeErr, "analysis pass failed")

	var target *StoreError
	if !errors.As(wrappedErr, &target) {
		t.Error("errors.As() should find StoreError in wrapped error chain")
	}

	if target.Operation != "ListSuggestions" {
		t.Errorf("Operation = %q, want %q", target.Operation, "ListSuggestions")
	}
}

func TestStoreError_ErrorsIs(t *testing.T) {
	sentinelErr := errors.New("sentinel error")
	storeErr := &StoreError{
		Operation: "UpsertInsight",
		Message:   "failed",
		Cause:     sentinelErr,
	}

	// errors.Is should find the sentinel in the chain
	if !errors.Is(storeErr, sentinelErr) {
		t.Error("errors.Is() should find sentinel error through Unwrap chain")
	}
}

func TestAIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AIError
		expected string
	}{
		{
			name: "with status code",
			err: &AIError{
				Provider:   "anthropic",
				Operation:  "Chat",
				StatusCode: 429,
				Message:    "rate limited",
			},
			expected: "ai anthropic Chat failed (HTTP 429): rate limited",
		},
		{
			name: "without status code",
			err: &AIError{
				Provider:  "ollama",
				Operation: "Chat",
				Message:   "connection refused",
			},
			expected: "ai ollama Chat failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestNewAIErrorWithStatus(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		wantRetryable bool
	}{
		{name: "timeout is retryable", statusCode: 408, wantRetryable: true},
		{name: "rate limit is retryable", statusCode: 429, wantRetryable: true},
		{name: "server error is retryable", statusCode: 500, wantRetryable: true},
		{name: "bad gateway is retryable", statusCode: 502, wantRetryable: true},
		{name: "unavailable is retryable", statusCode: 503, wantRetryable: true},
		{name: "gateway timeout is retryable", statusCode: 504, wantRetryable: true},
		{name: "unauthorized is not retryable", statusCode: 401, wantRetryable: false},
		{name: "bad request is not retryable", statusCode: 400, wantRetryable: false},
		{name: "not found is not retryable", statusCode: 404, wantRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAIErrorWithStatus("anthropic", "Chat", tt.statusCode, "boom")
			if err.Retryable != tt.wantRetryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.wantRetryable)
			}
			if err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestDataError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DataError
		expected string
	}{
		{
			name: "with board ID",
			err: &DataError{
				Source:  "snapshots",
				BoardID: "board-7",
				Message: "query failed",
			},
			expected: "data source snapshots for board board-7 failed: query failed",
		},
		{
			name: "without board ID",
			err: &DataError{
				Source:  "tasks",
				Message: "query failed",
			},
			expected: "data source tasks failed: query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.err.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	withField := NewConfigError("storage.driver", "unknown driver")
	if got, want := withField.Error(), "config error in storage.driver: unknown driver"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withoutField := NewConfigError("", "config file unreadable")
	if got, want := withoutField.Error(), "config error: config file unreadable"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("plain"),
			want: false,
		},
		{
			name: "retryable AI error",
			err:  NewAIErrorWithStatus("anthropic", "Chat", 503, "unavailable"),
			want: true,
		},
		{
			name: "non-retryable AI error",
			err:  NewAIErrorWithStatus("anthropic", "Chat", 401, "bad key"),
			want: false,
		},
		{
			name: "wrapped retryable AI error",
			err:  errors.Wrap(NewAIErrorWithStatus("ollama", "Chat", 500, "boom"), "enhance failed"),
			want: true,
		},
		{
			name: "retryable store error",
			err:  &StoreError{Operation: "SyncAlerts", Message: "database locked", Retryable: true},
			want: true,
		},
		{
			name: "non-retryable store error",
			err:  NewStoreError("OpenStore", "bad dsn"),
			want: false,
		},
		{
			name: "store error inheriting retryable cause",
			err:  NewStoreErrorWithCause("SyncAlerts", "upsert failed", NewAIErrorWithStatus("anthropic", "Chat", 502, "gw")),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTypePredicates(t *testing.T) {
	configErr := NewConfigError("ai.provider", "unknown provider")
	aiErr := NewAIError("anthropic", "Chat", "boom")
	storeErr := NewStoreError("OpenStore", "boom")
	dataErr := NewDataError("scope", "board-1", "boom")

	if !IsConfigError(errors.Wrap(configErr, "wrapped")) {
		t.Error("IsConfigError() should match wrapped ConfigError")
	}
	if !IsAIError(errors.Wrap(aiErr, "wrapped")) {
		t.Error("IsAIError() should match wrapped AIError")
	}
	if !IsStoreError(errors.Wrap(storeErr, "wrapped")) {
		t.Error("IsStoreError() should match wrapped StoreError")
	}
	if !IsDataError(errors.Wrap(dataErr, "wrapped")) {
		t.Error("IsDataError() should match wrapped DataError")
	}

	if IsConfigError(aiErr) {
		t.Error("IsConfigError() should not match AIError")
	}
	if IsAIError(storeErr) {
		t.Error("IsAIError() should not match StoreError")
	}
	if IsDataError(errors.New("plain")) {
		t.Error("IsDataError() should not match plain error")
	}
}
