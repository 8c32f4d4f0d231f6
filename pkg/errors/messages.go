package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	// Check for ConfigError
	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	// Check for AIError
	var aiErr *AIError
	if As(err, &aiErr) {
		return formatAIError(aiErr)
	}

	// Check for StoreError
	var storeErr *StoreError
	if As(err, &storeErr) {
		return formatStoreError(storeErr)
	}

	// Check for DataError
	var dataErr *DataError
	if As(err, &dataErr) {
		return formatDataError(dataErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/stride/config.toml\n")
	b.WriteString("  • Or set the matching STRIDE_* environment variable\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatAIError formats an AIError with actionable guidance based on status code.
func formatAIError(err *AIError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AI provider error (%s) during %s: %s\n", err.Provider, err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		fmt.Fprintf(&b, "\nAuthentication failed with %s. To fix this:\n", err.Provider)
		b.WriteString("  • Set the provider API key in ~/.config/stride/config.toml\n")
		b.WriteString("  • Or set the appropriate API key environment variable\n")
		b.WriteString("  • Verify your API key is valid and not expired\n")

	case 403:
		fmt.Fprintf(&b, "\nAccess denied by %s. To fix this:\n", err.Provider)
		b.WriteString("  • Check your API key permissions\n")
		b.WriteString("  • Ensure the model you're using is available to your account tier\n")

	case 429:
		fmt.Fprintf(&b, "\n%s rate limit exceeded. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Reduce analysis frequency or disable AI enhancement\n")

	case 500, 502, 503, 504:
		fmt.Fprintf(&b, "\n%s server error. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check the provider's status page\n")
	}

	b.WriteString("\nSuggestions are still generated without AI enhancement.\n")

	if err.Retryable {
		b.WriteString("This error may be temporary. The call is retried automatically before falling back.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatStoreError formats a StoreError with actionable guidance.
func formatStoreError(err *StoreError) string {
	var b strings.Builder

	if err.Operation != "" {
		fmt.Fprintf(&b, "Storage error during %s: %s\n", err.Operation, err.Message)
	} else {
		fmt.Fprintf(&b, "Storage error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check the storage.path (sqlite) or storage.dsn (postgres) setting\n")
	b.WriteString("  • Ensure the database file or server is reachable and writable\n")
	b.WriteString("  • Run 'stride seed' to initialize a fresh demo database\n")

	if err.Retryable {
		b.WriteString("\nThis error may be temporary. You can try running the command again.\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatDataError formats a DataError with actionable guidance.
func formatDataError(err *DataError) string {
	var b strings.Builder

	if err.BoardID != "" {
		fmt.Fprintf(&b, "Board data error (%s) for board %s: %s\n", err.Source, err.BoardID, err.Message)
	} else {
		fmt.Fprintf(&b, "Board data error (%s): %s\n", err.Source, err.Message)
	}

	b.WriteString("\nTo troubleshoot:\n")
	b.WriteString("  • Verify the board ID with 'stride boards'\n")
	b.WriteString("  • Check that the board has velocity history ('stride seed' loads demo data)\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
