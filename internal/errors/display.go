package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// FormatForCLI formats an error for command-line display with proper spacing
func FormatForCLI(err error) string {
	var dispErr *DispatchError
	if !stderrors.As(err, &dispErr) {
		return fmt.Sprintf("\nError: %v\n", err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("\n%s Error [%s-%s]\n", dispErr.Category, dispErr.Category, dispErr.Code))
	sb.WriteString(fmt.Sprintf("  %s\n", dispErr.Message))

	if dispErr.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nFailed Operation: %s\n", dispErr.Operation))
	}

	if len(dispErr.Context) > 0 {
		// Map order is random; keep the banner stable between runs
		keys := make([]string, 0, len(dispErr.Context))
		for key := range dispErr.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", key, dispErr.Context[key]))
		}
	}

	if len(dispErr.Troubleshooting) > 0 {
		sb.WriteString("\nHow to resolve:\n")
		for i, step := range dispErr.Troubleshooting {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	if dispErr.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", dispErr.OriginalError))
	}

	return sb.String()
}

// GetErrorCode extracts the error code for reporting
func GetErrorCode(err error) string {
	var dispErr *DispatchError
	if stderrors.As(err, &dispErr) {
		return fmt.Sprintf("%s-%s", dispErr.Category, dispErr.Code)
	}
	return "UNKNOWN"
}
