// Package core orchestrates merge runs.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When a run fails, the CLI prints the mapped message so operators can quote the
// code when asking for help.
//
// Error codes are grouped by category:
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run cancelled: The run was interrupted
//	         Patterns: "context canceled", "operation cancelled"
//
//	RUN002 - Run timed out: The run exceeded MERGE_TIMEOUT
//	         Patterns: "context deadline exceeded"
//
// # Archive Errors (ARC001-ARC099)
//
//	ARC001 - Not a ZIP file: The archive is corrupt or incomplete
//	         Patterns: "not a valid zip file"
//
//	ARC002 - Archive unreadable: The archive could not be opened
//	         Patterns: "open archive"
//
//	ARC003 - Member unreadable: A file inside the archive could not be read
//	         Patterns: "open member", "copy member"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Malformed row: A line lacks the four leading fields or an id
//	         Patterns: "malformed row"
//
// # Index Errors (IDX001-IDX099)
//
//	IDX001 - Duplicate id: One id appears twice for one file type
//	         Patterns: "duplicate row"
//
//	IDX002 - Conflicting baseline: One id appears in two baseline files
//	         Patterns: "appears in both"
//
// # Naming Errors (NAM001-NAM099)
//
//	NAM001 - No effective time: A name lacks its YYYYMMDD token
//	         Patterns: "no effective time"
//
// # Baseline Errors (BAS001-BAS099)
//
//	BAS001 - No baseline: A field comparison needs published values
//	         Patterns: "no baseline configured"
//
//	BAS002 - Field count mismatch: Fix and current rows have different shapes
//	         Patterns: "differ in field count"
//
//	BAS003 - Cutoff missing: The reversion cutoff is absent or invalid
//	         Patterns: "published-before"
//
//	BAS004 - Baseline unavailable: Published values could not be read
//	         Patterns: "load baseline", "baseline lookup"
//
// # Output Errors (OUT001-OUT099)
//
//	OUT001 - Output not written: The merged package could not be saved
//	         Patterns: "create output dir", "create temp archive", "finish archive",
//	         "sync archive", "move archive into place"
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid configuration: One or more settings are invalid
//	         Patterns: "invalid configuration", "config load"
//
//	CFG002 - Release profile: The profile could not be read
//	         Patterns: "release profile"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB002 - Connection failed: The database rejected the connection
//	        Patterns: "connect to database", "ping database", "parse database url"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the log for the original
// technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Run Errors (RUN001-RUN002)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Partial output was removed. Start the run again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "operation cancelled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Partial output was removed. Start the run again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Raise MERGE_TIMEOUT or set it to 0 to disable the limit",
			Code:    "RUN002",
		},
	},

	// =========================================================================
	// Archive Errors (ARC001)
	// Checked before row errors: a corrupt container hides every row.
	// =========================================================================
	{
		pattern: "not a valid zip file",
		msg: UserMessage{
			Message: "The archive is not a valid ZIP file",
			Action:  "Check the file was copied completely and is a release package",
			Code:    "ARC001",
		},
	},

	// =========================================================================
	// Row and Index Errors (ROW001, IDX001-IDX002)
	// =========================================================================
	{
		pattern: "malformed row",
		msg: UserMessage{
			Message: "A row could not be parsed",
			Action:  "Fix the line named in the error. Every row needs id, effectiveTime, active and moduleId",
			Code:    "ROW001",
		},
	},
	{
		pattern: "duplicate row",
		msg: UserMessage{
			Message: "The same component id appears twice in one file",
			Action:  "Remove the duplicate row named in the error and run again",
			Code:    "IDX001",
		},
	},
	{
		pattern: "appears in both",
		msg: UserMessage{
			Message: "A component appears in two baseline files",
			Action:  "Check the baseline package is a single consistent Snapshot",
			Code:    "IDX002",
		},
	},

	// =========================================================================
	// Naming Errors (NAM001)
	// =========================================================================
	{
		pattern: "no effective time",
		msg: UserMessage{
			Message: "No effective time found in a file name",
			Action:  "Pass --effective-time, or make sure archive and file names carry a YYYYMMDD date",
			Code:    "NAM001",
		},
	},

	// =========================================================================
	// Baseline Errors (BAS001-BAS004)
	// =========================================================================
	{
		pattern: "no baseline configured",
		msg: UserMessage{
			Message: "Published values are needed to compare fields",
			Action:  "Pass --baseline with the last published Snapshot package, or set DATABASE_URL",
			Code:    "BAS001",
		},
	},
	{
		pattern: "differ in field count",
		msg: UserMessage{
			Message: "Fix and current rows have a different number of fields",
			Action:  "Check both deltas were exported with the same file layout",
			Code:    "BAS002",
		},
	},
	{
		pattern: "published-before",
		msg: UserMessage{
			Message: "The reversion cutoff is missing or invalid",
			Action:  "Pass --published-before YYYYMMDD or set MERGE_PUBLISHED_BEFORE",
			Code:    "BAS003",
		},
	},
	{
		pattern: "load baseline",
		msg: UserMessage{
			Message: "The baseline package could not be read",
			Action:  "Check the --baseline path points to a Snapshot release package",
			Code:    "BAS004",
		},
	},
	{
		pattern: "baseline lookup",
		msg: UserMessage{
			Message: "Published values could not be read",
			Action:  "Check the database is reachable and the component_values table exists",
			Code:    "BAS004",
		},
	},

	// =========================================================================
	// Archive Access Errors (ARC002-ARC003)
	// =========================================================================
	{
		pattern: "open archive",
		msg: UserMessage{
			Message: "The archive could not be opened",
			Action:  "Check the path exists and is readable",
			Code:    "ARC002",
		},
	},
	{
		pattern: "open member",
		msg: UserMessage{
			Message: "A file inside the archive could not be read",
			Action:  "The archive may be corrupt. Obtain a fresh copy",
			Code:    "ARC003",
		},
	},
	{
		pattern: "copy member",
		msg: UserMessage{
			Message: "A file inside the archive could not be read",
			Action:  "The archive may be corrupt. Obtain a fresh copy",
			Code:    "ARC003",
		},
	},

	// =========================================================================
	// Output Errors (OUT001)
	// =========================================================================
	{
		pattern: "create output dir",
		msg:     outputMessage,
	},
	{
		pattern: "create temp archive",
		msg:     outputMessage,
	},
	{
		pattern: "finish archive",
		msg:     outputMessage,
	},
	{
		pattern: "sync archive",
		msg:     outputMessage,
	},
	{
		pattern: "move archive into place",
		msg:     outputMessage,
	},

	// =========================================================================
	// Configuration Errors (CFG001-CFG002)
	// =========================================================================
	{
		pattern: "release profile",
		msg: UserMessage{
			Message: "The release profile could not be read",
			Action:  "Check the --profile path and that it only uses known keys",
			Code:    "CFG002",
		},
	},
	{
		pattern: "invalid configuration",
		msg: UserMessage{
			Message: "One or more settings are invalid",
			Action:  "Fix the settings listed in the error",
			Code:    "CFG001",
		},
	},
	{
		pattern: "config load",
		msg: UserMessage{
			Message: "One or more settings are invalid",
			Action:  "Fix the settings listed in the error",
			Code:    "CFG001",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB002)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check the database is running, or unset DATABASE_URL to run without it",
			Code:    "DB001",
		},
	},
	{
		pattern: "connect to database",
		msg:     databaseMessage,
	},
	{
		pattern: "ping database",
		msg:     databaseMessage,
	},
	{
		pattern: "parse database url",
		msg:     databaseMessage,
	},
}

var outputMessage = UserMessage{
	Message: "The merged package could not be written",
	Action:  "Check free disk space and permissions on the output directory",
	Code:    "OUT001",
}

var databaseMessage = UserMessage{
	Message: "The database rejected the connection",
	Action:  "Check DATABASE_URL and the database credentials",
	Code:    "DB002",
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for details",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := errors.New("duplicate row: id 100 appears twice for sct2_Concept_")
//	msg := MapError(err)
//	// msg.Code == "IDX001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}
