// Package core runs release package merges.
//
// This package ties the archive, delta and merge packages together into the
// two operations the command line exposes. It has no knowledge of flags or
// terminals, so tests drive it directly.
//
// # Operations
//
// [Service.ApplyDelta] folds a delta archive into a full release package:
//
//  1. The target effective time and package directory are resolved from the
//     request, the configuration or the archive names
//  2. The delta (and optional primary-locale delta) are indexed concurrently
//  3. Every base member is streamed to a temporary archive, with Snapshot
//     rows replaced and Delta/Full rows appended
//  4. The temporary archive is moved into place only when every member
//     succeeded
//
// [Service.MergeFix] reconciles a fix delta with the current delta:
//
//	report, err := svc.MergeFix(ctx, core.FixRequest{
//	    Current:         "current_20180131.zip",
//	    Fix:             "fix_20180131.zip",
//	    Out:             "merged/fix_20180131.zip",
//	    PublishedBefore: "20180131",
//	    Baseline:        "published_20170731.zip",
//	})
//
// Without a Baseline the configured [component.Source] supplies the last
// published values.
//
// # Error Handling
//
// Each run reports a single [RunError] carrying the archive, member and line
// of the offending row when known. [MapError] turns it into a coded message:
//
//   - RUN001-RUN002: Cancellation and timeouts
//   - ARC001-ARC003: Unreadable archives and members
//   - ROW001, IDX001-IDX002: Malformed rows and duplicate ids
//   - BAS001-BAS004: Field comparison baselines
//   - OUT001: Output archive
//   - CFG001-CFG002, DB001-DB002: Configuration and database
//
// # Audit Logging
//
// Merge decisions worth review are recorded through an [audit.Recorder]:
//
//   - Low: Fixes accepted and timestamp-only merges
//   - Medium: Field merges, withheld locales, regional overrides, unmerged content
//   - High: Reversions discarded and rows dropped
package core
