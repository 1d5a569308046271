// Package rf2 parses and serialises release rows and release file names.
//
// A release package is a ZIP of tab-delimited text files. Every file carries
// one header line followed by data rows whose first four fields are always
// id, effectiveTime, active and moduleId. File names follow the pattern
//
//	<prefix><ReleaseType><LanguageModifier>_<edition>_<effectiveTime>[T].txt
//
// # Rows
//
// [ParseRow] splits a line into an immutable [Row]. A line that does not carry
// the four leading fields, or whose id is empty, is rejected with
// [ErrMalformedRow]; callers wrap it in a [RowError] that locates the line.
//
// # File names
//
// [FilenameCodec] derives the short key used to match files across archives
// and the effective-time token used to rename them. Release file names are not
// uniform across locale-specific packages, so the language modifier falls back
// to a configured marker when the module token is missing.
//
// # Component types
//
// Component types are registered at init time using [Register], the same way
// record layouts are registered elsewhere in the tool. [ClassifyPrefix] maps a
// file-name prefix to its [ComponentDefinition].
package rf2
