package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/releasemerge/internal/core"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"github.com/stretchr/testify/assert"
)

func TestReportFailure(t *testing.T) {
	rowErr := &rf2.RowError{Archive: "delta_20180131.zip", Member: "sct2_Concept_Delta_INT_20180131.txt", Line: 12, Err: rf2.ErrMalformedRow}

	tests := []struct {
		name     string
		err      error
		contains []string
		absent   string
	}{
		{
			name: "row failure carries its location",
			err: &core.RunError{
				Op:      core.OpApplyDelta,
				Archive: rowErr.Archive,
				Member:  rowErr.Member,
				Line:    rowErr.Line,
				Err:     fmt.Errorf("load delta: %w", rowErr),
			},
			contains: []string{
				"(Code: ROW001)",
				"  at delta_20180131.zip: sct2_Concept_Delta_INT_20180131.txt line 12\n",
				"  cause: apply-delta failed: load delta:",
			},
		},
		{
			name:     "failure without a row",
			err:      &core.RunError{Op: core.OpMergeFix, Err: errors.New("published-before cutoff is required")},
			contains: []string{"(Code: BAS003)", "  cause: merge-fix failed: published-before cutoff is required\n"},
			absent:   "  at ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			reportFailure(&buf, tt.err)

			out := buf.String()
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			if tt.absent != "" {
				assert.NotContains(t, out, tt.absent)
			}
		})
	}
}
