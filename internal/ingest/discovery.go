package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/primary-workspace/pulseai-hackshodh/internal/source"
)

// Known export archive names, probed before any fuzzy matching. Health
// Connect names come first; Fit takeout names follow.
var exactNames = []string{
	"Health Connect.zip",
	"health_connect_export.zip",
	"fit_export.zip",
	"Google Fit.zip",
}

// Keyword passes after the exact names miss or to pick up renamed exports.
var keywords = []string{"health", "fit"}

// A bare .zip from the final catch-all pass is only a candidate when its
// name hints at health data.
var zipNameHints = []string{"health", "fit", "wear", "vital", "medical", "export"}

// discover walks the query ladder and returns the deduplicated candidate
// list in first-seen order. Any listing failure aborts discovery; partial
// candidate sets would make skip bookkeeping misleading.
func (c *Coordinator) discover(ctx context.Context, userID int64) ([]source.File, error) {
	var out []source.File
	seen := make(map[string]bool)
	add := func(files []source.File, keep func(source.File) bool) {
		for _, f := range files {
			if seen[f.ID] {
				continue
			}
			if keep != nil && !keep(f) {
				continue
			}
			seen[f.ID] = true
			out = append(out, f)
		}
	}

	for _, name := range exactNames {
		files, err := c.src.ListFiles(ctx, userID, source.Query{ExactName: name})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: list %q", name)
		}
		add(files, nil)
	}
	for _, kw := range keywords {
		files, err := c.src.ListFiles(ctx, userID, source.Query{Keyword: kw})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: list keyword %q", kw)
		}
		add(files, nil)
	}
	files, err := c.src.ListFiles(ctx, userID, source.Query{AllZips: true})
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list archives")
	}
	add(files, func(f source.File) bool { return healthRelated(f.Name) })

	return out, nil
}

func healthRelated(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range zipNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
