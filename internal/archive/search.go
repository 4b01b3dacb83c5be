package archive

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

type searchable []*Record

func (s searchable) String(i int) string {
	return s[i].Title + " " + s[i].Text()
}

func (s searchable) Len() int {
	return len(s)
}

// Search returns the records matching query, best match first. An empty
// query returns records unchanged.
func Search(records []*Record, query string) []*Record {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}

	matches := fuzzy.FindFrom(query, searchable(records))
	out := make([]*Record, 0, len(matches))
	for _, m := range matches {
		out = append(out, records[m.Index])
	}
	return out
}
