package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryMatch(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		file  string
		want  bool
	}{
		{"exact hit", Query{ExactName: "Health Connect.zip"}, "Health Connect.zip", true},
		{"exact is case sensitive", Query{ExactName: "Health Connect.zip"}, "health connect.zip", false},
		{"keyword hit", Query{Keyword: "health"}, "My_Health_Backup.zip", true},
		{"keyword miss", Query{Keyword: "health"}, "archive.zip", false},
		{"keyword is case insensitive", Query{Keyword: "FIT"}, "fit_export.zip", true},
		{"all zips hit", Query{AllZips: true}, "anything.ZIP", true},
		{"all zips miss", Query{AllZips: true}, "readme.txt", false},
		{"empty query matches nothing", Query{}, "fit_export.zip", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.Match(tt.file))
		})
	}
}

func TestMimeByName(t *testing.T) {
	assert.Equal(t, "application/zip", mimeByName("fit_export.zip"))
	assert.Equal(t, "application/zip", mimeByName("EXPORT.ZIP"))
	assert.Equal(t, "application/x-sqlite3", mimeByName("health.db"))
	assert.Equal(t, "application/x-sqlite3", mimeByName("health.sqlite"))
	assert.Equal(t, "application/xml", mimeByName("export.xml"))
	assert.Equal(t, "application/octet-stream", mimeByName("notes"))
}
