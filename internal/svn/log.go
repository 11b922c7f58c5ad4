package svn

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Revision is one commit on the source branch as reported by svn log.
// Identity is the revision number; the rest is metadata for matching and
// reporting.
type Revision struct {
	Number  int64
	Author  string
	Message string
	Date    time.Time
}

func (r Revision) String() string {
	return fmt.Sprintf("r%d", r.Number)
}

// svn log --xml document structure
type logXML struct {
	XMLName xml.Name      `xml:"log"`
	Entries []logEntryXML `xml:"logentry"`
}

type logEntryXML struct {
	Revision int64  `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Msg      string `xml:"msg"`
}

// ParseLogXML parses the output of `svn log --xml` into revisions, ascending
// by revision number regardless of the range direction the log was asked for.
func ParseLogXML(data string) ([]Revision, error) {
	var doc logXML
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse svn log output: %w", err)
	}

	revisions := make([]Revision, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		rev := Revision{
			Number:  entry.Revision,
			Author:  entry.Author,
			Message: strings.TrimSpace(entry.Msg),
		}
		// Some servers omit the date for revision 0 or admin-created
		// revisions; a zero time is acceptable there.
		if entry.Date != "" {
			if t, err := time.Parse(time.RFC3339Nano, entry.Date); err == nil {
				rev.Date = t
			}
		}
		revisions = append(revisions, rev)
	}

	sort.Slice(revisions, func(i, j int) bool {
		return revisions[i].Number < revisions[j].Number
	})

	return revisions, nil
}
