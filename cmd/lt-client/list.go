package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/livetiming/lt-go/pkg/archive"
)

// listQuery is a parsed "list" command. Meeting and session are 1-based
// positions as printed by the previous level.
type listQuery struct {
	kind    string
	year    int
	meeting int
	session int
}

// listArity is the number of arguments each list kind takes.
var listArity = map[string]int{
	"meetings": 1,
	"sessions": 2,
	"topics":   3,
}

func parseListQuery(args []string) (*listQuery, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("list needs one of: meetings YEAR, sessions YEAR MEETING, topics YEAR MEETING SESSION")
	}
	kind := args[0]
	want, ok := listArity[kind]
	if !ok {
		return nil, fmt.Errorf("unknown list kind %q", kind)
	}
	if len(args)-1 != want {
		return nil, fmt.Errorf("list %s takes %d arguments, got %d", kind, want, len(args)-1)
	}

	nums := make([]int, 3)
	for i, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("list %s: %q is not a positive number", kind, a)
		}
		nums[i] = n
	}
	return &listQuery{kind: kind, year: nums[0], meeting: nums[1], session: nums[2]}, nil
}

// listArchive prints the meetings of a season, the sessions of a meeting or
// the topics of a session as a tree.
func listArchive(ctx context.Context, ac *archive.Client, q *listQuery, w io.Writer) error {
	idx, err := ac.YearIndex(ctx, q.year)
	if err != nil {
		return err
	}

	switch q.kind {
	case "meetings":
		fmt.Fprintf(w, "Season %d\n", q.year)
		names := make([]string, len(idx.Meetings))
		for i, m := range idx.Meetings {
			names[i] = fmt.Sprintf("%d - %s", i+1, m.Name)
		}
		printTree(w, names)

	case "sessions":
		if q.meeting > len(idx.Meetings) {
			return fmt.Errorf("%w: meeting %d of %d in %d", archive.ErrNoSession, q.meeting, len(idx.Meetings), q.year)
		}
		m := idx.Meetings[q.meeting-1]
		fmt.Fprintf(w, "%s (%d)\n", m.Name, q.year)
		names := make([]string, len(m.Sessions))
		for i, s := range m.Sessions {
			names[i] = fmt.Sprintf("%d - %s", i+1, s.Name)
			if s.Path == "" {
				names[i] += " (not archived)"
			}
		}
		printTree(w, names)

	case "topics":
		m, s, err := idx.SessionAt(q.meeting, q.session)
		if err != nil {
			return err
		}
		si, err := ac.SessionIndex(ctx, idx.SessionPath(m, s))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (%d) - %s\n", m.Name, q.year, s.Name)
		printTree(w, si.Topics())
	}
	return nil
}

func printTree(w io.Writer, items []string) {
	for i, it := range items {
		branch := "├"
		if i == len(items)-1 {
			branch = "└"
		}
		fmt.Fprintf(w, "%s %s\n", branch, it)
	}
}

// sessionNumbers splits an --archive argument of the form YEAR/KEY or
// YEAR/MEETING/SESSION. Anything else is an archive path.
func sessionNumbers(arg string) ([]int, bool) {
	parts := strings.Split(strings.Trim(arg, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, false
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, false
		}
		nums[i] = n
	}
	return nums, true
}
