package archive

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// YearIndex lists the meetings of a season.
type YearIndex struct {
	Year     int       `json:"Year"`
	Meetings []Meeting `json:"Meetings"`
}

// Meeting is one race weekend.
type Meeting struct {
	Key          int       `json:"Key"`
	Code         string    `json:"Code,omitempty"`
	Number       int       `json:"Number"`
	Location     string    `json:"Location"`
	OfficialName string    `json:"OfficialName"`
	Name         string    `json:"Name"`
	Country      Country   `json:"Country"`
	Circuit      Circuit   `json:"Circuit"`
	Sessions     []Session `json:"Sessions"`
}

// Country of a meeting.
type Country struct {
	Key  int    `json:"Key"`
	Code string `json:"Code"`
	Name string `json:"Name"`
}

// Circuit of a meeting.
type Circuit struct {
	Key       int    `json:"Key"`
	ShortName string `json:"ShortName"`
}

// Session is one on-track session of a meeting.
type Session struct {
	Key       int    `json:"Key"`
	Type      string `json:"Type"`
	Number    int    `json:"Number,omitempty"`
	Name      string `json:"Name"`
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`

	// GmtOffset is the local offset of StartDate and EndDate, "03:00:00"
	// or "-05:00:00".
	GmtOffset string `json:"GmtOffset"`

	// Path is the session directory relative to the archive root. Empty
	// until the session has been archived.
	Path string `json:"Path,omitempty"`
}

// localLayout is the layout of StartDate and EndDate.
const localLayout = "2006-01-02T15:04:05"

// Start returns the session start in UTC.
func (s Session) Start() (time.Time, error) {
	return s.utc(s.StartDate)
}

// End returns the session end in UTC.
func (s Session) End() (time.Time, error) {
	return s.utc(s.EndDate)
}

func (s Session) utc(local string) (time.Time, error) {
	offset, err := parseOffset(s.GmtOffset)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(localLayout, local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: session %d date %q", ErrInvalidIndex, s.Key, local)
	}
	return t.Add(-offset), nil
}

func parseOffset(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	neg := strings.HasPrefix(s, "-")
	d, err := parseClock(strings.TrimPrefix(s, "-"))
	if err != nil {
		return 0, fmt.Errorf("%w: gmt offset %q", ErrInvalidIndex, s)
	}
	if neg {
		d = -d
	}
	return d, nil
}

// SessionIndex lists the topic files of one session.
type SessionIndex struct {
	Feeds map[string]Feed `json:"Feeds"`
}

// Topics returns the recorded topic names, sorted.
func (s SessionIndex) Topics() []string {
	names := make([]string, 0, len(s.Feeds))
	for name := range s.Feeds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Feed names a topic's files within the session directory.
type Feed struct {
	// KeyFramePath is the topic's final state.
	KeyFramePath string `json:"KeyFramePath"`

	// StreamPath is the topic's message stream.
	StreamPath string `json:"StreamPath"`
}

// LastSession returns the most recent archived session that started before
// now, with its meeting.
func (y YearIndex) LastSession(now time.Time) (Meeting, Session, bool) {
	var (
		bestMeeting Meeting
		bestSession Session
		bestStart   time.Time
		found       bool
	)
	for _, m := range y.Meetings {
		for _, s := range m.Sessions {
			if s.Path == "" {
				continue
			}
			start, err := s.Start()
			if err != nil || start.After(now) {
				continue
			}
			if !found || start.After(bestStart) {
				bestMeeting, bestSession, bestStart, found = m, s, start, true
			}
		}
	}
	return bestMeeting, bestSession, found
}

// FindSession returns the session with the given key.
func (y YearIndex) FindSession(key int) (Meeting, Session, bool) {
	for _, m := range y.Meetings {
		for _, s := range m.Sessions {
			if s.Key == key {
				return m, s, true
			}
		}
	}
	return Meeting{}, Session{}, false
}

// SessionAt returns a session by its 1-based position in the index: the
// meeting's position in the season, then the session's within the meeting.
func (y YearIndex) SessionAt(meeting, session int) (Meeting, Session, error) {
	if meeting < 1 || meeting > len(y.Meetings) {
		return Meeting{}, Session{}, fmt.Errorf("%w: meeting %d of %d in %d", ErrNoSession, meeting, len(y.Meetings), y.Year)
	}
	m := y.Meetings[meeting-1]
	if session < 1 || session > len(m.Sessions) {
		return Meeting{}, Session{}, fmt.Errorf("%w: session %d of %d in %s", ErrNoSession, session, len(m.Sessions), m.Name)
	}
	return m, m.Sessions[session-1], nil
}

// SessionPath returns the archive directory of a session of m. Sessions
// listed before the archive caught up carry no Path; theirs is derived the
// way the archive names directories: the meeting's last session date and
// name, then the session's date and name, spaces replaced by underscores.
func (y YearIndex) SessionPath(m Meeting, s Session) string {
	if s.Path != "" {
		return s.Path
	}
	meetingDate := ""
	if len(m.Sessions) > 0 {
		meetingDate = datePart(m.Sessions[len(m.Sessions)-1].StartDate)
	}
	path := fmt.Sprintf("%d/%s %s/%s %s/", y.Year, meetingDate, m.Name, datePart(s.StartDate), s.Name)
	return strings.ReplaceAll(path, " ", "_")
}

func datePart(local string) string {
	date, _, _ := strings.Cut(local, "T")
	return date
}
