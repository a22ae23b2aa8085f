package model

import "time"

// Study categories a day can log time against. Fixed set, never user-defined.
const (
	CategoryDSA        = "dsa"
	CategoryBackend    = "backend"
	CategoryCollege    = "college"
	CategoryEnglish    = "english"
	CategoryBlockchain = "blockchain"
)

const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusPaused  = "paused"
)

const (
	DefaultTotalDays = 180
	DefaultCategory  = CategoryDSA
)

var StudyCategories = []string{
	CategoryDSA,
	CategoryBackend,
	CategoryCollege,
	CategoryEnglish,
	CategoryBlockchain,
}

func IsValidCategory(category string) bool {
	for _, c := range StudyCategories {
		if c == category {
			return true
		}
	}
	return false
}

func EmptyCategorySeconds() map[string]int {
	out := make(map[string]int, len(StudyCategories))
	for _, c := range StudyCategories {
		out[c] = 0
	}
	return out
}

func EmptyCategoryChecks() map[string]bool {
	out := make(map[string]bool, len(StudyCategories))
	for _, c := range StudyCategories {
		out[c] = false
	}
	return out
}

// DayRecord is one slot of the fixed-length challenge. Rows are seeded once
// per user and never deleted; once Completed is set the record is terminal.
type DayRecord struct {
	UserID             string          `json:"-"`
	DayNumber          int             `json:"dayNumber"`
	Date               time.Time       `json:"date"`
	Categories         map[string]bool `json:"categories"`
	CategorySeconds    map[string]int  `json:"categorySecondsLogged"`
	Notes              string          `json:"notes"`
	Reflection         string          `json:"reflection"`
	WeeklyReflection   string          `json:"weeklyReflection"`
	RevisionMarked     bool            `json:"revisionMarked"`
	ManualHoursLogged  float64         `json:"manualHoursLogged"`
	TimerSecondsLogged int             `json:"timerSecondsLogged"`
	Completed          bool            `json:"completed"`
	Locked             bool            `json:"locked"`
	LockedAt           *time.Time      `json:"lockedAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// TimerSession is the single live accrual session per user. AccumulatedSeconds
// holds time not yet merged into a day record; while running, effective elapsed
// time is computed lazily from StartedAt rather than persisted per tick.
type TimerSession struct {
	UserID             string     `json:"-"`
	DayNumber          int        `json:"dayNumber"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	AccumulatedSeconds int        `json:"accumulatedSeconds"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}
