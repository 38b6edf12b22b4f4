package changes

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// idPattern is CR-YYMMDD-NNN.
var idPattern = regexp.MustCompile(`^CR-(\d{6})-(\d{3})$`)

// maxDailySequence is the largest sequence number an id can carry.
const maxDailySequence = 999

// ValidateID returns an error unless id has the CR-YYMMDD-NNN shape.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid change request id %q: expected CR-YYMMDD-NNN", id)
	}
	return nil
}

// NextID returns the id following the highest sequence among existing for
// the UTC calendar day of now, the same clock that stamps created and
// history. Ids of other days and malformed ids are ignored.
func NextID(existing []string, now time.Time) (string, error) {
	day := now.UTC().Format("060102")
	highest := 0
	for _, id := range existing {
		m := idPattern.FindStringSubmatch(id)
		if m == nil || m[1] != day {
			continue
		}
		seq, _ := strconv.Atoi(m[2])
		if seq > highest {
			highest = seq
		}
	}
	if highest >= maxDailySequence {
		return "", fmt.Errorf("change request sequence exhausted for %s", day)
	}
	return fmt.Sprintf("CR-%s-%03d", day, highest+1), nil
}
