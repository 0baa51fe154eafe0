package automation

import (
	"fmt"
	"log"
	"sort"

	"relayengine/internal/models"
)

// Boundary is a time of day at which a schedule trigger may change state
type Boundary struct {
	Hour   int
	Minute int
}

// ExtractBoundaries collects the state-change instants of a rule's schedule triggers.
// Malformed times are skipped; the periodic sweep still covers those rules.
func ExtractBoundaries(rule models.Rule) []Boundary {
	var out []Boundary
	for _, g := range rule.TriggerGroups {
		for _, t := range g.Triggers {
			if t.TriggerType != models.TriggerSchedule {
				continue
			}
			switch t.ScheduleType {
			case models.ScheduleDaily:
				// weekday filters flip at midnight
				out = append(out, Boundary{0, 0})
			case models.ScheduleTimeRange:
				start, err1 := models.ParseClock(t.StartTime)
				end, err2 := models.ParseClock(t.EndTime)
				if err1 != nil || err2 != nil {
					log.Printf("TIME_EXTRACTOR: Skipping malformed time range %q-%q in rule %s", t.StartTime, t.EndTime, rule.ID)
					continue
				}
				// end is inclusive, the window closes one minute later
				out = append(out, boundaryAt(start.Minutes()), boundaryAt(end.Minutes()+1))
			case models.ScheduleSpecificTime:
				at, err := models.ParseClock(t.SpecificTime)
				if err != nil {
					log.Printf("TIME_EXTRACTOR: Skipping malformed specific time %q in rule %s", t.SpecificTime, rule.ID)
					continue
				}
				out = append(out, boundaryAt(at.Minutes()), boundaryAt(at.Minutes()+2))
			}
		}
	}
	return out
}

func boundaryAt(minutes int) Boundary {
	minutes = ((minutes % 1440) + 1440) % 1440
	return Boundary{Hour: minutes / 60, Minute: minutes % 60}
}

// ConvertToCronExpression converts a boundary to a standard 5-field cron expression.
// The weekday field is left open; an evaluation on an inactive day is a no-op.
func ConvertToCronExpression(b Boundary) string {
	return fmt.Sprintf("%d %d * * *", b.Minute, b.Hour)
}

// BoundarySpecs returns the distinct cron expressions for all schedule-only rules, sorted
func BoundarySpecs(rules []models.Rule) []string {
	seen := make(map[string]bool)
	var specs []string
	for _, r := range rules {
		if !r.Enabled || !r.IsScheduleOnly() {
			continue
		}
		for _, b := range ExtractBoundaries(r) {
			spec := ConvertToCronExpression(b)
			if seen[spec] {
				continue
			}
			seen[spec] = true
			specs = append(specs, spec)
		}
	}
	sort.Strings(specs)
	return specs
}
