// Package listview derives the rendered ticket list from a snapshot of
// tickets plus ephemeral view state. Derivation is pure: it never mutates
// the input slice and never talks to the store.
package listview

import (
	"sort"
	"strings"
	"time"

	"github.com/desk-kit/support-desk/internal/domain"
)

// Row is the list-facing shape of one ticket.
type Row struct {
	ID        string
	Subject   string
	Requester string
	Status    domain.TicketStatus
	Priority  domain.TicketPriority
	CreatedAt time.Time
}

// Field names a sortable/filterable column.
type Field string

const (
	FieldSubject   Field = "subject"
	FieldRequester Field = "requester"
	FieldStatus    Field = "status"
	FieldPriority  Field = "priority"
	FieldCreatedAt Field = "created_at"
)

// Direction of an explicit sort.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sort is the single active column sort. A zero Sort means no explicit
// sort: rows keep their incoming order until partitioning applies its
// defaults.
type Sort struct {
	Field     Field
	Direction Direction
}

func (s Sort) active() bool { return s.Field != "" }

// State is the ephemeral view state: search text, the active sort, and
// per-column accepted-value sets. A column with no entry in Filters is
// unfiltered. FieldCreatedAt filter values are calendar days in
// "2006-01-02" form and match by day, not by instant.
type State struct {
	Search  string
	Sort    Sort
	Filters map[Field][]string
}

// View is the derived result: active tickets and a separate closed
// section.
type View struct {
	Active []Row
	Closed []Row
}

// Ordering precedence for the active section, applied in Derive:
//  1. an explicit State.Sort orders the whole section and suppresses
//     priority bucketing entirely;
//  2. with no explicit sort, rows order by priority (high, medium, low)
//     and newest-first within the same priority.
// The closed section is always newest-first regardless of State.Sort.

// Derive applies search, column filters, sort, and the active/closed
// partition to rows. The input slice is not modified.
func Derive(rows []Row, state State) View {
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !matchesSearch(row, state.Search) {
			continue
		}
		if !passesFilters(row, state.Filters) {
			continue
		}
		kept = append(kept, row)
	}

	if state.Sort.active() {
		applySort(kept, state.Sort)
	}

	view := View{Active: []Row{}, Closed: []Row{}}
	for _, row := range kept {
		if row.Status == domain.TicketStatusClosed {
			view.Closed = append(view.Closed, row)
		} else {
			view.Active = append(view.Active, row)
		}
	}

	sort.SliceStable(view.Closed, func(i, j int) bool {
		return view.Closed[i].CreatedAt.After(view.Closed[j].CreatedAt)
	})

	if !state.Sort.active() {
		sort.SliceStable(view.Active, func(i, j int) bool {
			left, right := priorityRank(view.Active[i].Priority), priorityRank(view.Active[j].Priority)
			if left != right {
				return left < right
			}
			return view.Active[i].CreatedAt.After(view.Active[j].CreatedAt)
		})
	}

	return view
}

func matchesSearch(row Row, search string) bool {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return true
	}
	for _, hay := range []string{
		row.Subject,
		row.ID,
		row.Requester,
		string(row.Status),
		string(row.Priority),
	} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func passesFilters(row Row, filters map[Field][]string) bool {
	for field, accepted := range filters {
		if len(accepted) == 0 {
			continue
		}
		if !acceptedValue(fieldValue(row, field), accepted) {
			return false
		}
	}
	return true
}

func acceptedValue(value string, accepted []string) bool {
	for _, candidate := range accepted {
		if candidate == value {
			return true
		}
	}
	return false
}

func fieldValue(row Row, field Field) string {
	switch field {
	case FieldSubject:
		return row.Subject
	case FieldRequester:
		return row.Requester
	case FieldStatus:
		return string(row.Status)
	case FieldPriority:
		return string(row.Priority)
	case FieldCreatedAt:
		return row.CreatedAt.Format("2006-01-02")
	default:
		return ""
	}
}

func applySort(rows []Row, s Sort) {
	descending := s.Direction == Descending
	sort.SliceStable(rows, func(i, j int) bool {
		less := lessByField(rows[i], rows[j], s.Field)
		if descending {
			return lessByField(rows[j], rows[i], s.Field)
		}
		return less
	})
}

func lessByField(a, b Row, field Field) bool {
	if field == FieldCreatedAt {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return fieldValue(a, field) < fieldValue(b, field)
}

func priorityRank(p domain.TicketPriority) int {
	switch p {
	case domain.TicketPriorityHigh:
		return 0
	case domain.TicketPriorityMedium:
		return 1
	default:
		return 2
	}
}
