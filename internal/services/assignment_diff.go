package services

import (
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// AssignmentDiff is the patch turning the current assignments of a module into the desired set
type AssignmentDiff struct {
	Create    []*models.ModuleAssignment
	Update    []*models.ModuleAssignment // existing rows carrying the new due date
	Delete    []uint
	Unchanged int
}

// DiffAssignments matches rows by target. Kept targets are updated only when the due date changed.
func DiffAssignments(current, desired []*models.ModuleAssignment) AssignmentDiff {
	var diff AssignmentDiff

	existing := make(map[string]*models.ModuleAssignment, len(current))
	for _, a := range current {
		existing[a.TargetKey()] = a
	}

	wanted := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		key := d.TargetKey()
		wanted[key] = struct{}{}

		cur, ok := existing[key]
		switch {
		case !ok:
			diff.Create = append(diff.Create, d)
		case !sameDueDate(cur.DueDate, d.DueDate):
			updated := *cur
			updated.DueDate = d.DueDate
			diff.Update = append(diff.Update, &updated)
		default:
			diff.Unchanged++
		}
	}

	for _, a := range current {
		if _, ok := wanted[a.TargetKey()]; !ok {
			diff.Delete = append(diff.Delete, a.ID)
		}
	}
	return diff
}

func sameDueDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
