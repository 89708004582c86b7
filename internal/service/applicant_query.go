package service

import (
	"sort"
	"strings"

	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

const (
	defaultApplicantPageSize = 50
	maxApplicantPageSize     = 5000
)

// filterApplicants applies status, special-needs and search filters. The input is not modified.
func filterApplicants(roster []models.Applicant, filter dto.ApplicantFilter) []models.Applicant {
	statuses := make(map[models.ApplicantStatus]struct{}, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = struct{}{}
	}
	needs := normalizeNeeds(filter.Needs)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	out := make([]models.Applicant, 0, len(roster))
	for _, a := range roster {
		if len(statuses) > 0 {
			if _, ok := statuses[a.Status]; !ok {
				continue
			}
		}
		if !matchesNeeds(a, needs) {
			continue
		}
		if search != "" && !matchesSearch(a, search) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func normalizeNeeds(raw []string) []string {
	var needs []string
	for _, value := range raw {
		needs = append(needs, models.SplitList(value)...)
	}
	return needs
}

// matchesNeeds requires every selected need. An applicant who answered
// "None of the Above" only matches when that is the sole selection.
func matchesNeeds(a models.Applicant, needs []string) bool {
	if len(needs) == 0 {
		return true
	}
	if a.HasNeed(models.NeedNoneOfTheAbove) {
		return len(needs) == 1 && needs[0] == models.NeedNoneOfTheAbove
	}
	for _, need := range needs {
		if !a.HasNeed(need) {
			return false
		}
	}
	return true
}

func matchesSearch(a models.Applicant, needle string) bool {
	return strings.Contains(strings.ToLower(a.FullName()), needle) ||
		strings.Contains(strings.ToLower(a.Email), needle)
}

// sortApplicants orders people in place. Ties keep roster order.
func sortApplicants(people []models.Applicant, order string) {
	var less func(a, b models.Applicant) bool
	switch order {
	case dto.SortNameAsc:
		less = func(a, b models.Applicant) bool { return sortName(a) < sortName(b) }
	case dto.SortNameDesc:
		less = func(a, b models.Applicant) bool { return sortName(a) > sortName(b) }
	case dto.SortDateAsc:
		less = func(a, b models.Applicant) bool { return appliedBefore(a, b, false) }
	case dto.SortDateDesc:
		less = func(a, b models.Applicant) bool { return appliedBefore(a, b, true) }
	case dto.SortAvailabilityAsc:
		less = func(a, b models.Applicant) bool {
			return models.AvailabilityRank(a.Availability) < models.AvailabilityRank(b.Availability)
		}
	default:
		return
	}
	sort.SliceStable(people, func(i, j int) bool { return less(people[i], people[j]) })
}

func sortName(a models.Applicant) string {
	return strings.ToLower(a.FullName())
}

// appliedBefore sorts by submission time; applicants without one go last in both directions.
func appliedBefore(a, b models.Applicant, newestFirst bool) bool {
	switch {
	case a.AppliedAt == nil:
		return false
	case b.AppliedAt == nil:
		return true
	case newestFirst:
		return a.AppliedAt.After(*b.AppliedAt)
	default:
		return a.AppliedAt.Before(*b.AppliedAt)
	}
}

// paginate returns the requested page and the pagination metadata.
func paginate(people []models.Applicant, page, size int) ([]models.Applicant, models.Pagination) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultApplicantPageSize
	}
	if size > maxApplicantPageSize {
		size = maxApplicantPageSize
	}
	meta := models.Pagination{Page: page, PageSize: size, TotalCount: len(people)}

	pages := (len(people) + size - 1) / size
	if page-1 >= pages {
		return []models.Applicant{}, meta
	}
	start := (page - 1) * size
	end := start + size
	if end > len(people) {
		end = len(people)
	}
	return people[start:end], meta
}
