package relevance

import (
	"sort"
	"strings"
)

// Section names the resume sections the search tool can surface.
type Section string

const (
	SectionExperience   Section = "experience"
	SectionProjects     Section = "projects"
	SectionSkills       Section = "skills"
	SectionEducation    Section = "education"
	SectionPersonalInfo Section = "personal_info"
	SectionSummary      Section = "summary"
)

// sectionPriority breaks score ties: work experience is the most useful
// answer to a generic keyword, the summary the least.
var sectionPriority = map[Section]int{
	SectionExperience:   0,
	SectionProjects:     1,
	SectionSkills:       2,
	SectionEducation:    3,
	SectionPersonalInfo: 4,
	SectionSummary:      5,
}

// Match is one section that overlapped with the search keywords.
type Match struct {
	Section Section
	Score   int
}

// Rank scores every candidate section by keyword overlap count and returns
// the sections that matched at least one keyword, ordered best first. Ties
// are broken by section priority so results are deterministic.
func Rank(keyword string, candidates map[Section]string) []Match {
	terms := tokenize(keyword)
	if len(terms) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for section, text := range candidates {
		score := overlap(terms, text)
		if score == 0 {
			continue
		}
		matches = append(matches, Match{Section: section, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return sectionPriority[matches[i].Section] < sectionPriority[matches[j].Section]
	})

	return matches
}

// overlap counts how many distinct search terms occur in the section text.
func overlap(terms []string, text string) int {
	normalized := strings.ToLower(text)
	score := 0
	for _, term := range terms {
		if strings.Contains(normalized, term) {
			score++
		}
	}
	return score
}

func tokenize(keyword string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(keyword)))
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,;:!?\"'()")
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		terms = append(terms, trimmed)
	}
	return terms
}
