package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmahattanasawat/resume-chat/backend/internal/analysis/relevance"
	"github.com/pmahattanasawat/resume-chat/backend/internal/model/resume"
)

func formatPersonalInfo(info resume.PersonalInfo, summary string) string {
	lines := []string{
		"Name: " + info.Name,
	}
	if info.Location != "" {
		lines = append(lines, "Location: "+info.Location)
	} else {
		lines = append(lines, "Location: Not specified")
	}
	lines = append(lines, "Email: "+info.Email)
	if info.Phone != "" {
		lines = append(lines, "Phone: "+info.Phone)
	}
	if info.LinkedIn != "" {
		lines = append(lines, "LinkedIn: "+info.LinkedIn)
	}
	if info.GitHub != "" {
		lines = append(lines, "GitHub: "+info.GitHub)
	}
	if info.Website != "" {
		lines = append(lines, "Website: "+info.Website)
	}
	if summary != "" {
		lines = append(lines, "", "Professional Summary:", summary)
	}
	return strings.Join(lines, "\n")
}

func formatEducation(edu resume.Education) string {
	lines := []string{
		"Institution: " + edu.Institution,
		fmt.Sprintf("Degree: %s in %s", edu.Degree, edu.Field),
		"Graduation: " + edu.GraduationDate,
	}
	if edu.GPA > 0 {
		lines = append(lines, fmt.Sprintf("GPA: %.2f", edu.GPA))
	}
	if len(edu.Achievements) > 0 {
		lines = append(lines, "Achievements: "+strings.Join(edu.Achievements, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatExperience(exp resume.Experience) string {
	end := exp.EndDate
	if end == "" {
		end = "Present"
	}

	lines := []string{
		"Company: " + exp.Company,
		"Position: " + exp.Position,
		fmt.Sprintf("Duration: %s - %s", exp.StartDate, end),
	}
	if exp.Location != "" {
		lines = append(lines, "Location: "+exp.Location)
	}
	lines = append(lines, "Key Accomplishments:")
	for _, desc := range exp.Description {
		lines = append(lines, "- "+desc)
	}
	if len(exp.Technologies) > 0 {
		lines = append(lines, "Technologies: "+strings.Join(exp.Technologies, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatSkills(skills map[string][]string) string {
	categories := make([]string, 0, len(skills))
	for category := range skills {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	lines := make([]string, 0, len(categories))
	for _, category := range categories {
		lines = append(lines, category+": "+strings.Join(skills[category], ", "))
	}
	return strings.Join(lines, "\n")
}

func formatProject(proj resume.Project) string {
	lines := []string{
		"Project: " + proj.Name,
		"Description: " + proj.Description,
		"Technologies: " + strings.Join(proj.Technologies, ", "),
	}
	if proj.URL != "" {
		lines = append(lines, "Live Demo: "+proj.URL)
	}
	if proj.GitHubURL != "" {
		lines = append(lines, "GitHub: "+proj.GitHubURL)
	}
	if proj.StartDate != "" && proj.EndDate != "" {
		lines = append(lines, fmt.Sprintf("Timeline: %s - %s", proj.StartDate, proj.EndDate))
	}
	return strings.Join(lines, "\n")
}

// searchCandidates flattens every resume section into searchable text for
// the relevance ranker.
func searchCandidates(store *resume.Store) map[relevance.Section]string {
	var experience strings.Builder
	for _, exp := range store.Experience() {
		experience.WriteString(formatExperience(exp))
		experience.WriteString("\n")
	}

	var projects strings.Builder
	for _, proj := range store.Projects() {
		projects.WriteString(formatProject(proj))
		projects.WriteString("\n")
	}

	var education strings.Builder
	for _, edu := range store.Education() {
		education.WriteString(formatEducation(edu))
		education.WriteString("\n")
	}

	return map[relevance.Section]string{
		relevance.SectionExperience:   experience.String(),
		relevance.SectionProjects:     projects.String(),
		relevance.SectionSkills:       formatSkills(store.Skills()),
		relevance.SectionEducation:    education.String(),
		relevance.SectionPersonalInfo: formatPersonalInfo(store.PersonalInfo(), ""),
		relevance.SectionSummary:      store.Summary(),
	}
}

func sectionHeading(section relevance.Section) string {
	return strings.ToUpper(strings.ReplaceAll(string(section), "_", " ")) + ":"
}

func sectionContent(store *resume.Store, section relevance.Section) string {
	switch section {
	case relevance.SectionExperience:
		parts := make([]string, 0, len(store.Experience()))
		for _, exp := range store.Experience() {
			parts = append(parts, formatExperience(exp))
		}
		return strings.Join(parts, "\n\n")
	case relevance.SectionProjects:
		parts := make([]string, 0, len(store.Projects()))
		for _, proj := range store.Projects() {
			parts = append(parts, formatProject(proj))
		}
		return strings.Join(parts, "\n\n")
	case relevance.SectionSkills:
		return formatSkills(store.Skills())
	case relevance.SectionEducation:
		parts := make([]string, 0, len(store.Education()))
		for _, edu := range store.Education() {
			parts = append(parts, formatEducation(edu))
		}
		return strings.Join(parts, "\n\n")
	case relevance.SectionPersonalInfo:
		return formatPersonalInfo(store.PersonalInfo(), store.Summary())
	case relevance.SectionSummary:
		return store.Summary()
	default:
		return ""
	}
}
