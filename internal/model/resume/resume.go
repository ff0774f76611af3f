package resume

import (
	"errors"
	"fmt"
	"strings"
)

// PersonalInfo holds contact details for the resume owner.
type PersonalInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Education is a single education history entry.
type Education struct {
	Institution    string   `json:"institution"`
	Degree         string   `json:"degree"`
	Field          string   `json:"field"`
	GraduationDate string   `json:"graduation_date"`
	GPA            float64  `json:"gpa,omitempty"`
	Achievements   []string `json:"achievements,omitempty"`
}

// Experience is a single work experience entry. EndDate is empty for the
// current position.
type Experience struct {
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date,omitempty"`
	Description  []string `json:"description"`
	Technologies []string `json:"technologies,omitempty"`
	Location     string   `json:"location,omitempty"`
}

// Project is a portfolio project entry.
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url,omitempty"`
	GitHubURL    string   `json:"github_url,omitempty"`
	StartDate    string   `json:"start_date,omitempty"`
	EndDate      string   `json:"end_date,omitempty"`
}

// Data is the complete resume document. Skills map category names to skill
// lists, e.g. {"languages": ["Python", "Go"]}.
type Data struct {
	PersonalInfo PersonalInfo        `json:"personal_info"`
	Education    []Education         `json:"education"`
	Experience   []Experience        `json:"experience"`
	Skills       map[string][]string `json:"skills"`
	Projects     []Project           `json:"projects"`
	Summary      string              `json:"summary,omitempty"`
}

var errEmptyResume = errors.New("resume data is empty")

// Validate checks the required fields of the resume document. The server
// refuses to start on any violation rather than serving partial data.
func (d *Data) Validate() error {
	if d == nil {
		return errEmptyResume
	}

	var problems []string

	if strings.TrimSpace(d.PersonalInfo.Name) == "" {
		problems = append(problems, "personal_info.name is required")
	}
	if strings.TrimSpace(d.PersonalInfo.Email) == "" {
		problems = append(problems, "personal_info.email is required")
	}

	for i, edu := range d.Education {
		if strings.TrimSpace(edu.Institution) == "" {
			problems = append(problems, fmt.Sprintf("education[%d].institution is required", i))
		}
		if strings.TrimSpace(edu.Degree) == "" {
			problems = append(problems, fmt.Sprintf("education[%d].degree is required", i))
		}
		if strings.TrimSpace(edu.Field) == "" {
			problems = append(problems, fmt.Sprintf("education[%d].field is required", i))
		}
		if strings.TrimSpace(edu.GraduationDate) == "" {
			problems = append(problems, fmt.Sprintf("education[%d].graduation_date is required", i))
		}
	}

	for i, exp := range d.Experience {
		if strings.TrimSpace(exp.Company) == "" {
			problems = append(problems, fmt.Sprintf("experience[%d].company is required", i))
		}
		if strings.TrimSpace(exp.Position) == "" {
			problems = append(problems, fmt.Sprintf("experience[%d].position is required", i))
		}
		if strings.TrimSpace(exp.StartDate) == "" {
			problems = append(problems, fmt.Sprintf("experience[%d].start_date is required", i))
		}
		if len(exp.Description) == 0 {
			problems = append(problems, fmt.Sprintf("experience[%d].description is required", i))
		}
	}

	for i, proj := range d.Projects {
		if strings.TrimSpace(proj.Name) == "" {
			problems = append(problems, fmt.Sprintf("projects[%d].name is required", i))
		}
		if strings.TrimSpace(proj.Description) == "" {
			problems = append(problems, fmt.Sprintf("projects[%d].description is required", i))
		}
		if len(proj.Technologies) == 0 {
			problems = append(problems, fmt.Sprintf("projects[%d].technologies is required", i))
		}
	}

	if len(d.Skills) == 0 {
		problems = append(problems, "skills must contain at least one category")
	}
	for category, list := range d.Skills {
		if len(list) == 0 {
			problems = append(problems, fmt.Sprintf("skills[%q] must not be empty", category))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid resume data: %s", strings.Join(problems, "; "))
	}
	return nil
}
