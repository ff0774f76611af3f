package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/pmahattanasawat/resume-chat/backend/internal/analysis/relevance"
	"github.com/pmahattanasawat/resume-chat/backend/internal/model/resume"
)

// Canonical resume tool names, as advertised to the model.
const (
	ToolPersonalInfo = "get_personal_info"
	ToolEducation    = "get_education"
	ToolExperience   = "get_experience"
	ToolSkills       = "get_skills"
	ToolProjects     = "get_projects"
	ToolSearch       = "search_resume"
)

// NewResumeRegistry builds the full tool capability set over the immutable
// resume store.
func NewResumeRegistry(store *resume.Store) (*Registry, error) {
	r := NewRegistry()

	register := []struct {
		info    *schema.ToolInfo
		handler Handler
	}{
		{personalInfoTool(), personalInfoHandler(store)},
		{educationTool(), educationHandler(store)},
		{experienceTool(), experienceHandler(store)},
		{skillsTool(), skillsHandler(store)},
		{projectsTool(), projectsHandler(store)},
		{searchTool(), searchHandler(store)},
	}

	for _, t := range register {
		if err := r.Register(t.info, t.handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func personalInfoTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolPersonalInfo,
		Desc: "Get personal information from the resume including name, contact details, and professional summary.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Optional filter for specific personal info (e.g. \"contact\", \"summary\")"},
		}),
	}
}

func educationTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolEducation,
		Desc: "Get education history from the resume including degrees, institutions, and achievements.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Optional filter for specific institutions, degrees, or fields"},
		}),
	}
}

func experienceTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolExperience,
		Desc: "Get work experience from the resume including companies, positions, and accomplishments.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Optional filter for specific companies, positions, or technologies"},
		}),
	}
}

func skillsTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolSkills,
		Desc: "Get skills from the resume organized by categories.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"category": {Type: schema.String, Desc: "Optional filter for a specific skill category (e.g. \"languages\", \"cloud\")"},
		}),
	}
}

func projectsTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolProjects,
		Desc: "Get the project portfolio from the resume including descriptions, technologies, and links.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "Optional filter for specific projects, technologies, or keywords"},
		}),
	}
}

func searchTool() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolSearch,
		Desc: "Search across all resume sections for a specific keyword or phrase. Use when the question spans multiple sections.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword": {Type: schema.String, Desc: "Keyword or phrase to search for across resume data", Required: true},
		}),
	}
}

func personalInfoHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		if _, res, ok := decodeStringArg(args, "query"); !ok {
			return res, nil
		}
		return Result{Content: formatPersonalInfo(store.PersonalInfo(), store.Summary())}, nil
	}
}

func educationHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		query, res, ok := decodeStringArg(args, "query")
		if !ok {
			return res, nil
		}

		entries := store.Education()
		if query != "" {
			entries = filterEducation(entries, query)
			if len(entries) == 0 {
				return notFound("education matching " + quoted(query)), nil
			}
		}
		if len(entries) == 0 {
			return notFound("education"), nil
		}

		parts := make([]string, 0, len(entries))
		for _, edu := range entries {
			parts = append(parts, formatEducation(edu))
		}
		return Result{Content: strings.Join(parts, "\n\n")}, nil
	}
}

func experienceHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		query, res, ok := decodeStringArg(args, "query")
		if !ok {
			return res, nil
		}

		entries := store.Experience()
		if query != "" {
			entries = filterExperience(entries, query)
			if len(entries) == 0 {
				return notFound("work experience matching " + quoted(query)), nil
			}
		}
		if len(entries) == 0 {
			return notFound("work experience"), nil
		}

		parts := make([]string, 0, len(entries))
		for _, exp := range entries {
			parts = append(parts, formatExperience(exp))
		}
		return Result{Content: strings.Join(parts, "\n\n")}, nil
	}
}

func skillsHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		category, res, ok := decodeStringArg(args, "category")
		if !ok {
			return res, nil
		}

		skills := store.Skills()
		if category != "" {
			skills = filterSkills(skills, category)
			if len(skills) == 0 {
				return notFound("skills in category " + quoted(category)), nil
			}
		}
		if len(skills) == 0 {
			return notFound("skills"), nil
		}

		return Result{Content: formatSkills(skills)}, nil
	}
}

func projectsHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		query, res, ok := decodeStringArg(args, "query")
		if !ok {
			return res, nil
		}

		entries := store.Projects()
		if query != "" {
			entries = filterProjects(entries, query)
			if len(entries) == 0 {
				return notFound("projects matching " + quoted(query)), nil
			}
		}
		if len(entries) == 0 {
			return notFound("projects"), nil
		}

		parts := make([]string, 0, len(entries))
		for _, proj := range entries {
			parts = append(parts, formatProject(proj))
		}
		return Result{Content: strings.Join(parts, "\n\n")}, nil
	}
}

func searchHandler(store *resume.Store) Handler {
	return func(_ context.Context, args json.RawMessage) (Result, error) {
		keyword, res, ok := decodeStringArg(args, "keyword")
		if !ok {
			return res, nil
		}
		if keyword == "" {
			return Result{Content: "Please provide a keyword to search for.", IsError: true}, nil
		}

		matches := relevance.Rank(keyword, searchCandidates(store))
		if len(matches) == 0 {
			return notFound(fmt.Sprintf("anything related to %q", keyword)), nil
		}

		parts := make([]string, 0, len(matches)*2)
		for _, match := range matches {
			parts = append(parts, sectionHeading(match.Section), sectionContent(store, match.Section))
		}
		return Result{Content: strings.Join(parts, "\n\n")}, nil
	}
}

// decodeStringArg extracts a single optional string argument. The third
// return value is false when the arguments were malformed, in which case the
// Result explains the problem for the model.
func decodeStringArg(args json.RawMessage, key string) (string, Result, bool) {
	if len(args) == 0 {
		return "", Result{}, true
	}

	var params map[string]any
	if err := json.Unmarshal(args, &params); err != nil {
		return "", Result{Content: fmt.Sprintf("invalid arguments: %v", err), IsError: true}, false
	}

	raw, present := params[key]
	if !present {
		return "", Result{}, true
	}
	value, isString := raw.(string)
	if !isString {
		return "", Result{Content: fmt.Sprintf("invalid arguments: %q must be a string", key), IsError: true}, false
	}
	return strings.TrimSpace(value), Result{}, true
}

func notFound(what string) Result {
	return Result{Content: fmt.Sprintf("No information found for %s in the resume.", what), NotFound: true}
}

func quoted(s string) string {
	return fmt.Sprintf("%q", s)
}

func filterEducation(entries []resume.Education, query string) []resume.Education {
	q := strings.ToLower(query)
	filtered := entries[:0:0]
	for _, edu := range entries {
		if containsFold(edu.Institution, q) || containsFold(edu.Degree, q) || containsFold(edu.Field, q) {
			filtered = append(filtered, edu)
		}
	}
	return filtered
}

func filterExperience(entries []resume.Experience, query string) []resume.Experience {
	q := strings.ToLower(query)
	filtered := entries[:0:0]
	for _, exp := range entries {
		if containsFold(exp.Company, q) || containsFold(exp.Position, q) || anyContainsFold(exp.Technologies, q) {
			filtered = append(filtered, exp)
		}
	}
	return filtered
}

func filterProjects(entries []resume.Project, query string) []resume.Project {
	q := strings.ToLower(query)
	filtered := entries[:0:0]
	for _, proj := range entries {
		if containsFold(proj.Name, q) || containsFold(proj.Description, q) || anyContainsFold(proj.Technologies, q) {
			filtered = append(filtered, proj)
		}
	}
	return filtered
}

func filterSkills(skills map[string][]string, category string) map[string][]string {
	q := strings.ToLower(category)
	filtered := make(map[string][]string)
	for name, list := range skills {
		if containsFold(name, q) {
			filtered[name] = list
		}
	}
	return filtered
}

func containsFold(haystack, loweredNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), loweredNeedle)
}

func anyContainsFold(haystack []string, loweredNeedle string) bool {
	for _, item := range haystack {
		if containsFold(item, loweredNeedle) {
			return true
		}
	}
	return false
}
