package report

import (
	"errors"
	"fmt"
)

// QueryType classifies the user's query and gates which lookup tools may run
// for the entire report. The set is closed; classification happens once during
// structuring and never changes afterward.
type QueryType string

const (
	QueryFactual     QueryType = "factual_query"
	QueryComparative QueryType = "comparative_evaluative_query"
	QueryResearch    QueryType = "research_oriented_query"
	QueryProgramming QueryType = "execution_programming_query"
	QueryIdea        QueryType = "idea_generation"
)

// DefaultQueryType is substituted when classification fails.
const DefaultQueryType = QueryFactual

// AllQueryTypes lists every valid classification in a stable order.
var AllQueryTypes = []QueryType{
	QueryFactual,
	QueryComparative,
	QueryResearch,
	QueryProgramming,
	QueryIdea,
}

// Valid reports whether qt is one of the closed classification values.
func (qt QueryType) Valid() bool {
	switch qt {
	case QueryFactual, QueryComparative, QueryResearch, QueryProgramming, QueryIdea:
		return true
	}
	return false
}

// Section is one addressable unit of the final report. The ID is generated
// once during structuring and is the join key across research and writing;
// it must never change once the structure is approved.
type Section struct {
	ID          string `json:"section_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Research    bool   `json:"research"`
	Content     string `json:"content"`
}

// Header holds the report title and summary.
type Header struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Footer holds the report conclusion.
type Footer struct {
	Conclusion string `json:"conclusion"`
}

// MaxSections bounds the report structure.
const MaxSections = 4

// Shell is the approved report structure. The approval loop may replace it
// wholesale but never partially.
type Shell struct {
	Header   Header    `json:"header"`
	Sections []Section `json:"sections"`
	Footer   Footer    `json:"footer"`
}

var (
	ErrTooManySections    = errors.New("report has more than the maximum number of sections")
	ErrMissingSectionID   = errors.New("section is missing an id")
	ErrDuplicateSectionID = errors.New("duplicate section id")
)

// Validate checks the structural invariants that downstream phases depend on.
// A violation here is run-fatal: research and writing join results by section
// id, and a missing or duplicated id would silently corrupt the report.
func (s Shell) Validate() error {
	if len(s.Sections) > MaxSections {
		return fmt.Errorf("%w: got %d, max %d", ErrTooManySections, len(s.Sections), MaxSections)
	}
	seen := make(map[string]struct{}, len(s.Sections))
	for i, sec := range s.Sections {
		if sec.ID == "" {
			return fmt.Errorf("%w: section %d (%q)", ErrMissingSectionID, i, sec.Name)
		}
		if _, dup := seen[sec.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSectionID, sec.ID)
		}
		seen[sec.ID] = struct{}{}
	}
	return nil
}

// ResearchSections returns the sections flagged as requiring evidence.
func (s Shell) ResearchSections() []Section {
	out := make([]Section, 0, len(s.Sections))
	for _, sec := range s.Sections {
		if sec.Research {
			out = append(out, sec)
		}
	}
	return out
}

// ReplaceSection returns a new slice with the section matching updated.ID
// swapped out. The input slice is never mutated, so callers can hold a
// reference to the old list while header/footer regeneration reads the new
// one.
func ReplaceSection(sections []Section, updated Section) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	for i := range out {
		if out[i].ID == updated.ID {
			out[i] = updated
			break
		}
	}
	return out
}

// Reference ties the source URLs gathered for a section back to that section.
// Sections that required no research never produce one.
type Reference struct {
	SectionID   string   `json:"section_id"`
	SectionName string   `json:"section_name"`
	SourceURLs  []string `json:"source_urls"`
}
