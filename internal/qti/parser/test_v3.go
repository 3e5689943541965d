package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrMissingTestPart       = errors.New("qti xml: missing test part")
	ErrMultipleTestParts     = errors.New("qti xml: multiple test parts")
	ErrNoSections            = errors.New("qti xml: no sections")
	ErrNoItems               = errors.New("qti xml: no item refs")
	ErrMissingIdentifier     = errors.New("qti xml: missing identifier")
	ErrItemRefOutsideSection = errors.New("qti xml: item ref outside section")
)

// ItemRef is one qti-assessment-item-ref. Position is its zero-based index
// among all item refs of the test in document order.
type ItemRef struct {
	Identifier string
	Href       string
	Position   int
}

// SectionRef pairs an item ref with the id of the section that owns it.
type SectionRef struct {
	Section string
	ItemRef
}

// Section is one qti-assessment-section with the item refs it directly owns.
// Select is the qti-selection count (0 means all items); Shuffle is nil when
// the section carries no qti-ordering element.
type Section struct {
	ID       string
	ItemRefs []ItemRef
	Select   int
	Shuffle  *bool
}

func (s Section) ItemIDs() []string {
	ids := make([]string, 0, len(s.ItemRefs))
	for _, r := range s.ItemRefs {
		ids = append(ids, r.Identifier)
	}
	return ids
}

type TestStructure struct {
	TestPartID string
	Sections   []Section
}

// Refs lists every item ref in document order, so refs after a nested
// section follow the nested section's refs.
func (t TestStructure) Refs() []SectionRef {
	var refs []SectionRef
	for _, s := range t.Sections {
		for _, r := range s.ItemRefs {
			refs = append(refs, SectionRef{Section: s.ID, ItemRef: r})
		}
	}
	slices.SortStableFunc(refs, func(a, b SectionRef) int { return a.Position - b.Position })
	return refs
}

// ItemIDs flattens the item identifiers in document order, repeats included.
func (t TestStructure) ItemIDs() []string {
	refs := t.Refs()
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.Identifier
	}
	return ids
}

func (t TestStructure) Section(id string) (Section, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// ParseAssessmentTestXML recovers the test-part/section/item-ref structure of a
// QTI 3 assessment test. Sections may nest; an item ref belongs to the
// innermost open section.
func ParseAssessmentTestXML(raw string) (TestStructure, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Entity = xml.HTMLEntity

	var (
		out   TestStructure
		open  []int // indexes into out.Sections
		parts int
		refs  int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TestStructure{}, fmt.Errorf("qti xml: decode: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			name := el.Name.Local
			switch {
			case strings.EqualFold(name, "qti-test-part"):
				parts++
				if parts > 1 {
					return TestStructure{}, ErrMultipleTestParts
				}
				out.TestPartID = attr(el, "identifier")
			case strings.EqualFold(name, "qti-assessment-section"):
				id := attr(el, "identifier")
				if id == "" {
					return TestStructure{}, fmt.Errorf("%w: qti-assessment-section #%d", ErrMissingIdentifier, len(out.Sections)+1)
				}
				out.Sections = append(out.Sections, Section{ID: id})
				open = append(open, len(out.Sections)-1)
			case strings.EqualFold(name, "qti-assessment-item-ref"):
				id := attr(el, "identifier")
				if len(open) == 0 {
					return TestStructure{}, fmt.Errorf("%w: %q", ErrItemRefOutsideSection, id)
				}
				sec := &out.Sections[open[len(open)-1]]
				if id == "" {
					return TestStructure{}, fmt.Errorf("%w: item ref in section %q", ErrMissingIdentifier, sec.ID)
				}
				sec.ItemRefs = append(sec.ItemRefs, ItemRef{Identifier: id, Href: attr(el, "href"), Position: refs})
				refs++
			case strings.EqualFold(name, "qti-selection"):
				if len(open) == 0 {
					continue
				}
				sec := &out.Sections[open[len(open)-1]]
				n, err := strconv.Atoi(strings.TrimSpace(attr(el, "select")))
				if err != nil || n < 0 {
					return TestStructure{}, fmt.Errorf("qti xml: section %q: bad select %q", sec.ID, attr(el, "select"))
				}
				sec.Select = n
			case strings.EqualFold(name, "qti-ordering"):
				if len(open) == 0 {
					continue
				}
				sec := &out.Sections[open[len(open)-1]]
				v, err := strconv.ParseBool(strings.TrimSpace(attr(el, "shuffle")))
				if err != nil {
					return TestStructure{}, fmt.Errorf("qti xml: section %q: bad shuffle %q", sec.ID, attr(el, "shuffle"))
				}
				sec.Shuffle = &v
			}
		case xml.EndElement:
			if strings.EqualFold(el.Name.Local, "qti-assessment-section") && len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	if out.TestPartID == "" {
		return TestStructure{}, ErrMissingTestPart
	}
	if len(out.Sections) == 0 {
		return TestStructure{}, ErrNoSections
	}
	if len(out.ItemIDs()) == 0 {
		return TestStructure{}, ErrNoItems
	}
	return out, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}
