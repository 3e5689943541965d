package parser_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bjornpagen/nice-sub010/internal/qti/parser"
)

const twoSections = `<?xml version="1.0" encoding="UTF-8"?>
<qti-assessment-test xmlns="http://www.imsglobal.org/xsd/imsqtiasi_v3p0" identifier="test-1" title="Unit quiz">
  <qti-test-part identifier="part-1" navigation-mode="linear" submission-mode="individual">
    <qti-assessment-section identifier="sec-a" title="A" visible="false">
      <qti-selection select="1"/>
      <qti-ordering shuffle="true"/>
      <qti-assessment-item-ref identifier="item-1" href="/assessment-items/item-1"/>
      <qti-assessment-item-ref identifier="item-2" href="/assessment-items/item-2"/>
    </qti-assessment-section>
    <qti-assessment-section identifier="sec-b" title="B" visible="false">
      <qti-ordering shuffle="false"/>
      <qti-assessment-item-ref identifier="item-2" href="/assessment-items/item-2"/>
    </qti-assessment-section>
  </qti-test-part>
</qti-assessment-test>`

func TestParseAssessmentTestXML(t *testing.T) {
	st, err := parser.ParseAssessmentTestXML(twoSections)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.TestPartID != "part-1" {
		t.Fatalf("test part = %q", st.TestPartID)
	}
	if len(st.Sections) != 2 {
		t.Fatalf("sections = %d", len(st.Sections))
	}
	a, b := st.Sections[0], st.Sections[1]
	if a.ID != "sec-a" || !reflect.DeepEqual(a.ItemIDs(), []string{"item-1", "item-2"}) {
		t.Fatalf("section a = %+v", a)
	}
	if a.Select != 1 || a.Shuffle == nil || !*a.Shuffle {
		t.Fatalf("section a directives = select %d shuffle %v", a.Select, a.Shuffle)
	}
	if a.ItemRefs[0].Href != "/assessment-items/item-1" {
		t.Fatalf("href = %q", a.ItemRefs[0].Href)
	}
	if b.Shuffle == nil || *b.Shuffle || b.Select != 0 {
		t.Fatalf("section b directives = %+v", b)
	}
	if !reflect.DeepEqual(st.ItemIDs(), []string{"item-1", "item-2", "item-2"}) {
		t.Fatalf("flattened = %v", st.ItemIDs())
	}
}

func TestParseAssessmentTestXML_NestedSections(t *testing.T) {
	x := `<qti-assessment-test identifier="t">
  <qti-test-part identifier="p">
    <qti-assessment-section identifier="outer">
      <qti-assessment-item-ref identifier="i1"/>
      <qti-assessment-section identifier="inner">
        <qti-assessment-item-ref identifier="i2"/>
      </qti-assessment-section>
      <qti-assessment-item-ref identifier="i3"/>
    </qti-assessment-section>
  </qti-test-part>
</qti-assessment-test>`
	st, err := parser.ParseAssessmentTestXML(x)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := st.Sections[0].ItemIDs(); !reflect.DeepEqual(got, []string{"i1", "i3"}) {
		t.Fatalf("outer = %v", got)
	}
	if got := st.Sections[1].ItemIDs(); !reflect.DeepEqual(got, []string{"i2"}) {
		t.Fatalf("inner = %v", got)
	}
	if got := st.ItemIDs(); !reflect.DeepEqual(got, []string{"i1", "i2", "i3"}) {
		t.Fatalf("flattened = %v, want document order", got)
	}
	var owners []string
	for _, r := range st.Refs() {
		owners = append(owners, r.Section)
	}
	if !reflect.DeepEqual(owners, []string{"outer", "inner", "outer"}) {
		t.Fatalf("owners = %v", owners)
	}
}

func TestParseAssessmentTestXML_Malformed(t *testing.T) {
	cases := []struct {
		name string
		xml  string
		want error
	}{
		{"no test part", `<qti-assessment-test><qti-assessment-section identifier="s"><qti-assessment-item-ref identifier="i"/></qti-assessment-section></qti-assessment-test>`, parser.ErrMissingTestPart},
		{"two test parts", `<qti-assessment-test><qti-test-part identifier="a"/><qti-test-part identifier="b"/></qti-assessment-test>`, parser.ErrMultipleTestParts},
		{"no sections", `<qti-assessment-test><qti-test-part identifier="p"></qti-test-part></qti-assessment-test>`, parser.ErrNoSections},
		{"no items", `<qti-assessment-test><qti-test-part identifier="p"><qti-assessment-section identifier="s"/></qti-test-part></qti-assessment-test>`, parser.ErrNoItems},
		{"section without id", `<qti-assessment-test><qti-test-part identifier="p"><qti-assessment-section><qti-assessment-item-ref identifier="i"/></qti-assessment-section></qti-test-part></qti-assessment-test>`, parser.ErrMissingIdentifier},
		{"item ref without id", `<qti-assessment-test><qti-test-part identifier="p"><qti-assessment-section identifier="s"><qti-assessment-item-ref href="x"/></qti-assessment-section></qti-test-part></qti-assessment-test>`, parser.ErrMissingIdentifier},
		{"item ref outside section", `<qti-assessment-test><qti-test-part identifier="p"><qti-assessment-item-ref identifier="i"/></qti-test-part></qti-assessment-test>`, parser.ErrItemRefOutsideSection},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parser.ParseAssessmentTestXML(tc.xml)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseAssessmentTestXML_BrokenXML(t *testing.T) {
	if _, err := parser.ParseAssessmentTestXML(`<qti-assessment-test><qti-test-part identifier="p">`); err == nil {
		t.Fatalf("expected decode error")
	}
}
