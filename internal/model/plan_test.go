package model

import (
	"reflect"
	"testing"
)

func book(id, start, end string, ignore ...string) BookConfig {
	s := make(map[ChapterID]struct{}, len(ignore))
	for _, i := range ignore {
		s[ChapterID(i)] = struct{}{}
	}
	return BookConfig{
		BookID:    BookID(id),
		StartID:   ChapterID(start),
		EndID:     ChapterID(end),
		IgnoreIDs: s,
	}
}

func vols(ids ...string) []Volume {
	refs := make([]ChapterRef, len(ids))
	for i, id := range ids {
		refs[i] = ChapterRef{ChapterID: ChapterID(id), Title: "T " + id}
	}
	return []Volume{{VolumeName: "v1", Chapters: refs}}
}

func TestPlanChapters(t *testing.T) {
	cases := []struct {
		name   string
		vols   []Volume
		cfg    BookConfig
		expect []string
	}{
		{
			name:   "happy path, no filters",
			vols:   vols("c1", "c2", "c3"),
			cfg:    book("b1", "", ""),
			expect: []string{"c1", "c2", "c3"},
		},
		{
			name:   "range plus ignore (S2)",
			vols:   vols("c1", "c2", "c3"),
			cfg:    book("b1", "c2", "c3", "c3"),
			expect: []string{"c2"},
		},
		{
			name:   "unknown start is open on that side",
			vols:   vols("c1", "c2", "c3"),
			cfg:    book("b1", "unknown", "c2"),
			expect: []string{"c1", "c2"},
		},
		{
			name:   "unknown end is open on that side",
			vols:   vols("c1", "c2", "c3"),
			cfg:    book("b1", "c2", "unknown"),
			expect: []string{"c2", "c3"},
		},
		{
			name: "empty chapterId excluded",
			vols: []Volume{{Chapters: []ChapterRef{
				{ChapterID: "c1"}, {ChapterID: ""}, {ChapterID: "c2"},
			}}},
			cfg:    book("b1", "", ""),
			expect: []string{"c1", "c2"},
		},
		{
			name:   "unknown ignore id is not an error",
			vols:   vols("c1", "c2"),
			cfg:    book("b1", "", "", "does-not-exist"),
			expect: []string{"c1", "c2"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PlanChapters(tc.vols, tc.cfg)
			gotStrs := make([]string, len(got))
			for i, id := range got {
				gotStrs[i] = string(id)
			}
			if tc.expect == nil {
				tc.expect = []string{}
			}
			if gotStrs == nil {
				gotStrs = []string{}
			}
			if !reflect.DeepEqual(gotStrs, tc.expect) {
				t.Fatalf("PlanChapters() = %v, want %v", gotStrs, tc.expect)
			}
		})
	}
}

func TestPlanChaptersEmptyCatalog(t *testing.T) {
	got := PlanChapters(nil, book("b1", "", ""))
	if len(got) != 0 {
		t.Fatalf("expected empty plan, got %v", got)
	}
}
