// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func bbcSources() []Partial {
	a := Partial{
		Schedule: Schedule{
			"bbc1.uk": {
				{ChannelID: "bbc1.uk", Title: "News", Start: utc(2025, 1, 1, 18, 0), Stop: utc(2025, 1, 1, 18, 30)},
			},
		},
		Names: ChannelNameIndex{"bbc one": "bbc1.uk", "bbc 1": "bbc1.uk"},
	}
	b := Partial{
		Schedule: Schedule{
			"bbc1.uk": {
				{ChannelID: "bbc1.uk", Title: "Weather", Start: utc(2025, 1, 1, 18, 30), Stop: utc(2025, 1, 1, 19, 0)},
				{ChannelID: "bbc1.uk", Title: "BBC News at Six", Start: utc(2025, 1, 1, 18, 0), Stop: utc(2025, 1, 1, 18, 30)},
			},
			"bbc2.uk": {
				{ChannelID: "bbc2.uk", Title: "Quiz", Start: utc(2025, 1, 1, 18, 0), Stop: utc(2025, 1, 1, 19, 0)},
			},
		},
		Names: ChannelNameIndex{"bbc one": "bbc1.b", "bbc two": "bbc2.uk"},
	}
	return []Partial{a, b}
}

func TestMergeDuplicateStartKeepsEarlierSource(t *testing.T) {
	sched, names, conflicts := MergeWithConflicts(bbcSources())

	wantSched := Schedule{
		"bbc1.uk": {
			{ChannelID: "bbc1.uk", Title: "News", Start: utc(2025, 1, 1, 18, 0), Stop: utc(2025, 1, 1, 18, 30)},
			{ChannelID: "bbc1.uk", Title: "Weather", Start: utc(2025, 1, 1, 18, 30), Stop: utc(2025, 1, 1, 19, 0)},
		},
		"bbc2.uk": {
			{ChannelID: "bbc2.uk", Title: "Quiz", Start: utc(2025, 1, 1, 18, 0), Stop: utc(2025, 1, 1, 19, 0)},
		},
	}
	if diff := cmp.Diff(wantSched, sched); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}

	wantNames := ChannelNameIndex{"bbc one": "bbc1.b", "bbc 1": "bbc1.uk", "bbc two": "bbc2.uk"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	wantConflicts := []NameConflict{{Name: "bbc one", Previous: "bbc1.uk", Winner: "bbc1.b"}}
	if diff := cmp.Diff(wantConflicts, conflicts); diff != "" {
		t.Errorf("conflicts mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	sched, names := Merge(bbcSources())
	once := Partial{Schedule: sched, Names: names}

	again, againNames := Merge([]Partial{once})
	if diff := cmp.Diff(sched, again); diff != "" {
		t.Errorf("Merge(merged) changed schedule (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(names, againNames); diff != "" {
		t.Errorf("Merge(merged) changed names (-first +second):\n%s", diff)
	}

	twice, _ := Merge([]Partial{once, once})
	if diff := cmp.Diff(sched, twice); diff != "" {
		t.Errorf("Merge(merged, merged) changed schedule (-first +second):\n%s", diff)
	}
}

func TestMergeSortsAndLeavesInputUntouched(t *testing.T) {
	parts := bbcSources()
	before := parts[1].Schedule["bbc1.uk"][0].Title

	sched, _ := Merge(parts)
	progs := sched["bbc1.uk"]
	for i := 1; i < len(progs); i++ {
		if !progs[i-1].Start.Before(progs[i].Start) {
			t.Fatalf("not strictly ordered at %d: %v >= %v", i, progs[i-1].Start, progs[i].Start)
		}
	}
	if got := parts[1].Schedule["bbc1.uk"][0].Title; got != before {
		t.Errorf("input mutated: %q -> %q", before, got)
	}
}

func TestMergeOrderDecidesNameWinner(t *testing.T) {
	a := Partial{Names: ChannelNameIndex{"sky": "a"}}
	b := Partial{Names: ChannelNameIndex{"sky": "b"}}

	if _, names := Merge([]Partial{a, b}); names["sky"] != "b" {
		t.Errorf("a,b: sky -> %q, want b", names["sky"])
	}
	if _, names := Merge([]Partial{b, a}); names["sky"] != "a" {
		t.Errorf("b,a: sky -> %q, want a", names["sky"])
	}
}

func TestMergeEmpty(t *testing.T) {
	sched, names := Merge(nil)
	if sched == nil || names == nil {
		t.Fatal("Merge(nil) must return non-nil maps")
	}
	if len(sched) != 0 || len(names) != 0 {
		t.Fatalf("got %v %v", sched, names)
	}

	sched, _ = Merge([]Partial{{}, {Schedule: Schedule{"x": nil}}})
	if _, ok := sched["x"]; ok {
		t.Error("channel without programs must not appear")
	}
}
