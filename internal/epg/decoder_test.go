// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func utc(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

func decodeString(t *testing.T, doc string) (Partial, DecodeStats) {
	t.Helper()
	p, stats, err := NewDecoder(TimeParser{}).Decode(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return p, stats
}

const mixedDoc = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="test">
  <channel id="espn.us">
    <display-name>ESPN HD</display-name>
    <display-name>  ESPN  </display-name>
    <icon src="http://example.com/espn.png"/>
  </channel>
  <channel id="">
    <display-name>Nameless</display-name>
  </channel>
  <programme channel="espn.us" start="20250101120000 +0000" stop="20250101130000 +0000">
    <title lang="en">SportsCenter</title>
    <title lang="es">Centro Deportivo</title>
    <desc lang="en">Highlights</desc>
    <category>Sports</category>
  </programme>
  <programme channel="espn.us" start="garbage" stop="20250101140000 +0000">
    <title>Bad Start</title>
  </programme>
  <programme channel="espn.us" start="20250101130000 +0000" stop="20250101140000 +0000">
    <title>   </title>
  </programme>
  <programme channel="espn.us" start="20250101160000 +0000" stop="20250101150000 +0000">
    <title>Reversed</title>
  </programme>
  <programme channel="" start="20250101120000 +0000" stop="20250101130000 +0000">
    <title>No Channel</title>
  </programme>
  <programme channel="espn.us" start="20250101140000+0000" stop="20250101150000+0000">
    <title>Late Show</title>
  </programme>
</tv>`

func TestDecodeMixedDocument(t *testing.T) {
	got, stats := decodeString(t, mixedDoc)

	want := Partial{
		Schedule: Schedule{
			"espn.us": {
				{ChannelID: "espn.us", Title: "SportsCenter", Description: "Highlights", Start: utc(2025, 1, 1, 12, 0), Stop: utc(2025, 1, 1, 13, 0)},
				{ChannelID: "espn.us", Title: "Late Show", Start: utc(2025, 1, 1, 14, 0), Stop: utc(2025, 1, 1, 15, 0)},
			},
		},
		Names: ChannelNameIndex{
			"espn hd": "espn.us",
			"espn":    "espn.us",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}

	wantStats := DecodeStats{Channels: 2, Names: 2, Programmes: 2, Dropped: 4}
	if stats != wantStats {
		t.Errorf("stats = %+v, want %+v", stats, wantStats)
	}
}

func TestDecodeIndexesDisplayName(t *testing.T) {
	got, _ := decodeString(t, `<tv><channel id="x"><display-name>ESPN HD</display-name></channel></tv>`)
	if id, ok := got.Names["espn hd"]; !ok || id != "x" {
		t.Fatalf(`Names["espn hd"] = %q, %v; want "x"`, id, ok)
	}
	if id, ok := got.Names.Lookup("  Espn HD "); !ok || id != "x" {
		t.Fatalf("Lookup = %q, %v; want x", id, ok)
	}
}

func TestDecodeOneProgramPerValidBlock(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<tv>`)
	for i := range 40 {
		start := utc(2025, 3, 1, 0, 0).Add(time.Duration(i) * 30 * time.Minute)
		fmt.Fprintf(&b, `<programme channel="c%d" start="%s" stop="%s"><title>Show %d</title></programme>`,
			i%3, formatXMLTVTime(start), formatXMLTVTime(start.Add(30*time.Minute)), i)
	}
	b.WriteString(`</tv>`)

	var observed int
	dec := NewDecoder(TimeParser{})
	dec.OnProgramme = func(Program) { observed++ }

	got, stats, err := dec.Decode(context.Background(), strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n := got.Schedule.Programmes(); n != 40 {
		t.Errorf("programmes = %d, want 40", n)
	}
	if len(got.Schedule) != 3 {
		t.Errorf("channels = %d, want 3", len(got.Schedule))
	}
	if observed != 40 || stats.Programmes != 40 {
		t.Errorf("observed = %d, stats = %d; want 40", observed, stats.Programmes)
	}
}

func TestDecodeBareTimestampUsesDefaultZone(t *testing.T) {
	doc := `<tv><programme channel="a" start="20250101120000" stop="20250101130000"><title>T</title></programme></tv>`
	dec := NewDecoder(TimeParser{Default: time.FixedZone("UTC+1", 3600)})
	got, _, err := dec.Decode(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	progs := got.Schedule["a"]
	if len(progs) != 1 {
		t.Fatalf("got %d programs, want 1", len(progs))
	}
	if want := utc(2025, 1, 1, 11, 0); !progs[0].Start.Equal(want) {
		t.Errorf("start = %v, want %v", progs[0].Start, want)
	}
}

func TestDecodeEntitiesAndCharset(t *testing.T) {
	t.Run("html entities", func(t *testing.T) {
		got, _ := decodeString(t, `<tv><programme channel="a" start="20250101120000 +0000" stop="20250101130000 +0000"><title>Caf&eacute; &amp; Bar</title></programme></tv>`)
		if title := got.Schedule["a"][0].Title; title != "Café & Bar" {
			t.Errorf("title = %q", title)
		}
	})

	t.Run("latin1", func(t *testing.T) {
		doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
			"<tv><channel id=\"c\"><display-name>Caf\xe9 TV</display-name></channel></tv>"
		got, _ := decodeString(t, doc)
		if id := got.Names["café tv"]; id != "c" {
			t.Errorf("Names = %v", got.Names)
		}
	})
}

func TestDecodeNestedMarkupInTitle(t *testing.T) {
	got, _ := decodeString(t, `<tv><programme channel="a" start="20250101120000 +0000" stop="20250101130000 +0000"><title>The <i>Big</i> Show</title><rating><value>PG</value></rating></programme></tv>`)
	if title := got.Schedule["a"][0].Title; title != "The Big Show" {
		t.Errorf("title = %q", title)
	}
}

func TestDecodeMalformedDocument(t *testing.T) {
	for name, doc := range map[string]string{
		"mismatched": `<tv><channel id="a"><display-name>A</display-name></tv>`,
		"truncated":  `<tv><programme channel="a" start="20250101120000 +0000" stop="20250101130000 +0000"><title>T`,
		"garbage":    `<invalid xml`,
	} {
		t.Run(name, func(t *testing.T) {
			p, _, err := NewDecoder(TimeParser{}).Decode(context.Background(), strings.NewReader(doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "decode xmltv") {
				t.Errorf("error = %v", err)
			}
			if !p.Empty() {
				t.Errorf("partial should be empty on failure: %+v", p)
			}
		})
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	got, stats := decodeString(t, "")
	if !got.Empty() || stats != (DecodeStats{}) {
		t.Fatalf("got %+v %+v", got, stats)
	}
}

func TestDecodeHonoursCancellation(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<tv>`)
	for range 3000 {
		b.WriteString(`<programme channel="a" start="20250101120000 +0000" stop="20250101130000 +0000"><title>T</title></programme>`)
	}
	b.WriteString(`</tv>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewDecoder(TimeParser{}).Decode(ctx, strings.NewReader(b.String()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
