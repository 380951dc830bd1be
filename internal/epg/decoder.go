// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// maxFieldBytes caps the character data buffered for a single tracked field.
const maxFieldBytes = 64 * 1024

// ctxCheckEvery is the number of tokens between context checks.
const ctxCheckEvery = 4096

// DecodeStats counts what a decode pass saw.
type DecodeStats struct {
	Channels   int // <channel> elements seen
	Names      int // display names indexed
	Programmes int // programs emitted
	Dropped    int // <programme> elements rejected on data quality
}

// Decoder turns one XMLTV document into a Partial. It walks the token stream
// and holds at most one open <channel> or <programme> in memory.
type Decoder struct {
	Times TimeParser

	// OnProgramme, when set, observes every emitted program.
	OnProgramme func(Program)
}

// NewDecoder returns a decoder that interprets offset-less timestamps through tp.
func NewDecoder(tp TimeParser) *Decoder {
	return &Decoder{Times: tp}
}

type decodeState int

const (
	stateIdle decodeState = iota
	stateChannel
	stateProgramme
)

type field int

const (
	fieldNone field = iota
	fieldDisplayName
	fieldTitle
	fieldDesc
)

// fieldBuffer collects character data for one tracked child element.
type fieldBuffer struct {
	kind  field
	depth int
	buf   strings.Builder
}

func (f *fieldBuffer) open(kind field, depth int) {
	f.kind = kind
	f.depth = depth
	f.buf.Reset()
}

func (f *fieldBuffer) write(b []byte) {
	if f.kind == fieldNone {
		return
	}
	if room := maxFieldBytes - f.buf.Len(); room > 0 {
		if len(b) > room {
			b = b[:room]
		}
		f.buf.Write(b)
	}
}

func (f *fieldBuffer) close() string {
	s := strings.TrimSpace(f.buf.String())
	f.kind = fieldNone
	f.buf.Reset()
	return s
}

type channelState struct {
	id    string
	names []string
}

type programmeState struct {
	channel     string
	start, stop string
	title, desc string
}

// Decode consumes r until EOF. A malformed document returns an error and the
// caller discards everything decoded from it. Malformed entries inside an
// otherwise valid document are skipped and counted in DecodeStats.Dropped.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (Partial, DecodeStats, error) {
	out := Partial{Schedule: Schedule{}, Names: ChannelNameIndex{}}
	var stats DecodeStats

	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	var (
		state      decodeState
		depth      int
		stateDepth int
		fb         fieldBuffer
		ch         channelState
		prog       programmeState
		n          int
	)

	for {
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Partial{}, stats, err
			}
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Partial{}, stats, fmt.Errorf("decode xmltv: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch state {
			case stateIdle:
				switch t.Name.Local {
				case "channel":
					state, stateDepth = stateChannel, depth
					ch = channelState{id: strings.TrimSpace(attr(t, "id"))}
					stats.Channels++
				case "programme":
					state, stateDepth = stateProgramme, depth
					prog = programmeState{
						channel: strings.TrimSpace(attr(t, "channel")),
						start:   attr(t, "start"),
						stop:    attr(t, "stop"),
					}
				}
			case stateChannel:
				if fb.kind == fieldNone && t.Name.Local == "display-name" {
					fb.open(fieldDisplayName, depth)
				}
			case stateProgramme:
				if fb.kind == fieldNone {
					switch t.Name.Local {
					case "title":
						fb.open(fieldTitle, depth)
					case "desc":
						fb.open(fieldDesc, depth)
					}
				}
			}

		case xml.CharData:
			fb.write(t)

		case xml.EndElement:
			if fb.kind != fieldNone && depth == fb.depth {
				kind := fb.kind
				text := fb.close()
				switch kind {
				case fieldDisplayName:
					if text != "" {
						ch.names = append(ch.names, text)
					}
				case fieldTitle:
					if prog.title == "" {
						prog.title = text
					}
				case fieldDesc:
					if prog.desc == "" {
						prog.desc = text
					}
				}
			}

			if state != stateIdle && depth == stateDepth {
				switch state {
				case stateChannel:
					if ch.id != "" {
						for _, name := range ch.names {
							if key := NameKey(name); key != "" {
								out.Names[key] = ch.id
								stats.Names++
							}
						}
					}
				case stateProgramme:
					if p, ok := d.program(prog); ok {
						out.Schedule[p.ChannelID] = append(out.Schedule[p.ChannelID], p)
						stats.Programmes++
						if d.OnProgramme != nil {
							d.OnProgramme(p)
						}
					} else {
						stats.Dropped++
					}
				}
				state = stateIdle
			}
			depth--
		}
	}

	return out, stats, nil
}

// program validates a finished <programme>.
func (d *Decoder) program(ps programmeState) (Program, bool) {
	if ps.channel == "" || ps.title == "" {
		return Program{}, false
	}
	start, ok := d.Times.Parse(ps.start)
	if !ok {
		return Program{}, false
	}
	stop, ok := d.Times.Parse(ps.stop)
	if !ok {
		return Program{}, false
	}
	if !start.Before(stop) {
		return Program{}, false
	}
	return Program{
		ChannelID:   ps.channel,
		Title:       ps.title,
		Description: ps.desc,
		Start:       start,
		Stop:        stop,
	}, true
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
