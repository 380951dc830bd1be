package epg

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"sort"

	"github.com/google/renameio/v2"
)

// GeneratorName is written into the generator-info-name attribute.
const GeneratorName = "epgmerge"

type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
}

type Programme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   Title  `xml:"title"`
	Desc    string `xml:"desc,omitempty"`
}

type Title struct {
	// Lang contains the language code for the title (optional).
	Lang string `xml:"lang,attr,omitempty"`
	// Value is the character data of the title element.
	Value string `xml:",chardata"`
}

// BuildTV turns a merged schedule back into an XMLTV document.
//
// Channels are emitted in id order. Every channel that appears in either the
// schedule or the name index gets a <channel> element; its display names are
// the index keys pointing at it, sorted.
func BuildTV(sched Schedule, names ChannelNameIndex) *TV {
	byID := map[string][]string{}
	for name, id := range names {
		byID[id] = append(byID[id], name)
	}
	for id := range sched {
		if _, ok := byID[id]; !ok {
			byID[id] = nil
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tv := &TV{
		Generator: GeneratorName,
		Channels:  make([]Channel, 0, len(ids)),
		Programs:  make([]Programme, 0, sched.Programmes()),
	}
	for _, id := range ids {
		dn := byID[id]
		sort.Strings(dn)
		tv.Channels = append(tv.Channels, Channel{ID: id, DisplayName: dn})
		for _, p := range sched[id] {
			tv.Programs = append(tv.Programs, Programme{
				Start:   formatXMLTVTime(p.Start),
				Stop:    formatXMLTVTime(p.Stop),
				Channel: id,
				Title:   Title{Value: p.Title},
				Desc:    p.Description,
			})
		}
	}
	return tv
}

// Encode writes tv with an XML header to w.
func Encode(w io.Writer, tv *TV) error {
	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(bw)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	if _, err := io.WriteString(bw, "\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteXMLTV atomically replaces path with the encoded document.
func WriteXMLTV(tv *TV, path string) error {
	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if err := Encode(pf, tv); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
