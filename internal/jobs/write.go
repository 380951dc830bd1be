// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ManuGH/epgmerge/internal/epg"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/metrics"
)

// DefaultXMLTVFile is the export file name inside the data directory.
const DefaultXMLTVFile = "merged.xml"

// WriteXMLTV exports the merged schedule as an XMLTV document. The file is
// replaced atomically so readers never observe a partial document.
func WriteXMLTV(ctx context.Context, path string, sched epg.Schedule, names epg.ChannelNameIndex) error {
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	tv := epg.BuildTV(sched, names)
	if err := epg.WriteXMLTV(tv, path); err != nil {
		metrics.IncXMLTVWriteError()
		return fmt.Errorf("write XMLTV %s: %w", path, err)
	}

	logger.Info().
		Str(xglog.FieldEvent, "xmltv.write").
		Str(xglog.FieldPath, path).
		Int(xglog.FieldChannels, len(tv.Channels)).
		Int(xglog.FieldProgrammes, len(tv.Programs)).
		Msg("XMLTV export written")
	return nil
}

// ExportPath resolves the XMLTV export file inside dataDir. name must be a
// plain file name; an empty name selects DefaultXMLTVFile.
func ExportPath(dataDir, name string) (string, error) {
	if name == "" {
		name = DefaultXMLTVFile
	}

	base := filepath.Base(name)
	if base != name || strings.Contains(base, "..") {
		return "", fmt.Errorf("invalid XMLTV file name %q: must not contain directories", name)
	}
	cleaned := filepath.Clean(base)
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("invalid XMLTV file name %q: not local", name)
	}
	if filepath.Ext(cleaned) != ".xml" {
		cleaned += ".xml"
	}
	return filepath.Join(dataDir, cleaned), nil
}
