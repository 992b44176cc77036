// Package zoneload implements the zone-source directory conventions
// (ROOT_ZONE, "@" => "/", dotfile exclusion, 1004-byte name cap) and
// the two on-disk zone formats (RFC1035 text and a YAML shorthand),
// lowering parsed records into this module's own ztree.Zone
// representation (spec.md §6).
package zoneload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/geodnsd/geodnsd/internal/ztree"
)

// MaxZoneNameLength is the presentation-form name length cap a
// zone-source filename may expand to, before the "@"/"/" and
// ROOT_ZONE substitutions are reversed.
const MaxZoneNameLength = 1004

// rootZoneFile is the reserved filename for the DNS root zone, the one
// zone whose origin cannot be written as a bare filename.
const rootZoneFile = "ROOT_ZONE"

// LoadDir walks dir, treating every non-dotfile regular file as one
// zone source, and returns a Tree with every successfully parsed zone
// added. A file that fails to parse is skipped, and its error message
// is added to the returned error, whose text lists every failure
// separated by "; " (the individual errors are not wrapped).
func LoadDir(dir string, defaultTTL uint32) (*ztree.Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("zoneload: reading %s: %w", dir, err)
	}

	tree := ztree.NewTree()
	var errs []error
	for _, ent := range entries {
		if ent.IsDir() || strings.HasPrefix(ent.Name(), ".") {
			continue
		}
		origin, err := originFromFilename(ent.Name())
		if err != nil {
			errs = append(errs, fmt.Errorf("zoneload: %s: %w", ent.Name(), err))
			continue
		}
		path := filepath.Join(dir, ent.Name())
		zone, err := LoadFile(path, origin, defaultTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("zoneload: %s: %w", ent.Name(), err))
			continue
		}
		tree.AddZone(zone)
	}
	if len(errs) > 0 {
		return tree, joinErrors(errs)
	}
	return tree, nil
}

// originFromFilename recovers a zone's origin name from its on-disk
// file name: ROOT_ZONE names the root, and "@" in a file name stands
// for "/", which cannot appear in a file name (as in RFC 2137-style
// names such as 0/25.2.0.192.in-addr.arpa).
func originFromFilename(name string) (string, error) {
	if name == rootZoneFile {
		return ".", nil
	}
	origin := strings.ReplaceAll(name, "@", "/")
	if len(origin) > MaxZoneNameLength {
		return "", fmt.Errorf("zone name %q exceeds %d octets", origin, MaxZoneNameLength)
	}
	return origin, nil
}

// LoadFile parses a single zone-source file. Files named *.yaml or
// *.dnszone use the YAML shorthand (parseYAMLZone); everything else is
// parsed as RFC1035 presentation-format text via dns.ZoneParser.
func LoadFile(path, origin string, defaultTTL uint32) (*ztree.Zone, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".dnszone":
		return parseYAMLZone(path, origin, defaultTTL)
	default:
		return parseTextZone(path, origin, defaultTTL)
	}
}

// parseTextZone parses RFC1035 zone-file text with dns.ZoneParser and
// lowers the resulting dns.RR stream into a ztree.Zone.
func parseTextZone(path, origin string, defaultTTL uint32) (*ztree.Zone, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fqdn := dns.Fqdn(origin)
	originName, err := nameFromPresentation(fqdn)
	if err != nil {
		return nil, fmt.Errorf("origin %q: %w", origin, err)
	}

	b := ztree.NewBuilder(originName, defaultTTL)
	grouped := newRRGrouper()

	zp := dns.NewZoneParser(f, fqdn, path)
	zp.SetDefaultTTL(defaultTTL)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		if err := grouped.add(rr); err != nil {
			return nil, err
		}
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("zoneload: parsing %s: %w", path, err)
	}
	if err := grouped.build(b); err != nil {
		return nil, err
	}
	zone, err := b.Finish(fileModTime(path))
	if err != nil {
		return nil, err
	}
	linkGlue(zone)
	return zone, nil
}

func fileModTime(path string) time.Time {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return fi.ModTime()
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
