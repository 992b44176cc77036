package zoneload

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/ztree"
)

// yamlZone is the YAML shorthand zone-source format, a trimmed-down
// cousin of the teacher's DNSZoneFile (internal/zone/parser_dnszone.go):
// one SOA section, a flat per-owner record map, and two GeoIP-specific
// record kinds (dynaddr/dyncname) the RFC1035 text format has no
// syntax for.
type yamlZone struct {
	Origin string                  `yaml:"origin"`
	TTL    uint32                  `yaml:"ttl,omitempty"`
	SOA    yamlSOA                 `yaml:"soa"`
	NS     []string                `yaml:"ns"`
	Nodes  map[string]yamlNodeSpec `yaml:"records"`
}

type yamlSOA struct {
	MName   string `yaml:"mname"`
	RName   string `yaml:"rname"`
	Serial  uint32 `yaml:"serial"`
	Refresh uint32 `yaml:"refresh"`
	Retry   uint32 `yaml:"retry"`
	Expire  uint32 `yaml:"expire"`
	Minimum uint32 `yaml:"minimum"`
}

// yamlNodeSpec holds every record kind that may appear at one owner
// name. Static and dynamic forms are mutually exclusive per RR type,
// same as the engine's RRSet.
type yamlNodeSpec struct {
	A         []string `yaml:"a,omitempty"`
	AAAA      []string `yaml:"aaaa,omitempty"`
	DynAddr   string   `yaml:"dynaddr,omitempty"`
	CNAME     string   `yaml:"cname,omitempty"`
	DynCNAME  string   `yaml:"dyncname,omitempty"`
	MX        []yamlMX `yaml:"mx,omitempty"`
	NS        []string `yaml:"ns,omitempty"`
	TXT       []string `yaml:"txt,omitempty"`
	TTL       uint32   `yaml:"ttl,omitempty"`
}

type yamlMX struct {
	Preference uint16 `yaml:"preference"`
	Exchange   string `yaml:"exchange"`
}

// parseYAMLZone parses the YAML shorthand format into a ztree.Zone.
func parseYAMLZone(path, origin string, defaultTTL uint32) (*ztree.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var zf yamlZone
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("zoneload: parsing %s: %w", path, err)
	}
	if zf.Origin != "" {
		origin = zf.Origin
	}
	ttl := defaultTTL
	if zf.TTL != 0 {
		ttl = zf.TTL
	}

	originName, err := nameFromPresentation(dnsFqdn(origin))
	if err != nil {
		return nil, fmt.Errorf("origin %q: %w", origin, err)
	}
	b := ztree.NewBuilder(originName, ttl)

	mname, err := nameFromPresentation(zf.SOA.MName)
	if err != nil {
		return nil, fmt.Errorf("soa mname: %w", err)
	}
	rname, err := nameFromPresentation(zf.SOA.RName)
	if err != nil {
		return nil, fmt.Errorf("soa rname: %w", err)
	}
	if err := b.AddRRSet(originName, &ztree.RRSet{Type: ztree.TypeSOA, TTL: ttl, SOA: &ztree.SOAFields{
		MName: mname, RName: rname, Serial: zf.SOA.Serial, Refresh: zf.SOA.Refresh,
		Retry: zf.SOA.Retry, Expire: zf.SOA.Expire, Minimum: zf.SOA.Minimum,
	}}); err != nil {
		return nil, err
	}

	if len(zf.NS) > 0 {
		rs := &ztree.RRSet{Type: ztree.TypeNS, TTL: ttl}
		for _, ns := range zf.NS {
			target, err := nameFromPresentation(ns)
			if err != nil {
				return nil, fmt.Errorf("apex ns: %w", err)
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target})
		}
		if err := b.AddRRSet(originName, rs); err != nil {
			return nil, err
		}
	}

	for ownerStr, spec := range zf.Nodes {
		owner, err := resolveOwner(ownerStr, originName)
		if err != nil {
			return nil, err
		}
		nodeTTL := ttl
		if spec.TTL != 0 {
			nodeTTL = spec.TTL
		}
		if err := addYAMLNode(b, owner, nodeTTL, spec); err != nil {
			return nil, fmt.Errorf("zoneload: %s: %w", ownerStr, err)
		}
	}

	zone, err := b.Finish(fileModTime(path))
	if err != nil {
		return nil, err
	}
	linkGlue(zone)
	return zone, nil
}

// resolveOwner turns a records-map key into an absolute name: "@" or ""
// means the zone apex, a trailing dot means already-absolute
// presentation form, anything else is relative to origin.
func resolveOwner(ownerStr string, origin dname.Name) (dname.Name, error) {
	if ownerStr == "" || ownerStr == "@" {
		return origin, nil
	}
	if ownerStr[len(ownerStr)-1] == '.' {
		return nameFromPresentation(ownerStr)
	}
	return nameFromPresentation(ownerStr + "." + origin.String())
}

func addYAMLNode(b *ztree.Builder, ownerName dname.Name, ttl uint32, spec yamlNodeSpec) error {
	if spec.DynAddr != "" && (len(spec.A) > 0 || len(spec.AAAA) > 0) {
		return fmt.Errorf("zoneload: dynaddr cannot be combined with static a/aaaa records")
	}
	if spec.DynCNAME != "" && spec.CNAME != "" {
		return fmt.Errorf("zoneload: dyncname cannot be combined with a static cname")
	}
	if len(spec.A) > 0 || len(spec.AAAA) > 0 || spec.DynAddr != "" {
		rs := &ztree.RRSet{Type: ztree.TypeAddr, TTL: ttl, DynAddrID: spec.DynAddr}
		for _, s := range spec.A {
			ip, err := parseIP(s)
			if err != nil {
				return err
			}
			rs.V4 = append(rs.V4, ip)
		}
		for _, s := range spec.AAAA {
			ip, err := parseIP(s)
			if err != nil {
				return err
			}
			rs.V6 = append(rs.V6, ip)
		}
		if err := b.AddRRSet(ownerName, rs); err != nil {
			return err
		}
	}

	if spec.CNAME != "" || spec.DynCNAME != "" {
		rs := &ztree.RRSet{Type: ztree.TypeCNAME, TTL: ttl, DynCNAME: spec.DynCNAME}
		if spec.CNAME != "" {
			target, err := nameFromPresentation(spec.CNAME)
			if err != nil {
				return err
			}
			rs.Targets = []ztree.NameTarget{{Name: target}}
		}
		if err := b.AddRRSet(ownerName, rs); err != nil {
			return err
		}
	}

	if len(spec.MX) > 0 {
		rs := &ztree.RRSet{Type: ztree.TypeMX, TTL: ttl}
		for _, mx := range spec.MX {
			target, err := nameFromPresentation(mx.Exchange)
			if err != nil {
				return err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target, Preference: mx.Preference})
		}
		if err := b.AddRRSet(ownerName, rs); err != nil {
			return err
		}
	}

	if len(spec.NS) > 0 {
		rs := &ztree.RRSet{Type: ztree.TypeNS, TTL: ttl}
		for _, ns := range spec.NS {
			target, err := nameFromPresentation(ns)
			if err != nil {
				return err
			}
			rs.Targets = append(rs.Targets, ztree.NameTarget{Name: target})
		}
		if err := b.AddRRSet(ownerName, rs); err != nil {
			return err
		}
	}

	if len(spec.TXT) > 0 {
		rs := &ztree.RRSet{Type: ztree.TypeTXT, TTL: ttl}
		for _, s := range spec.TXT {
			rs.Text = append(rs.Text, []byte(s))
		}
		if err := b.AddRRSet(ownerName, rs); err != nil {
			return err
		}
	}
	return nil
}

func dnsFqdn(s string) string {
	if s == "" {
		return "."
	}
	if s[len(s)-1] == '.' {
		return s
	}
	return s + "."
}
