// Package geoplugin is a reference AddrResolver/CNAMEResolver
// implementation standing in for gdnsd's GeoIP plugin
// (original_source/plugins/meta/geoip.c): it maps a client's address to
// a datacenter via a static subnet table rather than a real GeoIP
// database, which spec.md §1 explicitly places out of scope.
package geoplugin

import (
	"fmt"
	"net"
	"net/netip"
	"sort"

	"github.com/geodnsd/geodnsd/internal/dname"
	"github.com/geodnsd/geodnsd/internal/plugin"
)

// Datacenter is one named group of addresses a resource can resolve to.
type Datacenter struct {
	Name string
	V4   []netip.Addr
	V6   []netip.Addr
}

// Resource is a dynamic address resource: its datacenters, keyed by
// name, and their preference order. The subnet rules that pick a
// datacenter for a client are held by Resolver.
type Resource struct {
	Datacenters map[string]Datacenter
	// Order lists datacenter names in the resource's configured
	// preference order, used as the fallback when no subnet matches.
	Order []string
}

// CNAMEResource is a dynamic CNAME resource: one target name per
// datacenter.
type CNAMEResource struct {
	Targets map[string]dname.Name
	Order   []string
}

// subnetRule maps one client prefix to a datacenter name; rules are
// evaluated longest-prefix-first, mirroring gdmaps_lookup's behavior.
type subnetRule struct {
	prefix netip.Prefix
	dc     string
}

// Resolver is a static, table-driven stand-in for gdnsd's gdmaps-backed
// GeoIP plugin.
type Resolver struct {
	addrResources  map[string]Resource
	cnameResources map[string]CNAMEResource
	rules          []subnetRule
}

// New returns an empty Resolver; callers populate it via AddAddrResource,
// AddCNAMEResource and AddSubnetRule at config-load time.
func New() *Resolver {
	return &Resolver{
		addrResources:  make(map[string]Resource),
		cnameResources: make(map[string]CNAMEResource),
	}
}

func (r *Resolver) AddAddrResource(id string, res Resource) { r.addrResources[id] = res }
func (r *Resolver) AddCNAMEResource(id string, res CNAMEResource) {
	r.cnameResources[id] = res
}

// AddSubnetRule registers a client-subnet -> datacenter mapping.
func (r *Resolver) AddSubnetRule(prefix netip.Prefix, dc string) {
	r.rules = append(r.rules, subnetRule{prefix: prefix, dc: dc})
	sort.Slice(r.rules, func(i, j int) bool {
		return r.rules[i].prefix.Bits() > r.rules[j].prefix.Bits()
	})
}

// pickDatacenter returns the datacenter name for a client, preferring
// the EDNS Client Subnet address over the query's source address, per
// spec.md §6's client_info contract; scopeMask is the prefix length the
// decision is valid for, echoed back in the response's ECS option.
func (r *Resolver) pickDatacenter(client plugin.ClientInfo) (dc string, scopeMask uint8) {
	addr := client.DNSSource
	mask := uint8(32)
	if client.EDNSClientIP != nil {
		addr = client.EDNSClientIP
		mask = client.EDNSClientMask
	}
	ip, ok := netip.AddrFromSlice(addr)
	if ok {
		for _, rule := range r.rules {
			if rule.prefix.Contains(ip) {
				return rule.dc, uint8(rule.prefix.Bits())
			}
		}
	}
	return "", mask
}

// ResolveAddr implements plugin.AddrResolver.
func (r *Resolver) ResolveAddr(_ int, resourceID string, client plugin.ClientInfo) (plugin.AddrResult, error) {
	res, ok := r.addrResources[resourceID]
	if !ok {
		return plugin.AddrResult{}, fmt.Errorf("geoplugin: unknown address resource %q", resourceID)
	}
	dc, scope := r.pickDatacenter(client)
	d, ok := res.Datacenters[dc]
	if !ok {
		for _, name := range res.Order {
			if cand, ok := res.Datacenters[name]; ok {
				d = cand
				break
			}
		}
	}
	out := plugin.AddrResult{ScopeMask: scope}
	for _, a := range d.V4 {
		out.V4 = append(out.V4, net.IP(a.AsSlice()))
	}
	for _, a := range d.V6 {
		out.V6 = append(out.V6, net.IP(a.AsSlice()))
	}
	return out, nil
}

// ResolveCNAME implements plugin.CNAMEResolver.
func (r *Resolver) ResolveCNAME(_ int, resourceID string, _ dname.Name, client plugin.ClientInfo) (plugin.CNAMEResult, error) {
	res, ok := r.cnameResources[resourceID]
	if !ok {
		return plugin.CNAMEResult{}, fmt.Errorf("geoplugin: unknown cname resource %q", resourceID)
	}
	dc, scope := r.pickDatacenter(client)
	target, ok := res.Targets[dc]
	if !ok {
		for _, name := range res.Order {
			if t, ok := res.Targets[name]; ok {
				target = t
				break
			}
		}
	}
	return plugin.CNAMEResult{Target: target, ScopeMask: scope}, nil
}
