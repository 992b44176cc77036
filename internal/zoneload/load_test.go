package zoneload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geodnsd/geodnsd/internal/ztree"
)

const textZone = `$ORIGIN example.com.
$TTL 3600
@       IN SOA  ns1.example.com. hostmaster.example.com. 1 3600 900 604800 3600
@       IN NS   ns1.example.com.
ns1     IN A    192.0.2.10
www     IN A    192.0.2.1
www     IN AAAA 2001:db8::1
alias   IN CNAME www.example.com.
mail    IN MX   10 ns1.example.com.
`

func TestLoadFileTextZone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.com")
	require.NoError(t, os.WriteFile(path, []byte(textZone), 0o644))

	zone, err := LoadFile(path, "example.com.", 3600)
	require.NoError(t, err)
	require.NotNil(t, zone.Apex().RRSet(ztree.TypeSOA))
	require.NotNil(t, zone.Apex().RRSet(ztree.TypeNS))
}

func TestLoadFileTextZoneGlueLinked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.com")
	require.NoError(t, os.WriteFile(path, []byte(textZone), 0o644))

	zone, err := LoadFile(path, "example.com.", 3600)
	require.NoError(t, err)

	// The zone's own apex NS RR-set is ordinary authority data, not
	// delegation glue: "required" glue means a subzone's NS target
	// below the zone's apex (spec.md's delegation glue), which the
	// apex's own NS RR-set is not.
	ns := zone.Apex().RRSet(ztree.TypeNS)
	require.Len(t, ns.Targets, 1)
	require.NotNil(t, ns.Targets[0].Additional)
	require.False(t, ns.Targets[0].Additional.Required)
}

const delegZoneText = `$ORIGIN example.com.
$TTL 3600
@       IN SOA  ns1.example.com. hostmaster.example.com. 1 3600 900 604800 3600
@       IN NS   ns1.example.com.
ns1     IN A    192.0.2.10
sub     IN NS   ns1.sub.example.com.
ns1.sub IN A    192.0.2.20
`

func TestLoadFileTextZoneSubzoneNSIsRequiredGlue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.com")
	require.NoError(t, os.WriteFile(path, []byte(delegZoneText), 0o644))

	zone, err := LoadFile(path, "example.com.", 3600)
	require.NoError(t, err)

	var subNode *ztree.Node
	for _, child := range zone.Apex().Children() {
		if string(child.Label()) == string([]byte{3, 's', 'u', 'b'}) {
			subNode = child
		}
	}
	require.NotNil(t, subNode)
	require.True(t, subNode.IsDelegation())

	ns := subNode.RRSet(ztree.TypeNS)
	require.Len(t, ns.Targets, 1)
	require.NotNil(t, ns.Targets[0].Additional)
	require.True(t, ns.Targets[0].Additional.Required)
}

func TestLoadDirSkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "example.com"), []byte(textZone), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".swapfile"), []byte("garbage"), 0o644))

	tree, err := LoadDir(dir, 3600)
	require.NoError(t, err)
	require.NotNil(t, tree)
}

func TestOriginFromFilenameRootZone(t *testing.T) {
	origin, err := originFromFilename(rootZoneFile)
	require.NoError(t, err)
	require.Equal(t, ".", origin)
}

func TestOriginFromFilenameAtSubstitution(t *testing.T) {
	origin, err := originFromFilename("sub@example.com")
	require.NoError(t, err)
	require.Equal(t, "sub/example.com", origin)
}

func TestNameFromPresentationRoot(t *testing.T) {
	n, err := nameFromPresentation(".")
	require.NoError(t, err)
	require.True(t, n.IsRoot())
}

func TestNameFromPresentationEscape(t *testing.T) {
	n, err := nameFromPresentation(`a\.b.example.com.`)
	require.NoError(t, err)
	require.Equal(t, 3, n.LabelCount())
	require.Equal(t, "a.b.example.com.", n.String())
}

const yamlZoneSrc = `
origin: example.org.
ttl: 3600
soa:
  mname: ns1.example.org.
  rname: hostmaster.example.org.
  serial: 1
  refresh: 3600
  retry: 900
  expire: 604800
  minimum: 3600
ns:
  - ns1.example.org.
records:
  www:
    a: ["192.0.2.1"]
  geo:
    dynaddr: web-pool
`

func TestParseYAMLZone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.org.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlZoneSrc), 0o644))

	zone, err := LoadFile(path, "example.org.", 3600)
	require.NoError(t, err)
	require.NotNil(t, zone.Apex().RRSet(ztree.TypeSOA))
	require.NotNil(t, zone.Apex().RRSet(ztree.TypeNS))
}
