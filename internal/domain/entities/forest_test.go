package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/pkg/treepath"
)

func TestForest_MarshalAndParse(t *testing.T) {
	f := NewForest()
	tree := f.AddTree(treepath.New("files", "etc", "netplan", "90-ifsync-br0.yaml"))
	tree.Set("network/version", "2")
	tree.Set(LabelBridge, "br0")
	ports := tree.Array("network/bridges/br0/interfaces")
	ports.Append("eth3")
	ports.Append("bond0")
	addr := tree.Array("network/bridges/br0/routes")
	e := addr.Append("")
	e.Set("to", "default")
	e.Set("via", "10.0.0.1")

	out, err := f.Marshal()
	require.NoError(t, err)

	parsed, err := ParseForest(out)
	require.NoError(t, err)
	require.Len(t, parsed.Trees, 1)

	got := parsed.Tree("files/etc/netplan/90-ifsync-br0.yaml")
	require.NotNil(t, got)
	v, ok := got.Get("network/version")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, []string{"eth3", "bond0"}, got.FindArray("network/bridges/br0/interfaces").Values())

	via, ok := got.FindArray("network/bridges/br0/routes").Elements[0].Get("via")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", via)
}

func TestParseForest_MalformedShape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"wrong root", `<trees><tree path="a"/></trees>`},
		{"wrong tree name", `<forest><leaf path="a"/></forest>`},
		{"tree without path", `<forest><tree><node label="x" value="1"/></tree></forest>`},
		{"node without label", `<forest><tree path="a"><node value="1"/></tree></forest>`},
		{"array without label", `<forest><tree path="a"><array><element value="x"/></array></tree></forest>`},
		{"wrong element name", `<forest><tree path="a"><array label="l"><item value="x"/></array></tree></forest>`},
		{"not xml", `<forest>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForest([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, domainErrors.CodeInternal, domainErrors.CodeOf(err))
		})
	}
}

func TestIsRelationLabel(t *testing.T) {
	assert.True(t, IsRelationLabel(LabelMaster))
	assert.True(t, IsRelationLabel(LabelParent))
	assert.False(t, IsRelationLabel("MASTER"))
}
