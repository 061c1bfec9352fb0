package grapht

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	c := testConfig(t)
	assert.Equal(t, 1, c.Version)
	require.Len(t, c.Model, 4)

	project := c.Model[3]
	assert.Equal(t, "Project", project.Name)
	require.Len(t, project.Rels, 2)
	assert.False(t, project.Rels[0].List)
	assert.True(t, project.Rels[1].List)
	assert.Equal(t, []string{"Feature", "Bug"}, project.Rels[1].Nodes)
	assert.Equal(t, "NonEmpty", project.Props[0].Validator)
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := ParseConfig([]byte("version: [not, a, number]"))
	assert.True(t, IsKind(err, ErrConfigDeserialization), "got %v", err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.True(t, IsKind(err, ErrConfigNotFound), "got %v", err)
}

func TestEndpointsFilterDefaults(t *testing.T) {
	t.Run("omitted block permits everything", func(t *testing.T) {
		c, err := ParseConfig([]byte("version: 1\nmodel:\n  - name: Thing\n"))
		require.NoError(t, err)
		assert.Equal(t, AllEndpoints(), c.Model[0].Filter())
	})

	t.Run("partial block defaults the rest to true", func(t *testing.T) {
		c, err := ParseConfig([]byte(`
version: 1
model:
  - name: Thing
    endpoints:
      delete: false
`))
		require.NoError(t, err)
		f := c.Model[0].Filter()
		assert.True(t, f.Read)
		assert.True(t, f.Create)
		assert.True(t, f.Update)
		assert.False(t, f.Delete)
	})
}

func TestValidateRejectsDuplicateType(t *testing.T) {
	c, err := ParseConfig([]byte(`
version: 1
model:
  - name: Thing
  - name: Thing
`))
	require.NoError(t, err)
	assert.True(t, IsKind(c.Validate(), ErrConfigTypeDuplicate))
}

func TestValidateRejectsScalarTypeName(t *testing.T) {
	for _, name := range []string{"Int", "Float", "String", "Boolean", "ID"} {
		c := &Config{Version: 1, Model: []TypeConfig{{Name: name}}}
		assert.True(t, IsKind(c.Validate(), ErrConfigTypeScalarName), "type %s", name)
	}
}

func TestValidateRejectsPropNamedID(t *testing.T) {
	t.Run("on a type", func(t *testing.T) {
		c := &Config{Version: 1, Model: []TypeConfig{{
			Name:  "Thing",
			Props: []PropConfig{{Name: "ID", Type: "String"}},
		}}}
		assert.True(t, IsKind(c.Validate(), ErrInvalidPropNameID))
	})

	t.Run("on a relationship", func(t *testing.T) {
		c := &Config{Version: 1, Model: []TypeConfig{{
			Name: "Thing",
			Rels: []RelConfig{{
				Name:  "other",
				Nodes: []string{"Thing"},
				Props: []PropConfig{{Name: "id", Type: "String"}},
			}},
		}}}
		assert.True(t, IsKind(c.Validate(), ErrInvalidPropNameID))
	})
}

func TestValidateRejectsDuplicateEndpoint(t *testing.T) {
	out := &EndpointTypeConfig{Scalar: "String"}
	c := &Config{Version: 1, Endpoints: []EndpointConfig{
		{Name: "Echo", Class: EndpointQuery, Output: out},
		{Name: "Echo", Class: EndpointMutation, Output: out},
	}}
	assert.True(t, IsKind(c.Validate(), ErrConfigEndpointDuplicate))
}

func TestValidateRejectsScalarEndpointTypeNames(t *testing.T) {
	t.Run("input", func(t *testing.T) {
		c := &Config{Version: 1, Endpoints: []EndpointConfig{{
			Name:   "Echo",
			Class:  EndpointQuery,
			Input:  &EndpointTypeConfig{Custom: &TypeConfig{Name: "String"}},
			Output: &EndpointTypeConfig{Scalar: "String"},
		}}}
		assert.True(t, IsKind(c.Validate(), ErrConfigEndpointInputTypeScalarName))
	})

	t.Run("output", func(t *testing.T) {
		c := &Config{Version: 1, Endpoints: []EndpointConfig{{
			Name:   "Echo",
			Class:  EndpointQuery,
			Output: &EndpointTypeConfig{Custom: &TypeConfig{Name: "Boolean"}},
		}}}
		assert.True(t, IsKind(c.Validate(), ErrConfigEndpointOutputTypeScalarName))
	})
}

func TestCompose(t *testing.T) {
	t.Run("merges models and endpoints", func(t *testing.T) {
		a, err := ParseConfig([]byte("version: 2\nmodel:\n  - name: A\n"))
		require.NoError(t, err)
		b, err := ParseConfig([]byte("version: 2\nmodel:\n  - name: B\n"))
		require.NoError(t, err)

		merged, err := Compose([]*Config{a, b})
		require.NoError(t, err)
		assert.Equal(t, 2, merged.Version)
		assert.Len(t, merged.Model, 2)
	})

	t.Run("rejects version mismatch", func(t *testing.T) {
		a := &Config{Version: 1}
		b := &Config{Version: 2}
		_, err := Compose([]*Config{a, b})
		assert.True(t, IsKind(err, ErrConfigVersionMismatch))
	})

	t.Run("leaves duplicates for validation", func(t *testing.T) {
		a := &Config{Version: 1, Model: []TypeConfig{{Name: "A"}}}
		merged, err := Compose([]*Config{a, a})
		require.NoError(t, err)
		assert.True(t, IsKind(merged.Validate(), ErrConfigTypeDuplicate))
	})
}

func TestComposeDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("version: 1\nmodel:\n  - name: A\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("version: 1\nmodel:\n  - name: B\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not yaml"), 0o644))

	c, err := ComposeDir(dir)
	require.NoError(t, err)
	assert.Len(t, c.Model, 2)
	require.NoError(t, c.Validate())
}
