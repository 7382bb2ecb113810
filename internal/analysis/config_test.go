package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/filibuster/internal/ir"
)

func TestLoadYAML(t *testing.T) {
	cfg, err := Load("testdata/analysis.yaml")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxIterations)
	assert.True(t, cfg.SuppressCombinations)
	assert.False(t, cfg.DataNondeterminism)
	assert.True(t, cfg.FailIfFaultNotInjected)
	require.Len(t, cfg.Rules, 2)

	r := cfg.Rules[0]
	assert.Equal(t, "grpc-unavailable", r.Name)
	assert.Equal(t, []ir.CallType{ir.CallTypeGRPC}, r.CallTypes)
	require.Len(t, r.Exceptions, 1)
	assert.Equal(t, "UNAVAILABLE", r.Exceptions[0].Metadata.Code)

	assert.Equal(t, []ir.TransformerType{ir.TransformChar}, cfg.Rules[1].Transformers)
	assert.Equal(t, []string{"", "null"}, cfg.Rules[1].Byzantine)
}

func TestLoadCUE(t *testing.T) {
	cfg, err := Load("testdata/analysis.cue")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.MaxIterations)
	assert.True(t, cfg.SuppressCombinations)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "http-errors", cfg.Rules[0].Name)
	assert.Equal(t, "503", cfg.Rules[0].Exceptions[0].Metadata.Code)

	faults := cfg.FaultsFor(Site{Service: "api", Method: "GET /", CallType: ir.CallTypeHTTP}, nil)
	require.Len(t, faults, 1)
	assert.Equal(t, ir.FaultException, faults[0].Kind)
}

func TestLoadCUE_ErrorHasPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 1\nmax_iterations: 2\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
}

func TestParseYAML_Empty(t *testing.T) {
	cfg, err := ParseYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Empty(t, cfg.Rules)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("max_iteration: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_iteration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"negative max", "max_iterations: -1\n", "max_iterations"},
		{"missing name", "rules:\n  - byzantine: [x]\n", "rules[0].name"},
		{"duplicate name", "rules:\n  - {name: a, byzantine: [x]}\n  - {name: a, byzantine: [y]}\n", "duplicate rule"},
		{"no faults", "rules:\n  - name: a\n", "declares no faults"},
		{"bad regexp", "rules:\n  - {name: a, services: '(', byzantine: [x]}\n", "rules[0].services"},
		{"bad call type", "rules:\n  - {name: a, call_types: [smtp], byzantine: [x]}\n", "unknown call type"},
		{"bad transformer", "rules:\n  - {name: a, transformers: [shuffle]}\n", "unknown transformer"},
		{"exception without name", "rules:\n  - name: a\n    exceptions: [{metadata: {code: X}}]\n", "exceptions[0].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRuleMatches(t *testing.T) {
	cfg, err := Load("testdata/analysis.yaml")
	require.NoError(t, err)
	r := &cfg.Rules[0]

	assert.True(t, r.Matches(Site{Service: "cart", Method: "GetItems", CallType: ir.CallTypeGRPC}))
	assert.False(t, r.Matches(Site{Service: "cart", Method: "GetItems", CallType: ir.CallTypeHTTP}))
	assert.False(t, r.Matches(Site{Service: "carts", Method: "GetItems", CallType: ir.CallTypeGRPC}))
	assert.False(t, r.Matches(Site{Service: "cart", Method: "PutItem", CallType: ir.CallTypeGRPC}))
}

func TestRuleMatches_Unvalidated(t *testing.T) {
	r := Rule{Name: "a", Services: "^cart$", Byzantine: []string{"x"}}
	assert.True(t, r.Matches(Site{Service: "cart"}))
	assert.False(t, r.Matches(Site{Service: "users"}))

	bad := Rule{Name: "b", Services: "(", Byzantine: []string{"x"}}
	assert.False(t, bad.Matches(Site{Service: "cart"}))
}
