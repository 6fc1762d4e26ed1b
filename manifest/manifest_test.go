package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/plugin"
	"github.com/bjaus/plugin/internal/account"
)

const accountManifest = `
plugin = "AccountPerformanceStatus"

step "performance" {
  stage   = "PostOperation"
  message = "Update"
  entity  = "account"
  handler = "account.performance_status"
}

step "audit" {
  stage   = "postoperation"
  handler = "audit"
}
`

func audit(context.Context, *plugin.Invocation) error { return nil }

func catalog() Catalog {
	cat := Catalog(account.Handlers())
	cat["audit"] = plugin.HandlerFunc(audit)
	return cat
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(accountManifest), "account.hcl")
	require.NoError(t, err)

	assert.Equal(t, "AccountPerformanceStatus", f.Plugin)
	require.Len(t, f.Steps, 2)
	assert.Equal(t, &Step{
		Name:    "performance",
		Stage:   "PostOperation",
		Message: "Update",
		Entity:  "account",
		Handler: "account.performance_status",
	}, f.Steps[0])
	assert.Empty(t, f.Steps[1].Message)
	assert.Empty(t, f.Steps[1].Entity)
}

func TestParseErrors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, err := Parse([]byte(`step "x" {`), "bad.hcl")
		assert.ErrorContains(t, err, "parse manifest bad.hcl")
	})

	t.Run("missing handler attribute", func(t *testing.T) {
		_, err := Parse([]byte(`step "x" { stage = "PreOperation" }`), "bad.hcl")
		assert.ErrorContains(t, err, "decode manifest bad.hcl")
	})

	t.Run("unknown attribute", func(t *testing.T) {
		_, err := Parse([]byte(`timeout = 5`), "bad.hcl")
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.hcl")
	require.NoError(t, os.WriteFile(path, []byte(accountManifest), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Filename)
	assert.Len(t, f.Steps, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	f, err := Parse([]byte(accountManifest), "account.hcl")
	require.NoError(t, err)

	reg, err := f.Registry(catalog())
	require.NoError(t, err)

	regs := reg.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, plugin.On(plugin.PostOperation, "Update", "account"), regs[0].Key)
	assert.Equal(t, "AccountPerformanceStatus", regs[0].Name)
	assert.Equal(t, plugin.On(plugin.PostOperation, "", ""), regs[1].Key)
	assert.Equal(t, "manifest.audit", regs[1].Name)

	got := reg.Match(plugin.PostOperation, "update", "ACCOUNT")
	assert.Len(t, got, 2)
}

func TestRegistryReportsEveryError(t *testing.T) {
	src := `
step "one" {
  stage   = "MainOperation"
  handler = "audit"
}

step "two" {
  stage   = "PreOperation"
  handler = "missing"
}

step "three" {
  stage   = "PreValidation"
  handler = "audit"
}
`
	f, err := Parse([]byte(src), "broken.hcl")
	require.NoError(t, err)

	reg, err := f.Registry(catalog())
	assert.Nil(t, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `broken.hcl: step "one"`)
	assert.Contains(t, err.Error(), `step "two": unknown handler "missing"`)
	assert.NotContains(t, err.Error(), `step "three"`)
}

func TestRegistryCarriesStepConfig(t *testing.T) {
	src := `
step "configured" {
  stage           = "PostOperation"
  message         = "Update"
  handler         = "config"
  unsecure_config = "{\"region\": \"west\"}"
  secure_config   = "token-123"
}

step "plain" {
  stage   = "PostOperation"
  handler = "config"
}
`
	var got []plugin.StepConfig
	cat := Catalog{"config": plugin.HandlerFunc(func(ctx context.Context, inv *plugin.Invocation) error {
		got = append(got, plugin.StepConfig{Unsecure: inv.UnsecureConfig(), Secure: inv.SecureConfig()})
		return nil
	})}

	f, err := Parse([]byte(src), "config.hcl")
	require.NoError(t, err)
	assert.Equal(t, `{"region": "west"}`, f.Steps[0].UnsecureConfig)
	assert.Equal(t, "token-123", f.Steps[0].SecureConfig)

	reg, err := f.Registry(cat)
	require.NoError(t, err)
	regs := reg.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, plugin.StepConfig{Unsecure: `{"region": "west"}`, Secure: "token-123"}, regs[0].Config)
	assert.Equal(t, plugin.StepConfig{}, regs[1].Config)

	err = plugin.New(reg).Execute(context.Background(), &plugin.Services{
		Event: &plugin.Event{Stage: plugin.PostOperation, MessageName: "Update", PrimaryEntityName: "account"},
	})
	require.NoError(t, err)
	assert.Equal(t, []plugin.StepConfig{
		{Unsecure: `{"region": "west"}`, Secure: "token-123"},
		{},
	}, got)
}
