// Package manifest loads step registrations from HCL files, so the steps a
// plugin answers to can be changed without recompiling it.
//
// A manifest names the plugin and lists its steps:
//
//	plugin = "AccountPerformanceStatus"
//
//	step "performance" {
//	  stage   = "PostOperation"
//	  message = "Update"
//	  entity  = "account"
//	  handler = "account.performance_status"
//	}
//
// message and entity may be omitted to match any value. handler is looked up
// in a Catalog supplied by the program. A step may also carry the
// unsecure_config and secure_config strings its handler reads through
// Invocation.UnsecureConfig and Invocation.SecureConfig.
package manifest

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/bjaus/plugin"
)

// Catalog maps handler names used in manifests to handlers.
type Catalog map[string]plugin.Handler

// File is a decoded manifest.
type File struct {
	Plugin string  `hcl:"plugin,optional"`
	Steps  []*Step `hcl:"step,block"`

	// Filename is where the manifest was read from.
	Filename string
}

// Step is one step block.
type Step struct {
	Name    string `hcl:"name,label"`
	Stage   string `hcl:"stage"`
	Message string `hcl:"message,optional"`
	Entity  string `hcl:"entity,optional"`
	Handler string `hcl:"handler"`

	UnsecureConfig string `hcl:"unsecure_config,optional"`
	SecureConfig   string `hcl:"secure_config,optional"`
}

// Parse decodes manifest source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse manifest %s: %w", filename, diags)
	}
	return decode(f, filename)
}

// Load reads and decodes the manifest at path.
func Load(path string) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse manifest %s: %w", path, diags)
	}
	return decode(f, path)
}

func decode(f *hcl.File, filename string) (*File, error) {
	out := File{Filename: filename}
	if diags := gohcl.DecodeBody(f.Body, nil, &out); diags.HasErrors() {
		return nil, fmt.Errorf("decode manifest %s: %w", filename, diags)
	}
	return &out, nil
}

// Registry resolves every step against cat and returns the registrations in
// file order. All unknown stages and handler names are reported together.
func (f *File) Registry(cat Catalog) (*plugin.Registry, error) {
	var (
		regs []plugin.Registration
		errs []error
	)
	for _, s := range f.Steps {
		stage, err := plugin.ParseStage(s.Stage)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: step %q: %w", f.Filename, s.Name, err))
			continue
		}
		h, ok := cat[s.Handler]
		if !ok || h == nil {
			errs = append(errs, fmt.Errorf("%s: step %q: unknown handler %q", f.Filename, s.Name, s.Handler))
			continue
		}
		regs = append(regs, plugin.Registration{
			Key:     plugin.On(stage, s.Message, s.Entity),
			Handler: h,
			Config: plugin.StepConfig{
				Unsecure: s.UnsecureConfig,
				Secure:   s.SecureConfig,
			},
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return plugin.NewRegistry(regs...), nil
}
