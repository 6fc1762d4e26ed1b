package host

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/bjaus/plugin"
)

// CompactSource parses the compact event envelope used by test harnesses and
// the plugind command:
//
//	{
//	  "stage": "PostOperation",
//	  "message": "Update",
//	  "entity": "account",
//	  "correlation_id": "...",
//	  "initiating_user_id": "...",
//	  "input_parameters": {
//	    "Target": {"logical_name": "account", "id": "a1", "attributes": {"name": "Contoso"}}
//	  },
//	  "post_images": {
//	    "PostImage": {"logical_name": "account", "id": "a1", "attributes": {}}
//	  }
//	}
//
// stage may be a name or an ordinal. An object with logical_name and id
// becomes a *plugin.Record when it has attributes and a plugin.Reference
// otherwise, wherever it appears.
func CompactSource() Source {
	return compactSource{}
}

type compactSource struct{}

type compactEvent struct {
	Stage            any                      `json:"stage"`
	Message          string                   `json:"message"`
	Entity           string                   `json:"entity"`
	CorrelationID    string                   `json:"correlation_id"`
	InitiatingUserID string                   `json:"initiating_user_id"`
	UserID           string                   `json:"user_id"`
	Depth            int                      `json:"depth"`
	InputParameters  map[string]any           `json:"input_parameters"`
	PreImages        map[string]compactRecord `json:"pre_images"`
	PostImages       map[string]compactRecord `json:"post_images"`
}

type compactRecord struct {
	LogicalName string         `json:"logical_name"`
	ID          string         `json:"id"`
	Attributes  map[string]any `json:"attributes"`
}

func (compactSource) Name() string { return "compact" }

func (compactSource) Discriminator() Discriminator {
	return HasFields("stage", "message")
}

func (compactSource) Parse(raw []byte) (*plugin.Event, error) {
	var env compactEvent
	if err := sonic.ConfigStd.Unmarshal(raw, &env); err != nil {
		return nil, err
	}

	stage, err := compactStage(env.Stage)
	if err != nil {
		return nil, err
	}

	ev := &plugin.Event{
		Stage:             stage,
		MessageName:       env.Message,
		PrimaryEntityName: env.Entity,
		CorrelationID:     env.CorrelationID,
		InitiatingUserID:  env.InitiatingUserID,
		UserID:            env.UserID,
		Depth:             env.Depth,
		PreImages:         compactImages(env.PreImages),
		PostImages:        compactImages(env.PostImages),
	}
	if len(env.InputParameters) > 0 {
		ev.InputParameters = make(map[string]any, len(env.InputParameters))
		for k, v := range env.InputParameters {
			ev.InputParameters[k] = compactValue(v)
		}
	}
	return ev, nil
}

func compactStage(v any) (plugin.Stage, error) {
	switch s := v.(type) {
	case string:
		return plugin.ParseStage(s)
	case float64:
		return plugin.Stage(int(s)), nil
	case nil:
		return 0, fmt.Errorf("stage is required")
	}
	return 0, fmt.Errorf("stage has unsupported type %T", v)
}

func compactImages(in map[string]compactRecord) plugin.Images {
	if len(in) == 0 {
		return nil
	}
	out := make(plugin.Images, len(in))
	for name, rec := range in {
		out[name] = &plugin.Record{
			LogicalName: rec.LogicalName,
			ID:          rec.ID,
			Attributes:  compactAttributes(rec.Attributes),
		}
	}
	return out
}

func compactAttributes(in map[string]any) plugin.Attributes {
	out := make(plugin.Attributes, len(in))
	for k, v := range in {
		out[k] = compactValue(v)
	}
	return out
}

func compactValue(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	logical, lok := m["logical_name"].(string)
	id, iok := m["id"].(string)
	if !lok || !iok {
		return v
	}
	if attrs, ok := m["attributes"].(map[string]any); ok {
		return &plugin.Record{LogicalName: logical, ID: id, Attributes: compactAttributes(attrs)}
	}
	name, _ := m["name"].(string)
	return plugin.Reference{LogicalName: logical, ID: id, Name: name}
}
