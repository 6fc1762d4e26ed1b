package host

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bjaus/plugin"
)

// RemoteContextSource parses the execution context the platform posts to
// remote listeners (service bus, webhooks). Parameters and images arrive as
// key/value arrays, and typed values carry a "__type" hint:
//
//	{
//	  "MessageName": "Update",
//	  "Stage": 40,
//	  "PrimaryEntityName": "account",
//	  "CorrelationId": "...",
//	  "InitiatingUserId": "...",
//	  "UserId": "...",
//	  "Depth": 1,
//	  "InputParameters": [
//	    {"key": "Target", "value": {"__type": "Entity:...", "LogicalName": "account", "Id": "...", "Attributes": [...]}}
//	  ],
//	  "PostEntityImages": [{"key": "PostImage", "value": {...}}]
//	}
//
// OptionSetValue and Money values are flattened to their Value, and
// EntityReference values become plugin.Reference.
func RemoteContextSource() Source {
	return remoteSource{}
}

type remoteSource struct{}

func (remoteSource) Name() string { return "remote-context" }

func (remoteSource) Discriminator() Discriminator {
	return And(
		HasFields("MessageName", "PrimaryEntityName"),
		IntIn("Stage", int64(plugin.PreValidation), int64(plugin.PreOperation), int64(plugin.PostOperation)),
	)
}

func (remoteSource) Parse(raw []byte) (*plugin.Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(raw)

	ev := &plugin.Event{
		Stage:             plugin.Stage(root.Get("Stage").Int()),
		MessageName:       root.Get("MessageName").String(),
		PrimaryEntityName: root.Get("PrimaryEntityName").String(),
		CorrelationID:     root.Get("CorrelationId").String(),
		InitiatingUserID:  root.Get("InitiatingUserId").String(),
		UserID:            root.Get("UserId").String(),
		Depth:             int(root.Get("Depth").Int()),
	}

	var err error
	root.Get("InputParameters").ForEach(func(_, kv gjson.Result) bool {
		key := kv.Get("key").String()
		if key == "" {
			err = fmt.Errorf("input parameter without key")
			return false
		}
		if ev.InputParameters == nil {
			ev.InputParameters = make(map[string]any)
		}
		ev.InputParameters[key] = remoteValue(kv.Get("value"))
		return true
	})
	if err != nil {
		return nil, err
	}

	if ev.PreImages, err = remoteImages(root.Get("PreEntityImages")); err != nil {
		return nil, fmt.Errorf("pre images: %w", err)
	}
	if ev.PostImages, err = remoteImages(root.Get("PostEntityImages")); err != nil {
		return nil, fmt.Errorf("post images: %w", err)
	}
	return ev, nil
}

func remoteImages(list gjson.Result) (plugin.Images, error) {
	if !list.IsArray() || len(list.Array()) == 0 {
		return nil, nil
	}
	out := make(plugin.Images)
	var err error
	list.ForEach(func(_, kv gjson.Result) bool {
		v := kv.Get("value")
		if remoteKind(v) != "Entity" {
			err = fmt.Errorf("image %q is not an entity", kv.Get("key").String())
			return false
		}
		out[kv.Get("key").String()] = remoteEntity(v)
		return true
	})
	return out, err
}

// remoteKind returns the type name from "__type" ("Entity:http://..." gives
// "Entity"), falling back to the value's shape.
func remoteKind(v gjson.Result) string {
	if t := v.Get("__type"); t.Exists() {
		name, _, _ := strings.Cut(t.String(), ":")
		return name
	}
	if !v.IsObject() {
		return ""
	}
	switch {
	case v.Get("Attributes").Exists() && v.Get("LogicalName").Exists():
		return "Entity"
	case v.Get("LogicalName").Exists() && v.Get("Id").Exists():
		return "EntityReference"
	case v.Get("Value").Exists():
		return "OptionSetValue"
	}
	return ""
}

func remoteEntity(v gjson.Result) *plugin.Record {
	rec := plugin.NewRecord(v.Get("LogicalName").String(), v.Get("Id").String())
	v.Get("Attributes").ForEach(func(_, kv gjson.Result) bool {
		rec.Attributes[kv.Get("key").String()] = remoteValue(kv.Get("value"))
		return true
	})
	return rec
}

func remoteValue(v gjson.Result) any {
	switch remoteKind(v) {
	case "Entity":
		return remoteEntity(v)
	case "EntityReference":
		return plugin.Reference{
			LogicalName: v.Get("LogicalName").String(),
			ID:          v.Get("Id").String(),
			Name:        v.Get("Name").String(),
		}
	case "OptionSetValue", "Money":
		return v.Get("Value").Value()
	}
	return v.Value()
}
