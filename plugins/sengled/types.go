package sengled

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Device is one entry of the device listing. Fields beyond id and name are
// kept untouched in Attributes.
type Device struct {
	ID         string
	Name       string
	Attributes map[string]any
}

func (d *Device) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	d.ID = stringField(fields["id"])
	d.Name = stringField(fields["name"])
	delete(fields, "id")
	delete(fields, "name")
	if len(fields) > 0 {
		d.Attributes = fields
	} else {
		d.Attributes = nil
	}
	return nil
}

func (d Device) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Attributes)+2)
	for key, value := range d.Attributes {
		out[key] = value
	}
	out["id"] = d.ID
	out["name"] = d.Name
	return json.Marshal(out)
}

// Session carries the state one bootstrap run builds up.
type Session struct {
	Token   string
	Devices []Device
}

func stringField(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
