/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package floodgate

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const durationForever = "forever"

// Duration represents a time span that can also take the distinguished value "forever".
// The zero value is a finite zero-length span.
type Duration struct {
	IsForever bool
	Duration  time.Duration
}

// String returns a string representation of the duration.
// Implements fmt.Stringer interface.
func (d Duration) String() string {
	if d.IsForever {
		return durationForever
	}
	return d.Duration.String()
}

// IsZero reports whether the duration is a finite zero-length span.
func (d Duration) IsZero() bool {
	return !d.IsForever && d.Duration == 0
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.unmarshal(string(text))
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	return d.unmarshal(text)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	return d.unmarshal(text)
}

func (d *Duration) unmarshal(durationVal string) error {
	switch v := durationVal; v {
	case "":
		*d = Duration{}
	case durationForever:
		*d = Duration{IsForever: true}
	default:
		dur, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*d = Duration{Duration: dur}
	}
	return nil
}

// MarshalText implements the encoding.TextMarshaler interface.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalYAML implements the yaml.Marshaler interface.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func mapstructureTrimSpaceStringsHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Kind,
		t reflect.Kind,
		data interface{}) (interface{}, error) {
		if f != reflect.Slice || t != reflect.Slice {
			return data, nil
		}
		switch dt := data.(type) {
		case []string:
			res := make([]string, 0, len(dt))
			for _, s := range dt {
				res = append(res, strings.TrimSpace(s))
			}
			return res, nil
		default:
			return data, nil
		}
	}
}

// MapstructureDecodeHook returns a DecodeHookFunc for mapstructure to handle custom types.
func MapstructureDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructureTrimSpaceStringsHookFunc(),
	)
}
