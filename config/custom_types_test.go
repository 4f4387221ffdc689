/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBytesCountUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		yaml    string
		want    BytesCount
		wantErr bool
	}{
		{name: "integer", json: `1024`, yaml: `1024`, want: BytesCount(1024)},
		{name: "human-readable", json: `"10M"`, yaml: `10M`, want: BytesCount(10 * 1024 * 1024)},
		{name: "gigabytes", json: `"2G"`, yaml: `2G`, want: BytesCount(2 * 1024 * 1024 * 1024)},
		{name: "negative", json: `-5`, yaml: `-5`, wantErr: true},
		{name: "garbage", json: `"ten bytes"`, yaml: `ten bytes`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromJSON BytesCount
			err := json.Unmarshal([]byte(tt.json), &fromJSON)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, fromJSON)
			}

			var fromYAML BytesCount
			err = yaml.Unmarshal([]byte(tt.yaml), &fromYAML)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, fromYAML)
			}
		})
	}
}

func TestBytesCountMarshal(t *testing.T) {
	b := BytesCount(256 * 1024 * 1024)
	data, err := json.Marshal(b)
	require.NoError(t, err)
	require.Equal(t, `"256M"`, string(data))

	yamlData, err := yaml.Marshal(b)
	require.NoError(t, err)
	require.Equal(t, "256M\n", string(yamlData))
}

func TestTimeDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		yaml    string
		want    TimeDuration
		wantErr bool
	}{
		{name: "human-readable", json: `"1h30m"`, yaml: `1h30m`, want: TimeDuration(90 * time.Minute)},
		{name: "seconds", json: `"15s"`, yaml: `15s`, want: TimeDuration(15 * time.Second)},
		{name: "integer nanoseconds", json: `1000000000`, yaml: `1000000000`, want: TimeDuration(time.Second)},
		{name: "negative", json: `-1`, yaml: `-1`, wantErr: true},
		{name: "garbage", json: `"soon"`, yaml: `soon`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromJSON TimeDuration
			err := json.Unmarshal([]byte(tt.json), &fromJSON)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, fromJSON)
			}

			var fromYAML TimeDuration
			err = yaml.Unmarshal([]byte(tt.yaml), &fromYAML)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, fromYAML)
			}
		})
	}
}

func TestTimeDurationMarshal(t *testing.T) {
	d := TimeDuration(90 * time.Second)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"1m30s"`, string(data))
}
