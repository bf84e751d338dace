package flagx

import (
	"reflect"
	"testing"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "keeps allowed flag with separate value",
			args:    []string{"-d", "dsn", "-x", "junk"},
			allowed: []string{"-d"},
			want:    []string{"-d", "dsn"},
		},
		{
			name:    "keeps allowed flag with equals value",
			args:    []string{"--config=conf.json", "-v"},
			allowed: []string{"--config"},
			want:    []string{"--config=conf.json"},
		},
		{
			name:    "drops unknown flags entirely",
			args:    []string{"-test.v", "-test.run=TestFoo"},
			allowed: []string{"-d"},
			want:    []string{},
		},
		{
			name:    "allowed flag followed by another flag keeps no value",
			args:    []string{"-d", "-g", "ws://host"},
			allowed: []string{"-d", "-g"},
			want:    []string{"-d", "-g", "ws://host"},
		},
		{
			name:    "empty input",
			args:    []string{},
			allowed: []string{"-d"},
			want:    []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterArgs(tc.args, tc.allowed)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("FilterArgs(%v, %v) = %v, want %v", tc.args, tc.allowed, got, tc.want)
			}
		})
	}
}
