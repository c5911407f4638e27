package main

import (
	"testing"
)

func TestRootCmdRequiresExactlyTwoArgs(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"no args", nil, true},
		{"one arg", []string{"6380"}, true},
		{"two args", []string{"6380", "mydb"}, false},
		{"three args", []string{"6380", "mydb", "extra"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := rootCmd.Args(rootCmd, tc.args); (err != nil) != tc.wantErr {
				t.Errorf("Args(%v) error = %v, wantErr %v", tc.args, err, tc.wantErr)
			}
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	if v, _ := flags.GetString("folder"); v != "mydb" {
		t.Errorf("folder default = %q, want mydb", v)
	}
	if v, _ := flags.GetString("metrics-addr"); v != ":9090" {
		t.Errorf("metrics-addr default = %q, want :9090", v)
	}
	if v, _ := flags.GetString("log-level"); v != "info" {
		t.Errorf("log-level default = %q, want info", v)
	}
	if v, _ := flags.GetBool("log-json"); v != false {
		t.Errorf("log-json default = %v, want false", v)
	}
}
