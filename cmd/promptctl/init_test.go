//go:build cgo

package main

import (
	"strings"
	"testing"
)

func TestInitCmd_Exists(t *testing.T) {
	if findCommand("init") == nil {
		t.Error("init command not found in rootCmd")
	}
}

func TestInitCmd_Help(t *testing.T) {
	cmd := findCommand("init")
	if cmd == nil {
		t.Fatal("init command not found")
	}
	if cmd.Short == "" {
		t.Error("init command should have Short description")
	}
	if !strings.Contains(strings.ToLower(cmd.Long), "onnx") {
		t.Error("init command Long description should mention ONNX")
	}
}

func TestInitCmd_ForceFlag(t *testing.T) {
	cmd := findCommand("init")
	if cmd == nil {
		t.Fatal("init command not found")
	}
	flag := cmd.Flags().Lookup("force")
	if flag == nil {
		t.Fatal("init command should have --force flag")
	}
	if flag.Shorthand != "f" {
		t.Errorf("force flag shorthand = %q, want %q", flag.Shorthand, "f")
	}
}
