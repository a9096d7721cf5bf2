package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}
	if rootCmd.Use != "simtree" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "simtree")
	}

	expectedCmds := []string{"run", "backends"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestBackendsCommand(t *testing.T) {
	out, err := executeCommand(rootCmd, "backends")
	if err != nil {
		t.Fatalf("backends: %v", err)
	}
	for _, want := range []string{"local", "pooled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing backend %q", out, want)
		}
	}
}

func TestRunCrunchesToTarget(t *testing.T) {
	out, err := executeCommand(rootCmd, "run", "--clock-target", "5")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "crunched") {
		t.Errorf("output %q missing crunch summary", out)
	}
}

func TestRunWorldEnd(t *testing.T) {
	out, err := executeCommand(rootCmd, "run",
		"--step", "drift", "--bias", "1", "--step-size", "0", "--end-at", "3",
		"--clock-target", "100")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "the world ended") {
		t.Errorf("output %q should report the world ending", out)
	}
}
