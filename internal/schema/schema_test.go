package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTestTree() *cobra.Command {
	root := &cobra.Command{Use: "swapctl", Short: "root"}
	wrap := &cobra.Command{Use: "wrap", Short: "wrap assets", Run: func(*cobra.Command, []string) {}}
	wrap.Flags().String("amount", "", "Decimal amount")
	_ = wrap.MarkFlagRequired("amount")
	wrap.Flags().String("network", "mainnet", "Network profile")
	attempts := &cobra.Command{Use: "attempts", Short: "inspect attempts"}
	attempts.AddCommand(&cobra.Command{Use: "list", Short: "list", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(wrap)
	root.AddCommand(attempts)
	return root
}

func TestBuildWholeTree(t *testing.T) {
	s, err := Build(newTestTree(), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "swapctl" {
		t.Fatalf("root path = %q", s.Path)
	}
	if len(s.Subcommands) != 2 {
		t.Fatalf("subcommands = %d, want 2", len(s.Subcommands))
	}
}

func TestBuildSubcommandPath(t *testing.T) {
	s, err := Build(newTestTree(), "attempts list")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "swapctl attempts list" {
		t.Fatalf("path = %q", s.Path)
	}
}

func TestBuildMarksRequiredFlags(t *testing.T) {
	s, err := Build(newTestTree(), "wrap")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	byName := map[string]Flag{}
	for _, f := range s.Flags {
		byName[f.Name] = f
	}
	if !byName["amount"].Required {
		t.Fatal("amount should be required")
	}
	if byName["network"].Required {
		t.Fatal("network should not be required")
	}
	if byName["network"].Default != "mainnet" {
		t.Fatalf("network default = %q", byName["network"].Default)
	}
}

func TestBuildUnknownPath(t *testing.T) {
	if _, err := Build(newTestTree(), "nonsense"); err == nil {
		t.Fatal("expected error for unknown command path")
	}
}
