package config

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	BindFlags(cmd)
	return cmd
}

func TestLoadRequiresHostPortForGRPCStub(t *testing.T) {
	cmd := newTestCmd()
	if _, err := Load(cmd); err == nil {
		t.Error("expected an error when stub-class is grpc and windmill-hostport is unset")
	}
}

func TestLoadDefaultsAppliedWhenFlagsUnset(t *testing.T) {
	cmd := newTestCmd()
	cmd.PersistentFlags().Set("windmill-hostport", "127.0.0.1:9999")

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StatusPort != 8081 {
		t.Errorf("expected default status port 8081, got %d", cfg.StatusPort)
	}
	if cfg.MaxWorkers != 100 {
		t.Errorf("expected default max workers 100, got %d", cfg.MaxWorkers)
	}
	if cfg.PushbackRatio != 0.9 {
		t.Errorf("expected default pushback ratio 0.9, got %f", cfg.PushbackRatio)
	}
}

func TestLoadLocalStubDoesNotRequireHostPort(t *testing.T) {
	cmd := newTestCmd()
	cmd.PersistentFlags().Set("stub-class", "local")

	if _, err := Load(cmd); err != nil {
		t.Errorf("unexpected error for local stub class: %v", err)
	}
}

func TestParseComputationDescriptors(t *testing.T) {
	descs, err := ParseComputationDescriptors([]string{"id: c1\nspec: aGVsbG8="})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(descs) != 1 || descs[0].ID != "c1" {
		t.Errorf("expected one descriptor with id c1, got %+v", descs)
	}
}

func TestParseComputationDescriptorsRejectsMissingID(t *testing.T) {
	if _, err := ParseComputationDescriptors([]string{"spec: foo"}); err == nil {
		t.Error("expected an error for a spec missing its id")
	}
}

func TestParseComputationDescriptorsRejectsInvalidYAML(t *testing.T) {
	if _, err := ParseComputationDescriptors([]string{"not: [valid"}); err == nil {
		t.Error("expected an error for invalid YAML")
	}
}
