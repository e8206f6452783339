package sitekit

import (
	"testing"

	"github.com/aelwen/novelcrawler/internal/model"
)

func TestRegistryBuildUnknownKey(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Build("nope"); err == nil {
		t.Fatal("Build() on unregistered key should error")
	}
}

func TestRegistryRegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("demo", func() (Site, error) {
		return Site{Hooks: Hooks{NeedsRefetchHook: EncryptedHook}}, nil
	})
	site, err := r.Build("demo")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !site.Hooks.NeedsRefetch(&model.Chapter{Extra: map[string]any{"encrypted": true}}) {
		t.Fatal("expected EncryptedHook wiring to report true")
	}
}

func TestHooksDefaults(t *testing.T) {
	var h Hooks
	if h.Restricted(nil) || h.Empty(nil) || h.NeedsRefetch(&model.Chapter{}) {
		t.Fatal("zero-value Hooks must default every predicate to false")
	}
}
