package config

import "testing"

func TestLoad_SetsCurrent(t *testing.T) {
	t.Cleanup(func() { current.Store(nil) })

	cfg, err := Load(writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8181\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if Current() != cfg || cfg.Server.ListenAddress != "127.0.0.1:8181" {
		t.Errorf("Current() = %+v", Current())
	}

	defaults, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if Current() != defaults || defaults.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Load(\"\") did not install defaults: %q", Current().Server.ListenAddress)
	}
}

func TestReloadConfig_KeepsPreviousOnError(t *testing.T) {
	t.Cleanup(func() { current.Store(nil) })

	current.Store(Default())
	before := Current()

	if _, err := ReloadConfig(writeConfig(t, "ledger:\n  backend: nope\n")); err == nil {
		t.Fatal("expected reload error")
	}
	if Current() != before {
		t.Error("failed reload replaced the configuration")
	}

	cfg, err := ReloadConfig(writeConfig(t, "brand:\n  name: Reloaded\n"))
	if err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if Current() != cfg || cfg.Brand.Name != "Reloaded" {
		t.Errorf("reload not applied: %+v", Current().Brand)
	}
}
