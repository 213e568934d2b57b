package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.ReconMinConfidence != 0.5 {
		t.Errorf("ReconMinConfidence = %f, want 0.5", cfg.ReconMinConfidence)
	}
	if cfg.ReconAmountWeight != 0.60 || cfg.ReconDateWeight != 0.25 || cfg.ReconDescWeight != 0.15 {
		t.Errorf("scoring weights = %f/%f/%f, want 0.60/0.25/0.15",
			cfg.ReconAmountWeight, cfg.ReconDateWeight, cfg.ReconDescWeight)
	}
}

func TestLoadReconOverrides(t *testing.T) {
	t.Setenv("RECON_MIN_CONFIDENCE", "0.7")
	t.Setenv("RECON_AMOUNT_TOLERANCE", "0.10")
	t.Setenv("RECON_DATE_WINDOW_DAYS", "3")
	t.Setenv("RECON_AMOUNT_WEIGHT", "0.50")
	t.Setenv("RECON_DATE_WEIGHT", "0.30")
	t.Setenv("RECON_DESC_WEIGHT", "0.20")
	t.Setenv("RECON_ALLOW_REOPEN", "true")

	cfg := Load()

	if cfg.ReconMinConfidence != 0.7 {
		t.Errorf("ReconMinConfidence = %f, want 0.7", cfg.ReconMinConfidence)
	}
	if cfg.ReconAmountTolerance != 0.10 {
		t.Errorf("ReconAmountTolerance = %f, want 0.10", cfg.ReconAmountTolerance)
	}
	if cfg.ReconDateWindowDays != 3 {
		t.Errorf("ReconDateWindowDays = %d, want 3", cfg.ReconDateWindowDays)
	}
	if cfg.ReconAmountWeight != 0.50 || cfg.ReconDateWeight != 0.30 || cfg.ReconDescWeight != 0.20 {
		t.Errorf("scoring weights = %f/%f/%f, want 0.50/0.30/0.20",
			cfg.ReconAmountWeight, cfg.ReconDateWeight, cfg.ReconDescWeight)
	}
	if !cfg.ReconAllowReopen {
		t.Error("ReconAllowReopen = false, want true")
	}
}
