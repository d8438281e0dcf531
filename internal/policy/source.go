package policy

import "sync"

// Source holds the live policy configuration. Reads return a copy so callers
// can fill in the per-call daily total without racing other evaluations.
type Source struct {
	mu  sync.RWMutex
	cfg Config
}

// NewSource builds a source around the given configuration.
func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Current returns a snapshot of the active configuration.
func (s *Source) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.WhitelistedWalletIDs = append([]string(nil), s.cfg.WhitelistedWalletIDs...)
	return cfg
}

// Whitelist adds wallet ids to the SEND destination whitelist. Used by
// startup seeding, where wallet ids are not known until creation.
func (s *Source) Whitelist(walletIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range walletIDs {
		if id != "" && !contains(s.cfg.WhitelistedWalletIDs, id) {
			s.cfg.WhitelistedWalletIDs = append(s.cfg.WhitelistedWalletIDs, id)
		}
	}
}
