package http

import (
	"net/http"

	"fido/internal/core"
)

// cachedBanks serves the bank list through the LRU. The list is near-static,
// so a short TTL keeps the payment selector snappy without a staleness risk.
func (s *Server) cachedBanks(r *http.Request) ([]core.Bank, error) {
	if banks, ok := s.banks.Get(banksCacheKey); ok {
		return banks, nil
	}
	banks, err := s.service.Banks(r.Context())
	if err != nil {
		return nil, err
	}
	s.banks.Set(banksCacheKey, banks)
	return banks, nil
}

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.cachedBanks(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if banks == nil {
		banks = []core.Bank{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if totals, ok := s.totals.Get(totalsCacheKey); ok {
		writeJSON(w, http.StatusOK, totals)
		return
	}
	totals, err := s.service.Totals(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.totals.Set(totalsCacheKey, totals)
	writeJSON(w, http.StatusOK, totals)
}
