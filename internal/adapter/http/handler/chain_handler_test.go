package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
)

func TestChainHandler_Explorer(t *testing.T) {
	tests := []struct {
		name       string
		chainRef   string
		wantStatus int
		wantURL    string
		wantName   string
		wantTest   bool
	}{
		{
			name:       "known testnet",
			chainRef:   "421614",
			wantStatus: http.StatusOK,
			wantURL:    "https://sepolia.arbiscan.io/tx/0xabc",
			wantName:   "Arbitrum Sepolia",
			wantTest:   true,
		},
		{
			name:       "multi chain reference uses first",
			chainRef:   "84532,421614",
			wantStatus: http.StatusOK,
			wantURL:    "https://sepolia.basescan.org/tx/0xabc",
			wantName:   "Base Sepolia",
			wantTest:   true,
		},
		{
			name:       "unknown chain",
			chainRef:   "999",
			wantStatus: http.StatusOK,
			wantName:   "Chain 999",
		},
		{
			name:       "invalid reference",
			chainRef:   "base",
			wantStatus: http.StatusBadRequest,
		},
	}

	h := NewChainHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "chainRef", tt.chainRef, "txHash", "0xabc")
			rec := httptest.NewRecorder()
			h.Explorer(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp dto.ExplorerResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.URL != tt.wantURL || resp.ChainName != tt.wantName || resp.Testnet != tt.wantTest {
				t.Fatalf("unexpected response: %+v", resp)
			}
			if resp.ChainID == domain.ChainID(0) {
				t.Fatal("expected chain id to be set")
			}
		})
	}
}
