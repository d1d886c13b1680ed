package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
)

// ChainHandler serves chain metadata.
type ChainHandler struct{}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler() *ChainHandler {
	return &ChainHandler{}
}

// Explorer returns the block explorer link for a transaction on a chain.
func (h *ChainHandler) Explorer(w http.ResponseWriter, r *http.Request) {
	chainRef := chi.URLParam(r, "chainRef")
	txHash := chi.URLParam(r, "txHash")

	id, err := domain.ParseChainRef(chainRef)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid chain reference", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ExplorerResponse{
		ChainID:   id,
		ChainName: domain.ChainName(id),
		Testnet:   domain.IsTestnet(id),
		TxHash:    txHash,
		URL:       domain.ExplorerTxURL(chainRef, txHash),
	})
}
