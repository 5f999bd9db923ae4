package server

import "github.com/sig-0/ratehub/storage/types"

type HistoryResponse struct {
	Results []types.HistoryEntry `json:"results"`
	Total   int                  `json:"total"`
}

type FreshnessResponse struct {
	Message string `json:"message"`
	Fresh   bool   `json:"fresh"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
