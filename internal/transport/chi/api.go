package chi

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes returned by the API.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnknownMethod          ErrorResponseCode = "unknown_method"
	ErrorResponseCodeRateLimited            ErrorResponseCode = "rate_limited"
	ErrorResponseCodeEmbeddingQuotaExceeded ErrorResponseCode = "embedding_quota_exceeded"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeModelUnavailable       ErrorResponseCode = "model_unavailable"
	ErrorResponseCodeTokenizerUnavailable   ErrorResponseCode = "tokenizer_unavailable"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// AnalyzeRequest is the body of POST /v1/analyze and /v1/analyze/all.
type AnalyzeRequest struct {
	Text *string `json:"text"`
}

// AnalyzeBatchRequest is the body of POST /v1/analyze/batch.
type AnalyzeBatchRequest struct {
	Texts []string `json:"texts"`
}

// DensityResponse is the simple output: the density only.
type DensityResponse struct {
	Method  string  `json:"method"`
	Density float64 `json:"density"`
}

// ResultResponse is the full output of one metric.
type ResultResponse struct {
	Method             string   `json:"method"`
	Density            float64  `json:"density"`
	OfficialWords      []string `json:"official_words"`
	TotalWords         int      `json:"total_words"`
	OfficialWordCount  int      `json:"official_word_count"`
	WeightedSimilarity *float64 `json:"weighted_similarity,omitempty"`
}

// BatchResultItem is one entry of the batch response, in request order.
type BatchResultItem struct {
	Index  int             `json:"index"`
	Result *ResultResponse `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}

// AnalyzeBatchResponse is the body of POST /v1/analyze/batch.
type AnalyzeBatchResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// AnalyzeAllResponse maps method name to its result.
type AnalyzeAllResponse struct {
	Results map[string]ResultResponse `json:"results"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UsageResponse is the body of GET /v1/usage. tokens_limit 0 means unlimited.
type UsageResponse struct {
	Period           string  `json:"period"`
	Provider         string  `json:"provider"`
	PeriodStartMs    int64   `json:"period_start_ms"`
	PeriodEndMs      int64   `json:"period_end_ms"`
	TokensLimit      int64   `json:"tokens_limit"`
	TokensUsed       int64   `json:"tokens_used"`
	TokensRemaining  int64   `json:"tokens_remaining"`
	IsExhausted      bool    `json:"is_exhausted"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}
