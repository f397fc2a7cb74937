// Package errors provides the structured error codes used by contract-assistant.
//
// Error Code Format: AABBCCC (7 digits)
//
//   - AA:  Service/Module code (00-99)
//   - BB:  Category code (00-99)
//   - CCC: Sequence number (000-999)
//
// Service Codes (AA):
//
//   - 00: Common/Base errors
//   - 11: Cache infrastructure (Redis)
//   - 13: Vector store infrastructure (Milvus)
//   - 20: RAG pipeline (ingest, index, query, evaluate)
//   - 90: LLM providers
//
// Category Codes (BB):
//
//   - 01: Request/Validation errors (400)
//   - 04: Resource errors (404)
//   - 06: Rate limiting errors (429)
//   - 07: Internal errors (500)
//   - 09: Cache errors (500)
//   - 10: Network / upstream errors (502/503)
//   - 11: Timeout errors (504)
//   - 12: Configuration errors (500)
//   - 13: Unprocessable input (422)
package errors

// Service codes (AA)
const (
	// ServiceCommon is for common/base errors shared by all modules.
	ServiceCommon = 0

	// ServiceInfraCache is for cache infrastructure.
	ServiceInfraCache = 11

	// ServiceInfraVector is for the vector database.
	ServiceInfraVector = 13

	// ServiceRAG is for the retrieval pipeline.
	ServiceRAG = 20

	// ServiceLLM is for embedding and chat providers.
	ServiceLLM = 90
)

// Category codes (BB)
const (
	CategorySuccess       = 0
	CategoryRequest       = 1
	CategoryResource      = 4
	CategoryRateLimit     = 6
	CategoryInternal      = 7
	CategoryCache         = 9
	CategoryNetwork       = 10
	CategoryTimeout       = 11
	CategoryConfig        = 12
	CategoryUnprocessable = 13
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode parses an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// GetService returns the service code from an error code.
func GetService(code int) int {
	return code / 100000
}

// GetCategory returns the category code from an error code.
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError reports whether the code belongs to a caller-side category.
func IsClientError(code int) bool {
	switch GetCategory(code) {
	case CategoryRequest, CategoryResource, CategoryRateLimit, CategoryUnprocessable:
		return true
	}
	return false
}

// IsServerError reports whether the code belongs to a server-side category.
func IsServerError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryInternal && c <= CategoryConfig
}
