package errors

import "google.golang.org/grpc/codes"

// 通用错误码 (服务 00)
var (
	OK = &Errno{Code: 0, HTTP: 200, GRPCCode: codes.OK, MessageEN: "Success", MessageZH: "成功"}

	ErrBadRequest       = NewRequestErr(ServiceCommon, 1, "Bad request", "请求错误")
	ErrInvalidParam     = NewRequestErr(ServiceCommon, 2, "Invalid parameter", "参数无效")
	ErrMissingParam     = NewRequestErr(ServiceCommon, 3, "Missing required parameter", "缺少必填参数")
	ErrRequestTooLarge  = NewError(ServiceCommon, CategoryRequest, 4, 413, codes.InvalidArgument, "Request entity too large", "请求体过大")
	ErrNotFound         = NewNotFoundErr(ServiceCommon, 1, "Resource not found", "资源不存在")
	ErrRouteNotFound    = NewNotFoundErr(ServiceCommon, 2, "Route not found", "路由不存在")
	ErrTooManyRequests  = NewRateLimitErr(ServiceCommon, 1, "Too many requests", "请求过于频繁")
	ErrInternal         = NewInternalErr(ServiceCommon, 1, "Internal server error", "服务器内部错误")
	ErrPanic            = NewInternalErr(ServiceCommon, 2, "Unexpected panic", "服务异常")
	ErrUnavailable      = NewNetworkErr(ServiceCommon, 1, "Service unavailable", "服务不可用")
	ErrRequestTimeout   = NewTimeoutErr(ServiceCommon, 1, "Request timeout", "请求超时")
	ErrInvalidConfig    = NewConfigErr(ServiceCommon, 1, "Invalid configuration", "配置无效")
	ErrCacheUnavailable = NewCacheErr(ServiceInfraCache, 1, "Cache unavailable", "缓存不可用")
	ErrVectorStore      = NewNetworkErr(ServiceInfraVector, 1, "Vector store operation failed", "向量库操作失败")
)
