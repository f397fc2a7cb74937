package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务代码: 20
// 错误码格式: AABBCCC
// - AA: 20 (RAG 服务) / 90 (模型服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrInvalidQuestion = NewRequestErr(ServiceRAG, 1, "Question must not be empty", "问题不能为空")
	ErrEmptyInput      = NewRequestErr(ServiceRAG, 2, "No chunks to index", "没有可索引的文本块")
	ErrNoFiles         = NewRequestErr(ServiceRAG, 3, "No files provided", "未提供文件")

	// 资源错误 (类别 04)
	ErrIndexNotFound = NewNotFoundErr(ServiceRAG, 1, "Index not found", "索引不存在")
	ErrNoDocuments   = NewNotFoundErr(ServiceRAG, 2, "No documents ingested", "尚未导入任何文档")

	// 内部错误 (类别 07)
	ErrIndexPersist = NewInternalErr(ServiceRAG, 1, "Failed to persist index", "索引持久化失败")
	ErrIngestFailed = NewInternalErr(ServiceRAG, 2, "No documents could be loaded", "没有可加载的文档")

	// 配置错误 (类别 12)
	ErrConfiguration      = NewConfigErr(ServiceRAG, 1, "Invalid pipeline configuration", "流水线配置无效")
	ErrIndexModelMismatch = NewConfigErr(ServiceRAG, 2, "Index was built with a different embedding model", "索引的嵌入模型与当前配置不一致")

	// 无法处理的输入 (类别 13)
	ErrLoadFailure = NewError(ServiceRAG, CategoryUnprocessable, 1, http.StatusUnprocessableEntity, codes.InvalidArgument, "Failed to load document", "文档加载失败")

	// 模型服务错误 (服务 90)
	ErrEmbeddingFailed  = NewError(ServiceLLM, CategoryNetwork, 1, http.StatusBadGateway, codes.Unavailable, "Embedding provider failed", "嵌入服务调用失败")
	ErrGenerationFailed = NewError(ServiceLLM, CategoryNetwork, 2, http.StatusBadGateway, codes.Unavailable, "Generation provider failed", "生成服务调用失败")
	ErrProviderTimeout  = NewTimeoutErr(ServiceLLM, 1, "Model provider timeout", "模型服务超时")
)
