package store

import "sync/atomic"

// Handle 持有进程内的当前索引。
// 导入流程构建新索引后通过 Swap 发布，查询方每次调用 Load 一次。
type Handle struct {
	current atomic.Pointer[Index]
}

// NewHandle 创建持有 idx 的 Handle。
func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	h.current.Store(idx)
	return h
}

// Load 返回当前索引。
func (h *Handle) Load() *Index {
	return h.current.Load()
}

// Swap 发布新索引并返回旧索引。
func (h *Handle) Swap(idx *Index) *Index {
	return h.current.Swap(idx)
}
