// Package biz 提供合同问答的业务逻辑层。
//
// 组件划分：
//   - Ingestor: 加载、分块、嵌入并发布新索引
//   - Searcher: 在当前索引上检索
//   - Chain: 检索 → 组装上下文 → 构造提示词 → 生成 → 绑定结果
//   - FormatCitations: 为回答追加去重后的引用来源
//   - Service: 组合以上组件并接入缓存与指标
package biz
