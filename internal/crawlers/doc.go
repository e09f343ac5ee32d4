// Package crawlers 提供广告网格的视图、条目提取与域名探测
//
// # 概述
//
// crawlers包负责与页面打交道的一切:把搜索结果页抽象为可以反复观测、推进的网格视图,
// 从网格快照中提取广告条目,以及为域名统计打开独立的探测页面。
// 收集循环本身(何时停止、如何累计)在 core 包中实现。
//
// # 视图
//
// 三种视图都实现 ObserveGrid / AdvanceView:
//
// ## RodView
//
// 基于go-rod的动态视图。第一次观测时才导航并等待网格出现,
// 因此等待超时会作为视图故障进入收集循环,已有结果照常保存。
// 推进方式为随机步长的平滑滚动,随后等待网络空闲。
//
//	session, err := LaunchBrowser(BrowserConfig{Headless: true}, headerProvider)
//	defer session.Close()
//
//	view, err := OpenRodView(session, params.SearchURL(), DefaultRodViewConfig())
//	defer view.Close()
//
// ## StaticView
//
// 基于Colly的静态视图,适用于服务端渲染的分页结果。
// 每次推进跟随"下一页"链接,观测返回至今累计的全部条目。
//
// ## ReplayView
//
// 按文件名顺序回放目录中的HTML快照,每次推进前进一个文件,用于离线复现与测试。
//
// # 条目提取
//
// Extractor 对每个网格条目:
//   - 规范化全部链接 (Canonicalizer: 解开跳转包装,去掉跟踪参数)
//   - 丢弃排除域名的链接 (LinkClassifier: 平台自身、短链、即时通讯)
//   - 没有合格链接的条目整体丢弃
//
// 标题取第一个带文字的链接,数量取第一个包含单位的strong文本,没有时为 "1 ad"。
//
// # 域名探测
//
// RodProber 从 PagePool 借用标签页,按域名搜索并统计声明数量之和。
// 没有网格视为0条广告,其他错误返回 *models.ProbeFault。
//
// ## PagePool (标签页池)
//
// 按需创建标签页,上限由 ResourceMonitor 根据可用内存与CPU计算。
// 归还时清理存储并回到空白页,连续清理失败的标签页直接关闭。
//
//	pool := NewPagePool(session, monitor)
//	defer pool.Close()
//
//	page, err := pool.AcquirePage(ctx)
//	if err != nil { /* 处理错误 */ }
//	defer pool.ReleasePage(page)
//
// ## ResourceMonitor (资源监控器)
//
// 实时监控可用内存和CPU负载,ProbeConcurrency 在配置的并发数与资源上限之间取较小值。
//
//	resource:
//	  safety_reserve_memory: 1024  # 系统预留内存(MB)
//	  safety_threshold: 500        # 可用内存阈值(MB)
//	  cpu_load_threshold: 80       # CPU负载阈值(%)
//	  max_tabs_limit: 4            # 探测标签页上限
//
// # 并发安全
//
//   - Canonicalizer / LinkClassifier / Extractor: 构造后只读
//   - PagePool: channel + sync.Mutex
//   - ResourceMonitor: sync.RWMutex
//   - 视图不是并发安全的,同一时间只由一个收集器使用
//
// # 错误处理
//
//   - 浏览器崩溃: 页面操作中的panic被恢复为 models.ErrBrowserCrashed
//   - 网格未出现: 观测返回 *models.ViewFault,包裹 models.ErrGridNotFound
//   - 探测失败: 只影响单个域名,由聚合器记录日志后跳过
package crawlers
