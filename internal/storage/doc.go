// Package storage 报告的数据库持久化
//
// 与文件报告并列作为 core.Sink 使用:
//   - SQLiteStore: 本地单文件数据库 (modernc.org/sqlite, 无需cgo)
//   - PostgresStore: 共享数据库 (pgx 连接池)
//
// 每次保存在一个事务内写入报告与其记录;同一运行同一类型重复保存时覆盖旧数据,
// 因此部分保存之后的再次保存不会留下重复行。
package storage
